package list

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"prdash/internal/cli/paramutils"
	"prdash/internal/cli/utils"
	"prdash/internal/clientutils"
	"prdash/internal/domain/pullrequest"
	"prdash/internal/fanout"
	"prdash/internal/logging"
	"prdash/internal/pkg/client"
	"prdash/internal/session"
	"prdash/internal/snapshot"

	"github.com/gosuri/uilive"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

const pendingCell = "..."

var factory clientutils.Factory = clientutils.ClientFactory{}

func runCmd(env *utils.Env) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		flags := &paramutils.PFlagSetWrapper{Flags: cmd.Flags()}
		repos, err := paramutils.RepositoriesFromFlags(flags)
		if err != nil {
			return err
		}

		if err := env.Settings.Validate(); err != nil {
			return err
		}

		c, err := factory.DefaultClient(&env.Settings.GitHub)
		if err != nil {
			return err
		}

		return execute(cmd.Context(), env, c, repos, cmd.OutOrStdout())
	}
}

func execute(
	ctx context.Context,
	env *utils.Env,
	c client.Client,
	repos []pullrequest.RepositoryRef,
	out io.Writer,
) error {
	cache := snapshot.New()
	s := session.New(&session.Options{
		Settings: env.Settings,
		Client:   c,
		Cache:    cache,
		Hub:      fanout.NewHub(env.Settings.Fanout.Buffer, logging.Component(env.Logger, "fanout")),
		Logger:   env.Logger,
	})

	if _, err := s.Authenticate(ctx); err != nil {
		return err
	}

	if len(repos) == 0 {
		var err error
		repos, err = s.DiscoverRepositories(ctx)
		if err != nil {
			return err
		}
	}

	writer := uilive.New()
	writer.Out = out
	writer.Start()
	defer writer.Stop()

	changes, stop := cache.Watch()
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-changes:
				fmt.Fprintln(writer, renderTable(cache.Snapshot()))
			case <-quit:
				return
			}
		}
	}()

	_, err := s.Load(ctx, repos)
	stop()
	close(quit)
	<-done

	fmt.Fprintln(writer, renderTable(cache.Snapshot()))

	return err
}

func renderTable(s pullrequest.Snapshot) string {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("REPOSITORY", "#", "TITLE", "AUTHOR", "DAYS", "COMMENTS", "RESOLVED", "APPROVED", "URL")
	table.AddRow("----------", "-", "-----", "------", "----", "--------", "--------", "--------", "---")

	for _, g := range s {
		for _, r := range g.PullRequests {
			comments, resolved, approved := pendingCell, pendingCell, pendingCell
			if !r.EnrichmentPending {
				comments = strconv.Itoa(r.CommentCount)
				resolved = strconv.Itoa(r.ResolvedConversationCount)
				approved = yesNo(r.Approved)
			}

			table.AddRow(
				g.RepositoryName,
				r.Number,
				r.Title,
				r.AuthorLogin,
				r.DaysOpen,
				comments,
				resolved,
				approved,
				r.HTMLURL,
			)
		}
	}

	return table.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func New(env *utils.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List open pull requests",
		Long: `Lists the open pull requests of the configured repositories, or of the
repositories given with --repository / --here. Rows show up at once and fill
in as their comments, conversations and approvals are fetched.`,
		Run: utils.RunCommandWrapper(runCmd(env)),
	}
	paramutils.AddRepositoryFlags(cmd.Flags())

	return cmd
}
