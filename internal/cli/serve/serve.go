package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"prdash/internal/cli/utils"
	"prdash/internal/clientutils"
	"prdash/internal/fanout"
	"prdash/internal/logging"
	"prdash/internal/pkg/client"
	"prdash/internal/server"
	"prdash/internal/session"
	"prdash/internal/snapshot"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var factory clientutils.Factory = clientutils.ClientFactory{}

func runCmd(env *utils.Env) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			env.Settings.Server.Addr = addr
		}

		if err := env.Settings.Validate(); err != nil {
			return err
		}

		c, err := factory.DefaultClient(&env.Settings.GitHub)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return execute(ctx, env, c)
	}
}

// execute runs the dashboard session and the HTTP server until ctx is done
// or either of them fails.
func execute(ctx context.Context, env *utils.Env, c client.Client) error {
	settings := env.Settings
	cache := snapshot.New()
	hub := fanout.NewHub(settings.Fanout.Buffer, logging.Component(env.Logger, "fanout"))

	s := session.New(&session.Options{
		Settings: settings,
		Client:   c,
		Cache:    cache,
		Hub:      hub,
		Logger:   env.Logger,
	})

	srv := server.New(&server.Options{
		Addr:        settings.Server.Addr,
		WebhookPath: settings.Server.WebhookPath,
		SocketPath:  settings.Server.SocketPath,
		Hub:         hub,
		Cache:       cache,
		Reloader:    s,
		Logger:      logging.Component(env.Logger, "server"),
	})

	env.Logger.Info().
		Str("session", s.ID.String()).
		Str("addr", settings.Server.Addr).
		Str("owner", settings.GitHub.Owner).
		Msg("starting dashboard")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return s.Run(ctx)
	})

	return g.Wait()
}

func New(env *utils.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live pull request dashboard",
		Long: `Loads the open pull requests of the configured repositories and keeps them
up to date from the GitHub webhooks delivered to the server. Viewers connect
over websocket to receive webhook events and dashboard updates.`,
		Run: utils.RunCommandWrapper(runCmd(env)),
	}
	cmd.Flags().String("addr", "", "listen address (default from server.addr)")

	return cmd
}
