package replay

import (
	"context"
	"fmt"
	"io"
	"strings"

	"prdash/internal/cli/utils"
	"prdash/internal/configutils"
	"prdash/internal/errcodes"
	"prdash/internal/pkg/fs"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

const defaultEvent = "pull_request"

var filesystem fs.Filesystem = fs.OS{}

type cmdParams struct {
	URL   string
	Event string
	Files []string
}

// defaultURL points at the webhook endpoint of a server started with the
// same configuration.
func defaultURL(s *configutils.ServerSettings) string {
	host := s.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}

	return fmt.Sprintf("http://%s%s", host, s.WebhookPath)
}

func readPayload(name string) ([]byte, error) {
	f, err := filesystem.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func runCmd(env *utils.Env) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errcodes.ErrNoWebhookPayload
		}

		params := &cmdParams{
			URL:   configutils.GetStringFlagOrDefault(cmd.Flags(), "url", defaultURL(&env.Settings.Server)),
			Event: configutils.GetStringFlagOrDefault(cmd.Flags(), "event", defaultEvent),
			Files: args,
		}

		return execute(cmd.Context(), resty.New(), params, cmd.OutOrStdout())
	}
}

func execute(ctx context.Context, rc *resty.Client, params *cmdParams, out io.Writer) error {
	for _, name := range params.Files {
		body, err := readPayload(name)
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}

		res, err := rc.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("X-GitHub-Event", params.Event).
			SetBody(body).
			Post(params.URL)
		if err != nil {
			return errors.Wrapf(err, "deliver %s", name)
		}

		if res.IsError() {
			return errors.Errorf(
				"deliver %s: %s: %s",
				name,
				res.Status(),
				gjson.GetBytes(res.Body(), "message").String(),
			)
		}

		fmt.Fprintf(
			out,
			"%s: delivered to %d viewer(s)\n",
			name,
			gjson.GetBytes(res.Body(), "delivered").Int(),
		)
	}

	return nil
}

func New(env *utils.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay FILE...",
		Short: "Replay recorded webhook payloads",
		Long: `Posts recorded GitHub webhook payloads, in order, to the webhook endpoint
of a running prdash server.`,
		Run: utils.RunCommandWrapper(runCmd(env)),
	}
	cmd.Flags().String("url", "", "webhook endpoint (default from server.addr and server.webhook_path)")
	cmd.Flags().String("event", defaultEvent, "value of the X-GitHub-Event header")

	return cmd
}
