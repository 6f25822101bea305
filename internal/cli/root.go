package cli

import (
	"fmt"
	"os"

	initcmd "prdash/internal/cli/initcfg"
	listcmd "prdash/internal/cli/list"
	replaycmd "prdash/internal/cli/replay"
	servecmd "prdash/internal/cli/serve"
	"prdash/internal/cli/utils"
	"prdash/internal/logging"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	env := &utils.Env{}

	rootCmd := &cobra.Command{
		Use:     "prdash",
		Short:   "prdash live pull request dashboard",
		Long:    `Live dashboard of your open pull requests across GitHub repositories.`,
		Version: fmt.Sprintf("%v, commit %v, built at %v", version, commit, date),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.Load(cmd.Flags())
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		servecmd.New(env),
		listcmd.New(env),
		replaycmd.New(env),
		initcmd.New(env),
	)

	rootCmd.PersistentFlags().String("config", "", "config path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	return rootCmd
}

func Execute() {
	err := newRootCmd().Execute()
	_ = logging.Close()
	if err != nil {
		os.Exit(utils.ExitCode(err))
	}
}
