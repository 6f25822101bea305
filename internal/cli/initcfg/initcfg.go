package initcfg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"prdash/internal/cli/utils"
	"prdash/internal/configutils"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type answers struct {
	Token        string `survey:"token"`
	Owner        string `survey:"owner"`
	Repositories string `survey:"repositories"`
	Addr         string `survey:"addr"`
}

var ask = func(qs []*survey.Question, response interface{}) error {
	return survey.Ask(qs, response)
}

var globalConfigPath = configutils.GlobalConfigPath

func questions(s *configutils.Settings) []*survey.Question {
	return []*survey.Question{
		{
			Name:     "token",
			Prompt:   &survey.Password{Message: "GitHub token"},
			Validate: survey.Required,
		},
		{
			Name:     "owner",
			Prompt:   &survey.Input{Message: "GitHub owner", Default: s.GitHub.Owner},
			Validate: survey.Required,
		},
		{
			Name: "repositories",
			Prompt: &survey.Input{
				Message: "Repositories (owner/name, comma separated, empty for all of the owner's)",
				Default: strings.Join(s.GitHub.Repositories, ","),
			},
		},
		{
			Name:   "addr",
			Prompt: &survey.Input{Message: "Server listen address", Default: s.Server.Addr},
		},
	}
}

func splitRepositories(s string) []string {
	repos := []string{}
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}

	return repos
}

func execute(env *utils.Env, out io.Writer) error {
	a := &answers{}
	if err := ask(questions(env.Settings), a); err != nil {
		return err
	}

	path, err := globalConfigPath()
	if err != nil {
		return err
	}

	v := viper.New()
	v.Set(configutils.KeyGitHubToken, a.Token)
	v.Set(configutils.KeyGitHubOwner, a.Owner)
	v.Set(configutils.KeyGitHubRepositories, splitRepositories(a.Repositories))
	v.Set(configutils.KeyServerAddr, a.Addr)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrap(err, "write config")
	}

	fmt.Fprintf(out, "configuration written to %s\n", path)

	return nil
}

func New(env *utils.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the global configuration",
		Long:  `Prompts for the GitHub credentials and writes the global configuration file.`,
		Run: utils.RunCommandWrapper(func(cmd *cobra.Command, args []string) error {
			return execute(env, cmd.OutOrStdout())
		}),
	}
}
