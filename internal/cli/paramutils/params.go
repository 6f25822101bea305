package paramutils

import (
	"prdash/internal/domain/pullrequest"
	"prdash/internal/gitutils"

	"github.com/spf13/pflag"
)

type FlagRepo interface {
	GetStringOrDefault(flag, d string) string
	GetBoolOrDefault(flag string, d bool) bool
	GetStringSliceOrDefault(flag string, d []string) []string
}

func NewFlagRepo(flags *pflag.FlagSet) FlagRepo {
	return &PFlagSetWrapper{Flags: flags}
}

type PFlagSetWrapper struct {
	Flags *pflag.FlagSet
}

func (fs *PFlagSetWrapper) GetStringOrDefault(flag, d string) string {
	s, err := fs.Flags.GetString(flag)
	if err != nil || s == "" {
		return d
	}

	return s
}

func (fs *PFlagSetWrapper) GetBoolOrDefault(flag string, d bool) bool {
	s, err := fs.Flags.GetBool(flag)
	if err != nil {
		return d
	}

	return s
}

func (fs *PFlagSetWrapper) GetStringSliceOrDefault(flag string, d []string) []string {
	s, err := fs.Flags.GetStringSlice(flag)
	if err != nil || len(s) == 0 {
		return d
	}

	return s
}

var getRemoteRepositories = gitutils.GetRemoteRepositories

// AddRepositoryFlags registers --repository and --here on cmd flags.
func AddRepositoryFlags(flags *pflag.FlagSet) {
	flags.StringSliceP("repository", "r", nil, "repository in form of owner/repo, repeatable")
	flags.Bool("here", false, "include the GitHub remotes of the git repository in the working directory")
}

// RepositoriesFromFlags collects the repositories named by --repository and,
// with --here, the GitHub remotes of the local git repository. An empty
// result means none were asked for.
func RepositoriesFromFlags(flags FlagRepo) ([]pullrequest.RepositoryRef, error) {
	repos := []pullrequest.RepositoryRef{}
	seen := map[string]bool{}
	add := func(r pullrequest.RepositoryRef) {
		if seen[r.Topic()] {
			return
		}
		seen[r.Topic()] = true
		repos = append(repos, r)
	}

	for _, name := range flags.GetStringSliceOrDefault("repository", nil) {
		r, err := pullrequest.ParseRepository(name)
		if err != nil {
			return nil, err
		}
		add(r)
	}

	if flags.GetBoolOrDefault("here", false) {
		remotes, err := getRemoteRepositories()
		if err != nil {
			return nil, err
		}
		for _, r := range remotes {
			add(r)
		}
	}

	return repos, nil
}
