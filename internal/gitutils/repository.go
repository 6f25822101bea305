package gitutils

import (
	"path"

	"github.com/go-git/go-git/v5"
	"github.com/pkg/errors"
)

type goGitRepository interface {
	Remotes() ([]*git.Remote, error)
}

type gitRepository interface {
	GetRemoteURLs() ([]string, error)
}

type repository struct {
	r goGitRepository
}

var openRepo = func(path string) (goGitRepository, error) {
	return OpenRepoRecursively(path)
}

// OpenRepoRecursively opens the repository containing input, walking up the
// directory tree.
func OpenRepoRecursively(input string) (*git.Repository, error) {
	dir := input
	for dir != "/" && dir != "." {
		repo, err := git.PlainOpen(dir)
		if err == nil {
			return repo, nil
		}

		dir = path.Dir(dir)
	}

	return nil, errors.Errorf("could not find a repository at %s", input)
}

func (r *repository) GetRemoteURLs() ([]string, error) {
	var repoURLs []string
	remotes, err := r.r.Remotes()
	if err != nil {
		return nil, err
	}

	for _, re := range remotes {
		repoURLs = append(repoURLs, re.Config().URLs...)
	}

	return repoURLs, nil
}
