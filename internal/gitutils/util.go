package gitutils

import (
	"regexp"
	"strings"

	"prdash/internal/domain/pullrequest"
	"prdash/internal/pkg/fs"

	"github.com/pkg/errors"
)

const githubHost = "github.com"

var (
	ErrCannotGetLocalRepository         = errors.New("cannot get local repository")
	ErrUnableToParseRemoteRepositoryURI = errors.New("unable to parse remote repository URI")
	ErrNoGitHubRemote                   = errors.New("the local repository has no github remote")
)

var remotePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^git@([^:]+):([^/]+)/(.+?)(?:\.git)?$`),
	regexp.MustCompile(`^(?:https?|ssh|git)://(?:[^@/]+@)?([^/:]+)(?::\d+)?/([^/]+)/(.+?)(?:\.git)?/?$`),
}

var getWorkingDir = func(fs fs.Filesystem) (string, error) {
	return fs.Getwd()
}

var openLocalRepo = func() (gitRepository, error) {
	wd, err := getWorkingDir(fs.OS{})
	if err != nil {
		return nil, errors.Wrap(err, ErrCannotGetLocalRepository.Error())
	}

	r, err := openRepo(wd)
	if err != nil {
		return nil, errors.Wrap(err, ErrCannotGetLocalRepository.Error())
	}

	return &repository{r: r}, nil
}

var extractRepositoryTokens = func(uri string) ([]string, error) {
	for _, r := range remotePatterns {
		m := r.FindStringSubmatch(strings.TrimSpace(uri))
		if len(m) == 4 {
			return m[1:], nil
		}
	}

	return nil, ErrUnableToParseRemoteRepositoryURI
}

// parseRepositoryString turns a github remote url into a repository. Remotes
// on other hosts yield nil without error.
var parseRepositoryString = func(repoString string) (*pullrequest.RepositoryRef, error) {
	m, err := extractRepositoryTokens(repoString)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(m[0], githubHost) {
		return nil, nil
	}

	return &pullrequest.RepositoryRef{
		Owner: m[1],
		Name:  m[2],
	}, nil
}

func getRemoteRepositories(r gitRepository) ([]pullrequest.RepositoryRef, error) {
	urls, err := r.GetRemoteURLs()
	if err != nil {
		return nil, err
	}

	var repos []pullrequest.RepositoryRef
	seen := map[string]bool{}
	for _, url := range urls {
		repo, err := parseRepositoryString(url)
		if err != nil {
			return nil, err
		}
		if repo == nil || seen[repo.Topic()] {
			continue
		}

		seen[repo.Topic()] = true
		repos = append(repos, *repo)
	}

	if len(repos) == 0 {
		return nil, ErrNoGitHubRemote
	}

	return repos, nil
}

// GetRemoteRepositories returns the github repositories the remotes of the
// repository in the working directory point to.
func GetRemoteRepositories() ([]pullrequest.RepositoryRef, error) {
	r, err := openLocalRepo()
	if err != nil {
		return nil, err
	}

	return getRemoteRepositories(r)
}
