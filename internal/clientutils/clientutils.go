package clientutils

import (
	"prdash/internal/configutils"
	"prdash/internal/pkg/client"
	"prdash/internal/pkg/github"

	"github.com/sirupsen/logrus"
)

// Factory builds the pull request client used by a dashboard session.
type Factory interface {
	DefaultClient(s *configutils.GitHubSettings) (client.Client, error)
}

type ClientFactory struct{}

func (cf ClientFactory) DefaultClient(s *configutils.GitHubSettings) (client.Client, error) {
	return github.DefaultClient(s, logrus.StandardLogger())
}
