package pullrequest

import (
	"fmt"
	"strings"

	"prdash/internal/errcodes"
)

// RepositoryRef identifies a repository and the REST resource used to list
// and fetch its pull requests.
type RepositoryRef struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	PullsURL string `json:"pullsUrl"`
}

func (r RepositoryRef) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// Topic is the routing key used to scope webhook subscriptions.
func (r RepositoryRef) Topic() string {
	return Topic(r.Owner, r.Name)
}

func Topic(owner, name string) string {
	if owner == "" || name == "" {
		return ""
	}

	return strings.ToLower(owner + "/" + name)
}

// TrimPullsTemplate strips the "{/number}" suffix GitHub appends to pulls_url.
func TrimPullsTemplate(url string) string {
	if i := strings.Index(url, "{"); i != -1 {
		return url[:i]
	}

	return url
}

// ParseRepository parses an "owner/name" string.
func ParseRepository(s string) (RepositoryRef, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepositoryRef{}, errcodes.ErrRepositoryMustBeInFormOwnerRepo
	}

	return RepositoryRef{Owner: parts[0], Name: parts[1]}, nil
}
