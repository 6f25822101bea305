package client

import (
	"context"

	"prdash/internal/domain/pullrequest"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound = errors.New("resource not found")
)

// IsNotFound reports whether err is a soft absence on the source side.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type User struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// Client is the read side of a pull request host consumed by the dashboard.
type Client interface {
	GetUser(ctx context.Context, login string) (*User, error)
	ListRepositories(ctx context.Context) ([]pullrequest.RepositoryRef, error)
	ListOpenPullRequests(ctx context.Context, repo pullrequest.RepositoryRef) ([]pullrequest.Record, error)
	GetPullRequest(ctx context.Context, repo pullrequest.RepositoryRef, number int) (*pullrequest.Record, error)
	CountReviewComments(ctx context.Context, repo pullrequest.RepositoryRef, number int) (int, error)
	IsApproved(ctx context.Context, repo pullrequest.RepositoryRef, number int) (bool, error)
	CountResolvedConversations(ctx context.Context, repo pullrequest.RepositoryRef, number int) (int, error)
}

type Enrichment struct {
	CommentCount              int
	ResolvedConversationCount int
	Approved                  bool
}

// Apply returns r populated with the enrichment data.
func (e *Enrichment) Apply(r pullrequest.Record) pullrequest.Record {
	r.CommentCount = e.CommentCount
	r.ResolvedConversationCount = e.ResolvedConversationCount
	r.Approved = e.Approved
	r.EnrichmentPending = false
	if r.Reviewers == nil {
		r.Reviewers = []pullrequest.Reviewer{}
	}

	return r
}

// Enrich fetches comment count, resolved conversation count and approval
// state of a pull request. The three calls run in parallel and the first
// failure cancels the others.
func Enrich(
	ctx context.Context,
	c Client,
	repo pullrequest.RepositoryRef,
	number int,
) (*Enrichment, error) {
	e := &Enrichment{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := c.CountReviewComments(ctx, repo, number)
		if err != nil {
			return errors.Wrap(err, "count review comments")
		}
		e.CommentCount = n
		return nil
	})

	g.Go(func() error {
		n, err := c.CountResolvedConversations(ctx, repo, number)
		if err != nil {
			return errors.Wrap(err, "count resolved conversations")
		}
		e.ResolvedConversationCount = n
		return nil
	})

	g.Go(func() error {
		ok, err := c.IsApproved(ctx, repo, number)
		if err != nil {
			return errors.Wrap(err, "check approvals")
		}
		e.Approved = ok
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e, nil
}

// FetchSingle fetches one pull request and enriches it.
func FetchSingle(
	ctx context.Context,
	c Client,
	repo pullrequest.RepositoryRef,
	number int,
) (*pullrequest.Record, error) {
	pr, err := c.GetPullRequest(ctx, repo, number)
	if err != nil {
		return nil, errors.Wrapf(err, "get pull request #%d", number)
	}

	e, err := Enrich(ctx, c, repo, number)
	if err != nil {
		return nil, errors.Wrapf(err, "enrich pull request #%d", number)
	}

	full := e.Apply(*pr)

	return &full, nil
}
