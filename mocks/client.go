package mocks

import (
	"context"
	"sync"

	"prdash/internal/domain/pullrequest"
	"prdash/internal/pkg/client"
)

// Client is an in-memory client.Client. Pull requests are keyed by the
// repository full name; enrichment values by pull request number.
type Client struct {
	ErrorValue        error
	UserValue         *client.User
	RepositoriesValue []pullrequest.RepositoryRef
	PullRequests      map[string][]pullrequest.Record
	ListErrors        map[string]error
	Comments          map[int]int
	Resolved          map[int]int
	Approved          map[int]bool
	EnrichErrors      map[int]error

	// CommentsFunc overrides Comments, e.g. to change counts between calls.
	CommentsFunc func(number int) (int, error)
	// EnrichHook runs at the start of every enrichment call.
	EnrichHook func(ctx context.Context, number int)

	mu    sync.Mutex
	calls map[string]int
}

func (c *Client) track(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[name]++
}

// Calls returns how many times the named method was called.
func (c *Client) Calls(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[name]
}

func (c *Client) GetUser(ctx context.Context, login string) (*client.User, error) {
	c.track("GetUser")
	if c.ErrorValue != nil {
		return nil, c.ErrorValue
	}
	if c.UserValue == nil {
		return nil, client.ErrNotFound
	}

	return c.UserValue, nil
}

func (c *Client) ListRepositories(ctx context.Context) ([]pullrequest.RepositoryRef, error) {
	c.track("ListRepositories")

	return c.RepositoriesValue, c.ErrorValue
}

func (c *Client) ListOpenPullRequests(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
) ([]pullrequest.Record, error) {
	c.track("ListOpenPullRequests")
	if err := c.ListErrors[repo.FullName()]; err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]pullrequest.Record(nil), c.PullRequests[repo.FullName()]...), nil
}

func (c *Client) GetPullRequest(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (*pullrequest.Record, error) {
	c.track("GetPullRequest")
	if c.ErrorValue != nil {
		return nil, c.ErrorValue
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pr := range c.PullRequests[repo.FullName()] {
		if pr.Number == number {
			return &pr, nil
		}
	}

	return nil, client.ErrNotFound
}

// SetPullRequests replaces the pull requests of a repository.
func (c *Client) SetPullRequests(repo string, prs []pullrequest.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PullRequests == nil {
		c.PullRequests = map[string][]pullrequest.Record{}
	}
	c.PullRequests[repo] = prs
}

func (c *Client) enrich(ctx context.Context, name string, number int) error {
	c.track(name)
	if c.EnrichHook != nil {
		c.EnrichHook(ctx, number)
	}

	return c.EnrichErrors[number]
}

func (c *Client) CountReviewComments(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (int, error) {
	if err := c.enrich(ctx, "CountReviewComments", number); err != nil {
		return 0, err
	}
	if c.CommentsFunc != nil {
		return c.CommentsFunc(number)
	}

	return c.Comments[number], nil
}

func (c *Client) IsApproved(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (bool, error) {
	if err := c.enrich(ctx, "IsApproved", number); err != nil {
		return false, err
	}

	return c.Approved[number], nil
}

func (c *Client) CountResolvedConversations(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (int, error) {
	if err := c.enrich(ctx, "CountResolvedConversations", number); err != nil {
		return 0, err
	}

	return c.Resolved[number], nil
}

var _ client.Client = (*Client)(nil)
