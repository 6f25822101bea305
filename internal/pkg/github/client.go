package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"prdash/internal/configutils"
	"prdash/internal/domain/pullrequest"
	"prdash/internal/errcodes"
	"prdash/internal/pkg/client"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"
)

const apiVersion = "2022-11-28"

var (
	ErrUnauthorized     = errors.New("github rejected the credentials")
	ErrMalformedPayload = errors.New("github returned a malformed payload")
)

type Client struct {
	rc         *resty.Client
	graphqlURL string
	limiter    *rate.Limiter
}

type ClientOptions struct {
	Token      string
	APIURL     string
	GraphQLURL string
	// RateLimit caps outgoing requests per second, 0 disables the cap.
	RateLimit float64
	Logger    resty.Logger
}

func New(o *ClientOptions) *Client {
	rc := resty.New().
		SetHostURL(strings.TrimSuffix(o.APIURL, "/")).
		SetAuthToken(o.Token).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", apiVersion)
	if o.Logger != nil {
		rc.SetLogger(o.Logger)
	}

	c := &Client{
		rc:         rc,
		graphqlURL: o.GraphQLURL,
	}
	if o.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(o.RateLimit), 1)
	}

	return c
}

// DefaultClient builds a client from the github section of the settings.
func DefaultClient(s *configutils.GitHubSettings, logger resty.Logger) (*Client, error) {
	if s.Token == "" {
		return nil, errcodes.ErrMissingToken
	}

	return New(&ClientOptions{
		Token:      s.Token,
		APIURL:     s.APIURL,
		GraphQLURL: s.GraphQLURL,
		RateLimit:  s.RateLimit,
		Logger:     logger,
	}), nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rc.R().
		SetContext(ctx).
		SetError(&githubError{})
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) get(ctx context.Context, request *resty.Request, url string) (*resty.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	log.WithField("url", url).Debug("github GET")

	r, err := request.Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}

	return r, checkResponse(r, url)
}

func checkResponse(r *resty.Response, url string) error {
	if !r.IsError() {
		return nil
	}

	switch r.StatusCode() {
	case http.StatusNotFound:
		return errors.Wrap(client.ErrNotFound, url)
	case http.StatusUnauthorized:
		return errors.Wrap(ErrUnauthorized, url)
	}

	msg := gjson.GetBytes(r.Body(), "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(r.Body()))
	}

	return errors.Errorf("github %s: %s: %s", url, r.Status(), msg)
}

func pullsURL(repo pullrequest.RepositoryRef) string {
	if repo.PullsURL != "" {
		return pullrequest.TrimPullsTemplate(repo.PullsURL)
	}

	return fmt.Sprintf("/repos/%s/%s/pulls", repo.Owner, repo.Name)
}

func (c *Client) GetUser(ctx context.Context, login string) (*client.User, error) {
	r, err := c.get(ctx, c.request(ctx).SetResult(&user{}), "/users/"+login)
	if err != nil {
		return nil, err
	}

	u, ok := r.Result().(*user)
	if !ok || u.Login == "" {
		return nil, ErrMalformedPayload
	}

	return &client.User{
		Login:     u.Login,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}, nil
}

func (c *Client) ListRepositories(ctx context.Context) ([]pullrequest.RepositoryRef, error) {
	it := newPageIterator(&newPageIteratorOptions[pullrequest.RepositoryRef]{
		Client:     c,
		RequestURL: "/user/repos",
		Parse:      parseRepository,
	})

	return it.GetAll(ctx)
}

func (c *Client) ListOpenPullRequests(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
) ([]pullrequest.Record, error) {
	it := newPageIterator(&newPageIteratorOptions[pullrequest.Record]{
		Client:     c,
		RequestURL: pullsURL(repo),
		Query:      map[string]string{"state": "open"},
		Parse:      parsePullRequest,
	})

	return it.GetAll(ctx)
}

func (c *Client) GetPullRequest(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (*pullrequest.Record, error) {
	r, err := c.get(ctx, c.request(ctx), fmt.Sprintf("%s/%d", pullsURL(repo), number))
	if err != nil {
		return nil, err
	}

	pr, err := parsePullRequest(gjson.ParseBytes(r.Body()))
	if err != nil {
		return nil, err
	}

	return &pr, nil
}

func (c *Client) CountReviewComments(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (int, error) {
	it := newPageIterator(&newPageIteratorOptions[int64]{
		Client:     c,
		RequestURL: fmt.Sprintf("%s/%d/comments", pullsURL(repo), number),
		Parse: func(value gjson.Result) (int64, error) {
			return value.Get("id").Int(), nil
		},
	})

	return it.Count(ctx)
}

func (c *Client) IsApproved(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (bool, error) {
	it := newPageIterator(&newPageIteratorOptions[string]{
		Client:     c,
		RequestURL: fmt.Sprintf("%s/%d/reviews", pullsURL(repo), number),
		Parse: func(value gjson.Result) (string, error) {
			return value.Get("state").String(), nil
		},
	})

	states, err := it.GetAll(ctx)
	if err != nil {
		return false, err
	}

	return slices.Contains(states, "APPROVED"), nil
}

// CountResolvedConversations counts the review threads marked as resolved.
// Review thread resolution is only exposed through the GraphQL API.
func (c *Client) CountResolvedConversations(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
) (int, error) {
	count := 0
	var after interface{}

	for {
		threads, err := c.reviewThreads(ctx, repo, number, after)
		if err != nil {
			return 0, err
		}

		count += len(threads.Get("nodes.#(isResolved==true)#").Array())

		if !threads.Get("pageInfo.hasNextPage").Bool() {
			return count, nil
		}
		after = threads.Get("pageInfo.endCursor").String()
	}
}

func (c *Client) reviewThreads(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	number int,
	after interface{},
) (gjson.Result, error) {
	if err := c.wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	r, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(graphqlRequest{
			Query: reviewThreadsQuery,
			Variables: map[string]interface{}{
				"owner":  repo.Owner,
				"name":   repo.Name,
				"number": number,
				"after":  after,
			},
		}).
		Post(c.graphqlURL)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "POST %s", c.graphqlURL)
	}
	if err := checkResponse(r, c.graphqlURL); err != nil {
		return gjson.Result{}, err
	}

	parsed := gjson.ParseBytes(r.Body())
	if errs := parsed.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		first := errs.Array()[0]
		if first.Get("type").String() == "NOT_FOUND" {
			return gjson.Result{}, errors.Wrapf(client.ErrNotFound, "%s#%d", repo.FullName(), number)
		}
		return gjson.Result{}, errors.Errorf("github graphql: %s", first.Get("message").String())
	}

	threads := parsed.Get("data.repository.pullRequest.reviewThreads")
	if !threads.Exists() {
		return gjson.Result{}, errors.Wrapf(client.ErrNotFound, "%s#%d", repo.FullName(), number)
	}

	return threads, nil
}

func parseRepository(value gjson.Result) (pullrequest.RepositoryRef, error) {
	name := value.Get("name").String()
	if name == "" {
		return pullrequest.RepositoryRef{}, ErrMalformedPayload
	}

	return pullrequest.RepositoryRef{
		Owner:    value.Get("owner.login").String(),
		Name:     name,
		PullsURL: pullrequest.TrimPullsTemplate(value.Get("pulls_url").String()),
	}, nil
}

func parsePullRequest(value gjson.Result) (pullrequest.Record, error) {
	if !value.Get("id").Exists() {
		return pullrequest.Record{}, ErrMalformedPayload
	}

	reviewers := []pullrequest.Reviewer{}
	value.Get("requested_reviewers").ForEach(func(_, u gjson.Result) bool {
		reviewers = append(reviewers, pullrequest.Reviewer{
			Name:      u.Get("login").String(),
			AvatarURL: u.Get("avatar_url").String(),
		})
		return true
	})

	return pullrequest.Record{
		ID:              pullrequest.EntityID(value.Get("id").Int()),
		Number:          int(value.Get("number").Int()),
		Title:           value.Get("title").String(),
		AuthorLogin:     value.Get("user.login").String(),
		AuthorAvatarURL: value.Get("user.avatar_url").String(),
		State:           pullrequest.State(value.Get("state").String()),
		HTMLURL:         value.Get("html_url").String(),
		CreatedAt:       value.Get("created_at").Time(),
		UpdatedAt:       value.Get("updated_at").Time(),
		Reviewers:       reviewers,
	}, nil
}

var _ client.Client = (*Client)(nil)
