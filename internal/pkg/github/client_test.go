package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"prdash/internal/domain/pullrequest"
	"prdash/internal/pkg/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return New(&ClientOptions{
		Token:      "secret",
		APIURL:     srv.URL,
		GraphQLURL: srv.URL + "/graphql",
	}), srv
}

var widgets = pullrequest.RepositoryRef{Owner: "acme", Name: "widgets"}

func Test_nextLink(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty header", "", ""},
		{
			"next and last",
			`<https://api.github.com/repos/acme/widgets/pulls?page=2>; rel="next", <https://api.github.com/repos/acme/widgets/pulls?page=5>; rel="last"`,
			"https://api.github.com/repos/acme/widgets/pulls?page=2",
		},
		{
			"only prev",
			`<https://api.github.com/repos/acme/widgets/pulls?page=1>; rel="prev"`,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextLink(tt.header))
		})
	}
}

func Test_Client_ListOpenPullRequests(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "open", r.URL.Query().Get("state"))

		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/widgets/pulls?state=open&page=2>; rel="next"`, srvURL))
			writeJSON(w, http.StatusOK, `[{
				"id": 101, "number": 7, "title": "Add gears", "state": "open",
				"html_url": "https://github.com/acme/widgets/pull/7",
				"user": {"login": "octo", "avatar_url": "https://avatars/octo"},
				"created_at": "2024-02-27T09:00:00Z", "updated_at": "2024-02-28T09:00:00Z",
				"requested_reviewers": [{"login": "hubot", "avatar_url": "https://avatars/hubot"}]
			}]`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id": 102, "number": 8, "title": "Fix cogs", "state": "open"}]`)
	})

	c, srv := newTestClient(t, mux)
	srvURL = srv.URL

	prs, err := c.ListOpenPullRequests(context.Background(), widgets)

	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, pullrequest.EntityID(101), prs[0].ID)
	assert.Equal(t, 7, prs[0].Number)
	assert.Equal(t, "octo", prs[0].AuthorLogin)
	assert.Equal(t, []pullrequest.Reviewer{{Name: "hubot", AvatarURL: "https://avatars/hubot"}}, prs[0].Reviewers)
	assert.Equal(t, 2024, prs[0].CreatedAt.Year())
	assert.Equal(t, pullrequest.EntityID(102), prs[1].ID)
	assert.Empty(t, prs[1].Reviewers)
}

func Test_Client_GetPullRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id": 101, "number": 7, "title": "Add gears", "state": "open"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message": "Not Found"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/10", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message": "boom"}`)
	})
	c, _ := newTestClient(t, mux)

	t.Run("returns the pull request", func(t *testing.T) {
		pr, err := c.GetPullRequest(context.Background(), widgets, 7)
		require.NoError(t, err)
		assert.Equal(t, "Add gears", pr.Title)
	})

	t.Run("maps 404 to not found", func(t *testing.T) {
		_, err := c.GetPullRequest(context.Background(), widgets, 9)
		assert.True(t, client.IsNotFound(err))
	})

	t.Run("reports server errors", func(t *testing.T) {
		_, err := c.GetPullRequest(context.Background(), widgets, 10)
		require.Error(t, err)
		assert.False(t, client.IsNotFound(err))
		assert.Contains(t, err.Error(), "boom")
	})
}

func Test_Client_PullsURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/custom/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id": 5, "number": 7}`)
	})
	c, srv := newTestClient(t, mux)

	repo := widgets
	repo.PullsURL = srv.URL + "/custom/pulls{/number}"
	pr, err := c.GetPullRequest(context.Background(), repo, 7)

	require.NoError(t, err)
	assert.Equal(t, pullrequest.EntityID(5), pr.ID)
}

func Test_Client_Enrichment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/7/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id": 1}, {"id": 2}, {"id": 3}]`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"state": "COMMENTED"}, {"state": "APPROVED"}]`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/8/reviews", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"state": "CHANGES_REQUESTED"}]`)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		req := graphqlRequest{}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "acme", req.Variables["owner"])

		if gjson.GetBytes(body, "variables.after").String() == "" {
			writeJSON(w, http.StatusOK, `{"data": {"repository": {"pullRequest": {"reviewThreads": {
				"nodes": [{"isResolved": true}, {"isResolved": false}],
				"pageInfo": {"hasNextPage": true, "endCursor": "c1"}
			}}}}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"data": {"repository": {"pullRequest": {"reviewThreads": {
			"nodes": [{"isResolved": true}],
			"pageInfo": {"hasNextPage": false, "endCursor": "c2"}
		}}}}}`)
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	t.Run("counts review comments", func(t *testing.T) {
		n, err := c.CountReviewComments(ctx, widgets, 7)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("approved when any review approves", func(t *testing.T) {
		ok, err := c.IsApproved(ctx, widgets, 7)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.IsApproved(ctx, widgets, 8)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("counts resolved threads across pages", func(t *testing.T) {
		n, err := c.CountResolvedConversations(ctx, widgets, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func Test_Client_CountResolvedConversations_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data": {"repository": null}, "errors": [{"type": "NOT_FOUND", "message": "Could not resolve"}]}`)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.CountResolvedConversations(context.Background(), widgets, 7)

	assert.True(t, client.IsNotFound(err))
}

func Test_Client_GetUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/acme", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"login": "acme", "name": "Acme Corp", "avatar_url": "https://avatars/acme"}`)
	})
	mux.HandleFunc("/users/ghost", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message": "Bad credentials"}`)
	})
	c, _ := newTestClient(t, mux)

	u, err := c.GetUser(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", u.Name)

	_, err = c.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func Test_Client_ListRepositories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		writeJSON(w, http.StatusOK, `[
			{"name": "widgets", "owner": {"login": "acme"}, "pulls_url": "https://api.github.com/repos/acme/widgets/pulls{/number}"},
			{"name": "gadgets", "owner": {"login": "acme"}, "pulls_url": "https://api.github.com/repos/acme/gadgets/pulls{/number}"}
		]`)
	})
	c, _ := newTestClient(t, mux)

	repos, err := c.ListRepositories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []pullrequest.RepositoryRef{
		{Owner: "acme", Name: "widgets", PullsURL: "https://api.github.com/repos/acme/widgets/pulls"},
		{Owner: "acme", Name: "gadgets", PullsURL: "https://api.github.com/repos/acme/gadgets/pulls"},
	}, repos)
}

func Test_Client_RateLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/acme", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"login": "acme"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(&ClientOptions{APIURL: srv.URL, RateLimit: 1})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := c.GetUser(ctx, "acme")
	require.NoError(t, err)

	cancel()
	_, err = c.GetUser(ctx, "acme")
	assert.Error(t, err)
}
