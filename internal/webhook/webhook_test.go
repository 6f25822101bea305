package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prdash/internal/domain/pullrequest"
	"prdash/internal/fanout"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const closedPayload = `{
	"action": "closed",
	"repository": {"name": "widgets", "owner": {"login": "acme"}},
	"pull_request": {
		"id": 101, "number": 7, "title": "Add gears", "state": "closed",
		"html_url": "https://github.com/acme/widgets/pull/7",
		"created_at": "2024-02-27T09:00:00Z",
		"user": {"login": "octo"}
	}
}`

type recordingHub struct {
	messages  []fanout.Message
	delivered int
}

func (h *recordingHub) Broadcast(m fanout.Message) int {
	h.messages = append(h.messages, m)
	return h.delivered
}

func Test_Parse(t *testing.T) {
	t.Run("normalizes a pull request delivery", func(t *testing.T) {
		e, err := Parse([]byte(closedPayload))

		require.NoError(t, err)
		assert.Equal(t, ActionClosed, e.Action)
		assert.Equal(t, "acme/widgets", e.Topic())
		require.True(t, e.HasPullRequest())
		assert.Equal(t, pullrequest.EntityID(101), e.PullRequest.ID)
		assert.Equal(t, 7, e.PullRequest.Number)
		assert.Equal(t, "octo", e.PullRequest.AuthorLogin)
		assert.Equal(t, 27, e.PullRequest.CreatedAt.Day())
		assert.Nil(t, e.CommentResolved)
	})

	t.Run("reads review and comment details", func(t *testing.T) {
		e, err := Parse([]byte(`{
			"action": "submitted",
			"review": {"state": "approved"},
			"comment": {"isResolved": true},
			"repository": {"name": "widgets", "owner": {"login": "acme"}}
		}`))

		require.NoError(t, err)
		assert.Equal(t, "approved", e.ReviewState)
		require.NotNil(t, e.CommentResolved)
		assert.True(t, *e.CommentResolved)
		assert.False(t, e.HasPullRequest())
	})

	t.Run("accepts deliveries without repository", func(t *testing.T) {
		e, err := Parse([]byte(`{"zen": "Keep it logically awesome."}`))

		require.NoError(t, err)
		assert.Equal(t, "", e.Topic())
		assert.False(t, e.HasPullRequest())
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := Parse([]byte(`{"action":`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func Test_Handler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantBody   string
		wantSent   int
	}{
		{
			name:       "broadcasts a valid delivery",
			method:     http.MethodPost,
			body:       closedPayload,
			wantStatus: http.StatusOK,
			wantBody:   `{"message":"webhook received and event broadcast","delivered":2}`,
			wantSent:   1,
		},
		{
			name:       "rejects other methods",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"message":"method not allowed"}`,
		},
		{
			name:       "rejects invalid JSON",
			method:     http.MethodPost,
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"webhook payload is not valid JSON"}`,
		},
		{
			name:       "rejects an empty body",
			method:     http.MethodPost,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"webhook payload is not valid JSON"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := &recordingHub{delivered: 2}
			h := NewHandler(hub, zerolog.Nop())
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/webhook", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			require.Len(t, hub.messages, tt.wantSent)
		})
	}

	t.Run("forwards the payload verbatim with its topic", func(t *testing.T) {
		hub := &recordingHub{}
		h := NewHandler(hub, zerolog.Nop())

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(closedPayload)))

		require.Len(t, hub.messages, 1)
		assert.Equal(t, fanout.EventType, hub.messages[0].Type)
		assert.Equal(t, "acme/widgets", hub.messages[0].Topic)
		assert.Equal(t, closedPayload, string(hub.messages[0].Payload))
	})

	t.Run("works against a real hub", func(t *testing.T) {
		hub := fanout.NewHub(4, zerolog.Nop())
		s := hub.Subscribe("")
		h := NewHandler(hub, zerolog.Nop())
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(closedPayload)))

		assert.Contains(t, rec.Body.String(), `"delivered":1`)
		m := <-s.C
		assert.Equal(t, closedPayload, string(m.Payload))
	})
}
