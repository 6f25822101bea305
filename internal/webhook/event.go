package webhook

import (
	"encoding/json"

	"prdash/internal/domain/pullrequest"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	ActionOpened  = "opened"
	ActionClosed  = "closed"
	ActionCreated = "created"
	ActionDeleted = "deleted"
)

var ErrInvalidPayload = errors.New("webhook payload is not valid JSON")

// Event is the part of a GitHub webhook delivery the dashboard acts on.
type Event struct {
	Action     string
	Repository pullrequest.RepositoryRef
	// PullRequest is nil when the delivery does not reference a pull request.
	PullRequest *pullrequest.Record
	// ReviewState is set on pull_request_review deliveries.
	ReviewState string
	// CommentResolved is set when the delivery carries comment.isResolved.
	CommentResolved *bool
	Raw             json.RawMessage
}

// Parse normalizes a webhook payload. Unknown fields are ignored and missing
// ones are left empty.
func Parse(payload []byte) (*Event, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrInvalidPayload
	}

	p := gjson.ParseBytes(payload)
	e := &Event{
		Action: p.Get("action").String(),
		Repository: pullrequest.RepositoryRef{
			Owner: p.Get("repository.owner.login").String(),
			Name:  p.Get("repository.name").String(),
			PullsURL: pullrequest.TrimPullsTemplate(
				p.Get("repository.pulls_url").String(),
			),
		},
		ReviewState: p.Get("review.state").String(),
		Raw:         json.RawMessage(payload),
	}

	if resolved := p.Get("comment.isResolved"); resolved.Exists() {
		b := resolved.Bool()
		e.CommentResolved = &b
	}

	if pr := p.Get("pull_request"); pr.IsObject() && pr.Get("id").Exists() {
		e.PullRequest = &pullrequest.Record{
			ID:              pullrequest.EntityID(pr.Get("id").Int()),
			Number:          int(pr.Get("number").Int()),
			Title:           pr.Get("title").String(),
			AuthorLogin:     pr.Get("user.login").String(),
			AuthorAvatarURL: pr.Get("user.avatar_url").String(),
			State:           pullrequest.State(pr.Get("state").String()),
			HTMLURL:         pr.Get("html_url").String(),
			CreatedAt:       pr.Get("created_at").Time(),
			UpdatedAt:       pr.Get("updated_at").Time(),
		}
	}

	return e, nil
}

// Topic is the routing key of the event, empty when the repository is unknown.
func (e *Event) Topic() string {
	return e.Repository.Topic()
}

func (e *Event) HasPullRequest() bool {
	return e.PullRequest != nil && e.Repository.Name != ""
}
