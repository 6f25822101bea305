package pullrequest

import "time"

type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

type EntityID int64

type Reviewer struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// Record is a single open pull request as shown on the dashboard. A record
// with EnrichmentPending set has only the fields known from the listing call.
type Record struct {
	ID                        EntityID   `json:"id"`
	Number                    int        `json:"number"`
	Title                     string     `json:"title"`
	AuthorLogin               string     `json:"authorLogin"`
	AuthorAvatarURL           string     `json:"authorAvatarUrl"`
	State                     State      `json:"state"`
	HTMLURL                   string     `json:"htmlUrl"`
	Approved                  bool       `json:"approved"`
	CommentCount              int        `json:"commentCount"`
	ResolvedConversationCount int        `json:"resolvedConversationCount"`
	CreatedAt                 time.Time  `json:"createdAt"`
	UpdatedAt                 time.Time  `json:"updatedAt"`
	DaysOpen                  int        `json:"daysOpen"`
	Reviewers                 []Reviewer `json:"reviewers"`
	EnrichmentPending         bool       `json:"enrichmentPending"`
}

// DaysSince returns the number of whole days elapsed between created and now.
func DaysSince(created, now time.Time) int {
	if created.IsZero() || now.Before(created) {
		return 0
	}

	return int(now.Sub(created) / (24 * time.Hour))
}

// Placeholder returns a copy of the record stripped of enrichment data.
func (r Record) Placeholder() Record {
	r.Approved = false
	r.CommentCount = 0
	r.ResolvedConversationCount = 0
	r.Reviewers = []Reviewer{}
	r.EnrichmentPending = true

	return r
}

// isOlderThan reports whether r is a strictly older version of other.
// Records without a version never count as older.
func (r Record) isOlderThan(other Record) bool {
	if r.UpdatedAt.IsZero() || other.UpdatedAt.IsZero() {
		return false
	}

	return r.UpdatedAt.Before(other.UpdatedAt)
}

type Group struct {
	RepositoryName string   `json:"repositoryName"`
	PullRequests   []Record `json:"pullRequests"`
}
