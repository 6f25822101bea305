package pullrequest

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id EntityID, title string) Record {
	return Record{ID: id, Number: int(id), Title: title, State: StateOpen}
}

func Test_UpsertPlaceholder(t *testing.T) {
	t.Run("creates the group when it is missing", func(t *testing.T) {
		s := Snapshot{}.UpsertPlaceholder("widgets", rec(101, "a"))

		require.Len(t, s, 1)
		assert.Equal(t, "widgets", s[0].RepositoryName)
		assert.Equal(t, EntityID(101), s[0].PullRequests[0].ID)
	})

	t.Run("appends to an existing group in discovery order", func(t *testing.T) {
		s := Snapshot{}.
			UpsertPlaceholder("widgets", rec(1, "a")).
			UpsertPlaceholder("widgets", rec(2, "b"))

		g, ok := s.Group("widgets")
		require.True(t, ok)
		assert.Equal(t, []EntityID{1, 2}, ids(g.PullRequests))
	})

	t.Run("is idempotent for the same id", func(t *testing.T) {
		once := Snapshot{}.UpsertPlaceholder("widgets", rec(1, "a"))
		twice := once.UpsertPlaceholder("widgets", rec(1, "changed"))

		assert.Equal(t, once, twice)
	})

	t.Run("does not alias the previous snapshot", func(t *testing.T) {
		prev := Snapshot{}.UpsertPlaceholder("widgets", rec(1, "a"))
		_ = prev.UpsertPlaceholder("widgets", rec(2, "b"))

		assert.Len(t, prev[0].PullRequests, 1)
	})
}

func Test_Replace(t *testing.T) {
	base := Snapshot{}.UpsertPlaceholder("widgets", rec(1, "a").Placeholder())

	t.Run("replaces the record with the same id", func(t *testing.T) {
		full := rec(1, "full")
		full.CommentCount = 4

		s := base.Replace("widgets", full)

		r, ok := s.Find("widgets", 1)
		require.True(t, ok)
		assert.Equal(t, "full", r.Title)
		assert.False(t, r.EnrichmentPending)
		assert.True(t, base[0].PullRequests[0].EnrichmentPending)
	})

	t.Run("is a no-op when the record is absent", func(t *testing.T) {
		s := base.Replace("widgets", rec(2, "other"))
		assert.Equal(t, base, s)

		s = base.Replace("gadgets", rec(1, "other"))
		assert.Equal(t, base, s)
	})

	t.Run("rejects an older version", func(t *testing.T) {
		now := time.Now()
		newer := rec(1, "newer")
		newer.UpdatedAt = now
		older := rec(1, "older")
		older.UpdatedAt = now.Add(-time.Minute)

		s := base.Replace("widgets", newer).Replace("widgets", older)

		r, _ := s.Find("widgets", 1)
		assert.Equal(t, "newer", r.Title)
	})
}

func Test_Remove(t *testing.T) {
	t.Run("drops the group once it is empty", func(t *testing.T) {
		s := Snapshot{}.UpsertPlaceholder("widgets", rec(101, "a"))

		s = s.Remove("widgets", 101)

		_, ok := s.Group("widgets")
		assert.False(t, ok)
		assert.Len(t, s, 0)
	})

	t.Run("keeps the group while records remain", func(t *testing.T) {
		s := Snapshot{}.
			UpsertPlaceholder("widgets", rec(1, "a")).
			UpsertPlaceholder("widgets", rec(2, "b")).
			UpsertPlaceholder("gadgets", rec(3, "c"))

		s = s.Remove("widgets", 1)

		g, ok := s.Group("widgets")
		require.True(t, ok)
		assert.Equal(t, []EntityID{2}, ids(g.PullRequests))
		assert.Len(t, s, 2)
	})

	t.Run("is a no-op for unknown ids", func(t *testing.T) {
		s := Snapshot{}.UpsertPlaceholder("widgets", rec(1, "a"))
		assert.Equal(t, s, s.Remove("widgets", 9))
		assert.Equal(t, s, s.Remove("gadgets", 1))
	})
}

func Test_InsertOrReplace(t *testing.T) {
	t.Run("appends when absent", func(t *testing.T) {
		s := Snapshot{}.InsertOrReplace("widgets", rec(1, "a"))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("replaces when present", func(t *testing.T) {
		s := Snapshot{}.
			InsertOrReplace("widgets", rec(1, "a")).
			InsertOrReplace("widgets", rec(1, "b"))

		r, _ := s.Find("widgets", 1)
		assert.Equal(t, "b", r.Title)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("moves a record filed under another repository", func(t *testing.T) {
		s := Snapshot{}.
			InsertOrReplace("old-name", rec(1, "a")).
			InsertOrReplace("new-name", rec(1, "a"))

		_, ok := s.Group("old-name")
		assert.False(t, ok)
		_, ok = s.Find("new-name", 1)
		assert.True(t, ok)
	})
}

func Test_WithDaysOpen(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	r := rec(1, "a")
	r.CreatedAt = now.Add(-49 * time.Hour)

	s := Snapshot{}.UpsertPlaceholder("widgets", r).WithDaysOpen(now)

	got, _ := s.Find("widgets", 1)
	assert.Equal(t, 2, got.DaysOpen)
	assert.Equal(t, 0, DaysSince(time.Time{}, now))
	assert.Equal(t, 0, DaysSince(now.Add(time.Hour), now))
}

func Test_SnapshotInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	repos := []string{"widgets", "gadgets", "gizmos"}
	s := Snapshot{}

	for i := 0; i < 2000; i++ {
		repo := repos[rnd.Intn(len(repos))]
		id := EntityID(rnd.Intn(20))

		switch rnd.Intn(4) {
		case 0:
			s = s.UpsertPlaceholder(repo, rec(id, "p").Placeholder())
		case 1:
			s = s.Replace(repo, rec(id, "r"))
		case 2:
			s = s.InsertOrReplace(repo, rec(id, "i"))
		case 3:
			s = s.Remove(repo, id)
		}

		seen := map[EntityID]bool{}
		names := map[string]bool{}
		for _, g := range s {
			assert.NotEmpty(t, g.PullRequests, "empty group %s", g.RepositoryName)
			assert.False(t, names[g.RepositoryName], "duplicated group %s", g.RepositoryName)
			names[g.RepositoryName] = true

			for _, r := range g.PullRequests {
				assert.False(t, seen[r.ID], "duplicated id %d", r.ID)
				seen[r.ID] = true
			}
		}
	}
}

func ids(records []Record) []EntityID {
	out := make([]EntityID, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}

	return out
}
