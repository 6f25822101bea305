package pullrequest

import (
	"time"

	"golang.org/x/exp/slices"
)

// Snapshot is the grouped view of open pull requests, one group per
// repository name. A Snapshot is never mutated in place: every operation
// returns a new value and leaves the receiver untouched, so a Snapshot can be
// shared freely once published.
type Snapshot []Group

func (s Snapshot) groupIndex(repo string) int {
	return slices.IndexFunc(s, func(g Group) bool {
		return g.RepositoryName == repo
	})
}

func recordIndex(records []Record, id EntityID) int {
	return slices.IndexFunc(records, func(r Record) bool {
		return r.ID == id
	})
}

// Group returns the group for repo, if any.
func (s Snapshot) Group(repo string) (Group, bool) {
	i := s.groupIndex(repo)
	if i == -1 {
		return Group{}, false
	}

	return s[i], true
}

// Find returns the record with id inside repo's group.
func (s Snapshot) Find(repo string, id EntityID) (Record, bool) {
	g, ok := s.Group(repo)
	if !ok {
		return Record{}, false
	}

	i := recordIndex(g.PullRequests, id)
	if i == -1 {
		return Record{}, false
	}

	return g.PullRequests[i], true
}

// Locate searches every group for id and returns the owning repository name.
func (s Snapshot) Locate(id EntityID) (string, Record, bool) {
	for _, g := range s {
		if i := recordIndex(g.PullRequests, id); i != -1 {
			return g.RepositoryName, g.PullRequests[i], true
		}
	}

	return "", Record{}, false
}

// Len returns the total number of records.
func (s Snapshot) Len() int {
	n := 0
	for _, g := range s {
		n += len(g.PullRequests)
	}

	return n
}

// withGroup returns a copy of s where group i has the given records. An empty
// records slice drops the group.
func (s Snapshot) withGroup(i int, records []Record) Snapshot {
	next := slices.Clone(s)
	if len(records) == 0 {
		return slices.Delete(next, i, i+1)
	}

	next[i] = Group{RepositoryName: s[i].RepositoryName, PullRequests: records}

	return next
}

// UpsertPlaceholder inserts rec into repo's group, creating the group if it
// does not exist. It is a no-op when a record with the same id is already
// present.
func (s Snapshot) UpsertPlaceholder(repo string, rec Record) Snapshot {
	if _, _, ok := s.Locate(rec.ID); ok {
		return s
	}

	return s.appendRecord(repo, rec)
}

// Replace swaps the record with rec.ID inside repo's group. It is a no-op
// when the record is absent or when rec is an older version than the cached
// one.
func (s Snapshot) Replace(repo string, rec Record) Snapshot {
	gi := s.groupIndex(repo)
	if gi == -1 {
		return s
	}

	records := s[gi].PullRequests
	ri := recordIndex(records, rec.ID)
	if ri == -1 || rec.isOlderThan(records[ri]) {
		return s
	}

	next := slices.Clone(records)
	next[ri] = rec

	return s.withGroup(gi, next)
}

// Remove deletes the record with id from repo's group and drops the group
// when it becomes empty.
func (s Snapshot) Remove(repo string, id EntityID) Snapshot {
	gi := s.groupIndex(repo)
	if gi == -1 {
		return s
	}

	records := s[gi].PullRequests
	ri := recordIndex(records, id)
	if ri == -1 {
		return s
	}

	next := slices.Delete(slices.Clone(records), ri, ri+1)

	return s.withGroup(gi, next)
}

// InsertOrReplace replaces the record when present in repo's group and
// appends it otherwise. A record with the same id filed under another
// repository is moved.
func (s Snapshot) InsertOrReplace(repo string, rec Record) Snapshot {
	owner, cached, ok := s.Locate(rec.ID)
	switch {
	case !ok:
		return s.appendRecord(repo, rec)
	case rec.isOlderThan(cached):
		return s
	case owner == repo:
		return s.Replace(repo, rec)
	default:
		return s.Remove(owner, rec.ID).appendRecord(repo, rec)
	}
}

func (s Snapshot) appendRecord(repo string, rec Record) Snapshot {
	gi := s.groupIndex(repo)
	if gi == -1 {
		next := slices.Clone(s)
		return append(next, Group{
			RepositoryName: repo,
			PullRequests:   []Record{rec},
		})
	}

	records := s[gi].PullRequests
	next := make([]Record, 0, len(records)+1)
	next = append(next, records...)
	next = append(next, rec)

	return s.withGroup(gi, next)
}

// WithDaysOpen recomputes DaysOpen on every record against now.
func (s Snapshot) WithDaysOpen(now time.Time) Snapshot {
	next := make(Snapshot, 0, len(s))
	for _, g := range s {
		records := make([]Record, len(g.PullRequests))
		for i, r := range g.PullRequests {
			r.DaysOpen = DaysSince(r.CreatedAt, now)
			records[i] = r
		}
		next = append(next, Group{RepositoryName: g.RepositoryName, PullRequests: records})
	}

	return next
}
