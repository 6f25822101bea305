package loader

import (
	"context"
	"sync"
	"sync/atomic"

	"prdash/internal/domain/pullrequest"
	"prdash/internal/pkg/client"
	"prdash/internal/snapshot"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const DefaultConcurrency = 3

type Options struct {
	Client client.Client
	Cache  *snapshot.Cache
	// Arena defaults to a fresh one.
	Arena *Arena
	// Concurrency caps the enrichments running at once across every Load.
	Concurrency int
	Logger      zerolog.Logger
}

// Loader fills the cache with the open pull requests of a set of
// repositories. Every newly listed pull request shows up at once as a
// placeholder and is enriched later through a shared, bounded FIFO queue.
type Loader struct {
	client client.Client
	cache  *snapshot.Cache
	arena  *Arena
	sem    *semaphore.Weighted
	log    zerolog.Logger
}

type Stats struct {
	Repositories int64
	Listed       int64
	Scheduled    int64
	Enriched     int64
	Failed       int64
	// Dropped counts tasks abandoned because the load was cancelled. Their
	// ids are forgotten so the next load schedules them again.
	Dropped int64
}

func New(o *Options) *Loader {
	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	arena := o.Arena
	if arena == nil {
		arena = NewArena()
	}

	return &Loader{
		client: o.Client,
		cache:  o.Cache,
		arena:  arena,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		log:    o.Logger,
	}
}

func (l *Loader) Arena() *Arena {
	return l.arena
}

// Load lists every repository concurrently and blocks until each scheduled
// enrichment has finished. Pull requests already in the arena are skipped,
// so calling Load again only enriches new pull requests.
func (l *Loader) Load(ctx context.Context, repos []pullrequest.RepositoryRef) (*Stats, error) {
	stats := &Stats{}
	q := newFIFO()

	var listers sync.WaitGroup
	for _, repo := range repos {
		listers.Add(1)
		go func(repo pullrequest.RepositoryRef) {
			defer listers.Done()
			l.listRepository(ctx, repo, q, stats)
		}(repo)
	}
	go func() {
		listers.Wait()
		q.close()
	}()

	var workers sync.WaitGroup
	for {
		t, ok := q.pop(ctx)
		if !ok {
			break
		}
		if ctx.Err() != nil || l.sem.Acquire(ctx, 1) != nil {
			l.drop(t, stats)
			break
		}

		workers.Add(1)
		go func(t task) {
			defer workers.Done()
			defer l.sem.Release(1)
			l.enrich(ctx, t, stats)
		}(t)
	}

	workers.Wait()
	listers.Wait()
	for _, t := range q.drain() {
		l.drop(t, stats)
	}

	l.log.Info().
		Int64("repositories", stats.Repositories).
		Int64("listed", stats.Listed).
		Int64("enriched", stats.Enriched).
		Int64("failed", stats.Failed).
		Int64("dropped", stats.Dropped).
		Msg("load finished")

	return stats, ctx.Err()
}

func (l *Loader) listRepository(
	ctx context.Context,
	repo pullrequest.RepositoryRef,
	q *fifo,
	stats *Stats,
) {
	log := l.log.With().Str("repository", repo.FullName()).Logger()

	prs, err := l.client.ListOpenPullRequests(ctx, repo)
	if client.IsNotFound(err) {
		log.Debug().Err(err).Msg("repository not found, skipping")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to list pull requests")
		return
	}

	atomic.AddInt64(&stats.Repositories, 1)
	atomic.AddInt64(&stats.Listed, int64(len(prs)))

	for _, pr := range prs {
		if !l.arena.Mark(pr.ID) {
			continue
		}

		l.cache.UpsertPlaceholder(repo.Name, pr.Placeholder())
		atomic.AddInt64(&stats.Scheduled, 1)
		q.push(task{repo: repo, pr: pr})
	}
}

func (l *Loader) enrich(ctx context.Context, t task, stats *Stats) {
	e, err := client.Enrich(ctx, l.client, t.repo, t.pr.Number)
	if err != nil && ctx.Err() != nil {
		l.drop(t, stats)
		return
	}
	if err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		l.log.Error().
			Err(err).
			Str("repository", t.repo.FullName()).
			Int("number", t.pr.Number).
			Msg("enrichment failed, keeping placeholder")
		return
	}

	atomic.AddInt64(&stats.Enriched, 1)
	l.cache.Replace(t.repo.Name, e.Apply(t.pr))
}

// drop abandons a task of a cancelled load. The placeholder stays and the id
// is forgotten, so the next load enriches it.
func (l *Loader) drop(t task, stats *Stats) {
	atomic.AddInt64(&stats.Dropped, 1)
	l.arena.Forget(t.pr.ID)
	l.log.Warn().
		Str("repository", t.repo.FullName()).
		Int("number", t.pr.Number).
		Msg("load cancelled before enrichment, keeping placeholder until the next load")
}
