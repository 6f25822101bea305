package reconcile

import (
	"context"
	"sync"
	"time"

	"prdash/internal/fanout"
	"prdash/internal/pkg/client"
	"prdash/internal/snapshot"
	"prdash/internal/webhook"

	"github.com/rs/zerolog"
)

const (
	DefaultPollAttempts = 3
	DefaultPollInterval = 10 * time.Second
)

type Outcome string

const (
	OutcomeRemoved  Outcome = "removed"
	OutcomeInserted Outcome = "inserted"
	OutcomeReplaced Outcome = "replaced"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeFailed   Outcome = "failed"
)

type Options struct {
	Client       client.Client
	Cache        *snapshot.Cache
	PollAttempts int
	PollInterval time.Duration
	Logger       zerolog.Logger
	// Wait pauses before each polling attempt. Defaults to a timer honoring ctx.
	Wait func(ctx context.Context, d time.Duration) error
}

// Reconciler applies webhook events to the cache. The GitHub API may lag
// behind the webhook, so comment events are confirmed by polling until the
// fetched comment count moves in the expected direction.
type Reconciler struct {
	client   client.Client
	cache    *snapshot.Cache
	attempts int
	interval time.Duration
	wait     func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
}

func New(o *Options) *Reconciler {
	r := &Reconciler{
		client:   o.Client,
		cache:    o.Cache,
		attempts: o.PollAttempts,
		interval: o.PollInterval,
		wait:     o.Wait,
		log:      o.Logger,
	}
	if r.attempts <= 0 {
		r.attempts = DefaultPollAttempts
	}
	if r.interval < 0 {
		r.interval = DefaultPollInterval
	}
	if r.wait == nil {
		r.wait = sleep
	}

	return r
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run handles every message of the channel concurrently until the channel
// is closed or ctx is done, then waits for the handlers in flight.
func (r *Reconciler) Run(ctx context.Context, messages <-chan fanout.Message) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-messages:
			if !ok {
				return nil
			}

			e, err := webhook.Parse(m.Payload)
			if err != nil {
				r.log.Warn().Err(err).Msg("ignoring message")
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Handle(ctx, e)
			}()
		}
	}
}

// Handle applies a single event and reports what happened to the cache.
func (r *Reconciler) Handle(ctx context.Context, e *webhook.Event) Outcome {
	if !e.HasPullRequest() {
		return OutcomeSkipped
	}

	log := r.log.With().
		Str("action", e.Action).
		Str("repository", e.Repository.FullName()).
		Int64("id", int64(e.PullRequest.ID)).
		Int("number", e.PullRequest.Number).
		Logger()

	var outcome Outcome
	switch e.Action {
	case webhook.ActionClosed:
		r.cache.Remove(e.Repository.Name, e.PullRequest.ID)
		outcome = OutcomeRemoved
	case webhook.ActionOpened:
		outcome = r.refresh(ctx, e, log, true)
	case webhook.ActionCreated:
		outcome = r.poll(ctx, e, log, 1)
	case webhook.ActionDeleted:
		outcome = r.poll(ctx, e, log, -1)
	default:
		outcome = r.refresh(ctx, e, log, false)
	}

	log.Debug().Str("outcome", string(outcome)).Msg("event reconciled")

	return outcome
}

func (r *Reconciler) refresh(ctx context.Context, e *webhook.Event, log zerolog.Logger, insert bool) Outcome {
	done := r.cache.BeginReconcile(e.PullRequest.ID)
	defer done()

	fresh, err := client.FetchSingle(ctx, r.client, e.Repository, e.PullRequest.Number)
	if client.IsNotFound(err) {
		log.Debug().Err(err).Msg("pull request not found, skipping")
		return OutcomeSkipped
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch pull request")
		return OutcomeFailed
	}

	if insert {
		r.cache.InsertOrReplace(e.Repository.Name, *fresh)
		return OutcomeInserted
	}

	r.cache.Replace(e.Repository.Name, *fresh)

	return OutcomeReplaced
}

// poll waits for the comment count of the pull request to move by direction
// relative to the cached count, then replaces the cached record. The cache is
// left untouched when every attempt sees the old count.
func (r *Reconciler) poll(ctx context.Context, e *webhook.Event, log zerolog.Logger, direction int) Outcome {
	cached, ok := r.cache.Find(e.Repository.Name, e.PullRequest.ID)
	if !ok {
		log.Debug().Msg("pull request is not on the dashboard, skipping")
		return OutcomeSkipped
	}

	done := r.cache.BeginReconcile(e.PullRequest.ID)
	defer done()

	before := cached.CommentCount
	log = log.With().Int("comments", before).Int("expected", before+direction).Logger()

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := r.wait(ctx, r.interval); err != nil {
			log.Debug().Err(err).Msg("polling interrupted")
			return OutcomeFailed
		}

		fresh, err := client.FetchSingle(ctx, r.client, e.Repository, e.PullRequest.Number)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("polling attempt failed")
			continue
		}

		if moved(before, fresh.CommentCount, direction) {
			r.cache.Replace(e.Repository.Name, *fresh)
			log.Debug().Int("attempt", attempt).Msg("comment count confirmed")
			return OutcomeReplaced
		}
	}

	log.Warn().Int("attempts", r.attempts).Msg("consistency timeout, keeping cached pull request")

	return OutcomeTimeout
}

func moved(before, after, direction int) bool {
	if direction > 0 {
		return after > before
	}

	return after < before
}
