package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"prdash/internal/configutils"
	"prdash/internal/domain/pullrequest"
	"prdash/internal/errcodes"
	"prdash/internal/fanout"
	"prdash/internal/loader"
	"prdash/internal/pkg/client"
	"prdash/internal/reconcile"
	"prdash/internal/snapshot"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrNotStarted = errors.New("session has not discovered its repositories yet")

type Options struct {
	Settings *configutils.Settings
	Client   client.Client
	Cache    *snapshot.Cache
	Hub      *fanout.Hub
	Logger   zerolog.Logger
	// Wait overrides the pause between consistency polling attempts.
	Wait func(ctx context.Context, d time.Duration) error
}

// Session is one dashboard: it checks the configured identity, loads the
// open pull requests of the discovered repositories and keeps them up to
// date from the webhook events broadcast on the hub.
type Session struct {
	ID uuid.UUID

	settings   *configutils.Settings
	client     client.Client
	cache      *snapshot.Cache
	hub        *fanout.Hub
	loader     *loader.Loader
	reconciler *reconcile.Reconciler
	log        zerolog.Logger

	mu    sync.Mutex
	repos []pullrequest.RepositoryRef
	// runCtx lives as long as Run; reloads use it instead of the caller's.
	runCtx context.Context
}

func New(o *Options) *Session {
	id := uuid.New()
	log := o.Logger.With().Str("session", id.String()).Logger()

	return &Session{
		ID:       id,
		settings: o.Settings,
		client:   o.Client,
		cache:    o.Cache,
		hub:      o.Hub,
		loader: loader.New(&loader.Options{
			Client:      o.Client,
			Cache:       o.Cache,
			Concurrency: o.Settings.Loader.Concurrency,
			Logger:      log.With().Str("component", "loader").Logger(),
		}),
		reconciler: reconcile.New(&reconcile.Options{
			Client:       o.Client,
			Cache:        o.Cache,
			PollAttempts: o.Settings.Reconcile.PollAttempts,
			PollInterval: o.Settings.Reconcile.PollInterval,
			Logger:       log.With().Str("component", "reconcile").Logger(),
			Wait:         o.Wait,
		}),
		log: log,
	}
}

// Authenticate checks that the token can read the configured owner.
func (s *Session) Authenticate(ctx context.Context) (*client.User, error) {
	u, err := s.client.GetUser(ctx, s.settings.GitHub.Owner)
	if err != nil {
		s.log.Debug().Err(err).Str("owner", s.settings.GitHub.Owner).Msg("identity check failed")
		return nil, errors.Wrap(errcodes.ErrInvalidTokenOrUser, err.Error())
	}

	return u, nil
}

// DiscoverRepositories returns the configured repositories or, when none are
// configured, every repository of the token owned by the configured owner.
func (s *Session) DiscoverRepositories(ctx context.Context) ([]pullrequest.RepositoryRef, error) {
	repos := []pullrequest.RepositoryRef{}

	if len(s.settings.GitHub.Repositories) > 0 {
		for _, name := range s.settings.GitHub.Repositories {
			repo, err := pullrequest.ParseRepository(name)
			if err != nil {
				return nil, errors.Wrapf(err, "configured repository %q", name)
			}
			repos = append(repos, repo)
		}
	} else {
		all, err := s.client.ListRepositories(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list repositories")
		}
		for _, repo := range all {
			if strings.EqualFold(repo.Owner, s.settings.GitHub.Owner) {
				repos = append(repos, repo)
			}
		}
	}

	s.warnSharedNames(repos)

	s.mu.Lock()
	s.repos = repos
	s.mu.Unlock()

	s.log.Info().Int("repositories", len(repos)).Msg("repositories discovered")

	return repos, nil
}

// warnSharedNames logs repositories of different owners sharing a name.
// Groups are keyed by name, so their pull requests end up in one group.
func (s *Session) warnSharedNames(repos []pullrequest.RepositoryRef) {
	owners := map[string]string{}
	for _, r := range repos {
		owner, ok := owners[r.Name]
		if !ok {
			owners[r.Name] = r.Owner
			continue
		}
		if !strings.EqualFold(owner, r.Owner) {
			s.log.Warn().
				Str("name", r.Name).
				Strs("owners", []string{owner, r.Owner}).
				Msg("repositories share a name, their pull requests are grouped together")
		}
	}
}

func (s *Session) Repositories() []pullrequest.RepositoryRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repos
}

// Run authenticates, discovers the repositories, loads them and reconciles
// webhook events until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if _, err := s.Authenticate(ctx); err != nil {
		return err
	}

	repos, err := s.DiscoverRepositories(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	sub := s.hub.Subscribe("")
	defer s.hub.Unsubscribe(sub)

	g.Go(func() error {
		return s.reconciler.Run(ctx, sub.C)
	})
	g.Go(func() error {
		_, err := s.loader.Load(ctx, repos)
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Reload lists the repositories again. Only pull requests not seen by this
// session are enriched. While Run is active the load runs on the session's
// context, so a caller giving up early does not cancel it.
func (s *Session) Reload(ctx context.Context) (*loader.Stats, error) {
	s.mu.Lock()
	repos, loadCtx := s.repos, s.runCtx
	s.mu.Unlock()

	if repos == nil {
		return nil, ErrNotStarted
	}
	if loadCtx == nil {
		loadCtx = ctx
	}

	type result struct {
		stats *loader.Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := s.loader.Load(loadCtx, repos)
		done <- result{stats: stats, err: err}
	}()

	select {
	case r := <-done:
		return r.stats, r.err
	case <-ctx.Done():
		s.log.Info().Msg("reload caller went away, load continues")
		return nil, ctx.Err()
	}
}

// Load runs a single load of repos without the webhook side, for one-shot
// listings.
func (s *Session) Load(ctx context.Context, repos []pullrequest.RepositoryRef) (*loader.Stats, error) {
	s.mu.Lock()
	s.repos = repos
	s.mu.Unlock()

	return s.loader.Load(ctx, repos)
}
