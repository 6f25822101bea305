package configutils

import (
	"time"

	"prdash/internal/errcodes"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	KeyGitHubToken        = "github.token"
	KeyGitHubOwner        = "github.owner"
	KeyGitHubAPIURL       = "github.api_url"
	KeyGitHubGraphQLURL   = "github.graphql_url"
	KeyGitHubRateLimit    = "github.rate_limit"
	KeyGitHubRepositories = "github.repositories"
	KeyServerAddr         = "server.addr"
	KeyServerWebhookPath  = "server.webhook_path"
	KeyServerSocketPath   = "server.socket_path"
	KeyLoaderConcurrency  = "loader.concurrency"
	KeyPollAttempts       = "reconcile.poll_attempts"
	KeyPollInterval       = "reconcile.poll_interval"
	KeyFanoutBuffer       = "fanout.buffer"
	KeyLogLevel           = "log.level"
	KeyLogFile            = "log.file"
)

var defaults = map[string]interface{}{
	KeyGitHubAPIURL:       "https://api.github.com",
	KeyGitHubGraphQLURL:   "https://api.github.com/graphql",
	KeyGitHubRateLimit:    0,
	KeyGitHubRepositories: []string{},
	KeyServerAddr:         ":8080",
	KeyServerWebhookPath:  "/api/webhook",
	KeyServerSocketPath:   "/api/socket",
	KeyLoaderConcurrency:  3,
	KeyPollAttempts:       3,
	KeyPollInterval:       10 * time.Second,
	KeyFanoutBuffer:       64,
	KeyLogLevel:           "info",
	KeyLogFile:            "",
}

type GitHubSettings struct {
	Token        string
	Owner        string
	APIURL       string
	GraphQLURL   string
	RateLimit    float64
	Repositories []string
}

type ServerSettings struct {
	Addr        string
	WebhookPath string
	SocketPath  string
}

type LoaderSettings struct {
	Concurrency int
}

type ReconcileSettings struct {
	PollAttempts int
	PollInterval time.Duration
}

type FanoutSettings struct {
	Buffer int
}

type LogSettings struct {
	Level string
	File  string
}

type Settings struct {
	GitHub    GitHubSettings
	Server    ServerSettings
	Loader    LoaderSettings
	Reconcile ReconcileSettings
	Fanout    FanoutSettings
	Log       LogSettings
}

func SetDefaults(v *viper.Viper) {
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
}

// ReadSettings reads the typed settings out of v. Validation is left to the
// caller since not every command needs credentials.
func ReadSettings(v *viper.Viper) *Settings {
	return &Settings{
		GitHub: GitHubSettings{
			Token:        v.GetString(KeyGitHubToken),
			Owner:        v.GetString(KeyGitHubOwner),
			APIURL:       v.GetString(KeyGitHubAPIURL),
			GraphQLURL:   v.GetString(KeyGitHubGraphQLURL),
			RateLimit:    v.GetFloat64(KeyGitHubRateLimit),
			Repositories: v.GetStringSlice(KeyGitHubRepositories),
		},
		Server: ServerSettings{
			Addr:        v.GetString(KeyServerAddr),
			WebhookPath: v.GetString(KeyServerWebhookPath),
			SocketPath:  v.GetString(KeyServerSocketPath),
		},
		Loader: LoaderSettings{
			Concurrency: v.GetInt(KeyLoaderConcurrency),
		},
		Reconcile: ReconcileSettings{
			PollAttempts: v.GetInt(KeyPollAttempts),
			PollInterval: v.GetDuration(KeyPollInterval),
		},
		Fanout: FanoutSettings{
			Buffer: v.GetInt(KeyFanoutBuffer),
		},
		Log: LogSettings{
			Level: v.GetString(KeyLogLevel),
			File:  v.GetString(KeyLogFile),
		},
	}
}

// Validate checks the settings needed to run a dashboard session.
func (s *Settings) Validate() error {
	if s.GitHub.Token == "" {
		return errcodes.ErrMissingToken
	}
	if s.GitHub.Owner == "" {
		return errcodes.ErrMissingOwner
	}
	if s.Loader.Concurrency <= 0 {
		return errors.Wrapf(errcodes.ErrInvalidSetting, "%s must be positive, got %d", KeyLoaderConcurrency, s.Loader.Concurrency)
	}
	if s.Reconcile.PollAttempts <= 0 {
		return errors.Wrapf(errcodes.ErrInvalidSetting, "%s must be positive, got %d", KeyPollAttempts, s.Reconcile.PollAttempts)
	}
	if s.Reconcile.PollInterval < 0 {
		return errors.Wrapf(errcodes.ErrInvalidSetting, "%s must not be negative, got %s", KeyPollInterval, s.Reconcile.PollInterval)
	}
	if s.Fanout.Buffer <= 0 {
		return errors.Wrapf(errcodes.ErrInvalidSetting, "%s must be positive, got %d", KeyFanoutBuffer, s.Fanout.Buffer)
	}

	return nil
}
