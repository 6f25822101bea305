package server

import (
	"encoding/json"
	"net/http"

	"prdash/internal/fanout"
	"prdash/internal/session"
	"prdash/internal/webhook"

	"github.com/pkg/errors"
)

const (
	PullsPath   = "/api/pulls"
	StreamPath  = "/api/pulls/stream"
	ReloadPath  = "/api/reload"
	HealthzPath = "/healthz"
)

func NewHandler(o *Options) http.Handler {
	return newHandler(o, nil)
}

// newHandler builds the routes. Stream viewers are closed once shutdown is
// closed; a nil channel never closes them.
func newHandler(o *Options, shutdown <-chan struct{}) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(o.WebhookPath, webhook.NewHandler(o.Hub, o.Logger.With().Str("component", "webhook").Logger()))
	mux.Handle(o.SocketPath, fanout.NewHandler(o.Hub, o.Logger.With().Str("component", "fanout").Logger()))
	mux.Handle(StreamPath, &streamHandler{cache: o.Cache, shutdown: shutdown, log: o.Logger})

	mux.HandleFunc(PullsPath, func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, o.Cache.View())
	})

	mux.HandleFunc(ReloadPath, func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}

		stats, err := o.Reloader.Reload(r.Context())
		if r.Context().Err() != nil {
			return
		}
		if errors.Is(err, session.ErrNotStarted) {
			writeJSON(w, http.StatusConflict, message{Message: err.Error()})
			return
		}
		if err != nil {
			o.Logger.Error().Err(err).Msg("reload failed")
			writeJSON(w, http.StatusInternalServerError, message{Message: "reload failed"})
			return
		}

		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc(HealthzPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, health{Status: "ok", Viewers: o.Hub.Len()})
	})

	return logRequests(mux, o.Logger)
}

type message struct {
	Message string `json:"message"`
}

type health struct {
	Status  string `json:"status"`
	Viewers int    `json:"viewers"`
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}

	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, message{Message: "method not allowed"})

	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
