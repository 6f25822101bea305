package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"prdash/internal/fanout"

	"github.com/rs/zerolog"
)

// GitHub caps webhook payloads at 25 MB.
const maxPayloadSize = 25 << 20

type Broadcaster interface {
	Broadcast(fanout.Message) int
}

type response struct {
	Message   string `json:"message"`
	Delivered *int   `json:"delivered,omitempty"`
}

// Handler accepts webhook deliveries and broadcasts them verbatim to every
// connected viewer.
type Handler struct {
	hub Broadcaster
	log zerolog.Logger
}

func NewHandler(hub Broadcaster, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, log: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, response{Message: "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "could not read payload"})
		return
	}

	e, err := Parse(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: err.Error()})
		return
	}

	delivered := h.hub.Broadcast(fanout.NewEvent(e.Topic(), body))

	h.log.Info().
		Str("event", r.Header.Get("X-GitHub-Event")).
		Str("delivery", r.Header.Get("X-GitHub-Delivery")).
		Str("action", e.Action).
		Str("repository", e.Topic()).
		Int("delivered", delivered).
		Msg("webhook received")

	writeJSON(w, http.StatusOK, response{
		Message:   "webhook received and event broadcast",
		Delivered: &delivered,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
