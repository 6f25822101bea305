package fanout

import (
	"net/http"
	"time"

	"prdash/internal/domain/pullrequest"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Viewers are served from any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ParseTopic turns an "owner/name" query value into a topic. An empty value
// is the unscoped topic.
func ParseTopic(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	repo, err := pullrequest.ParseRepository(value)
	if err != nil {
		return "", err
	}

	return repo.Topic(), nil
}

// Handler serves the fanout channel over websocket. The optional
// "repository" query parameter scopes the connection to one repository.
type Handler struct {
	hub *Hub
	log zerolog.Logger
}

func NewHandler(hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, log: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic, err := ParseTopic(r.URL.Query().Get("repository"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(topic)
	defer h.hub.Unsubscribe(sub)

	done := ReadUntilClosed(conn)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case m, ok := <-sub.C:
			if !ok {
				_ = WriteClose(conn)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				h.log.Debug().Err(err).Str("viewer", sub.ID.String()).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// ReadUntilClosed discards inbound frames and closes the returned channel
// once the peer goes away.
func ReadUntilClosed(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	return done
}

func WriteClose(conn *websocket.Conn) error {
	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait),
	)

	return errors.Wrap(err, "write close frame")
}
