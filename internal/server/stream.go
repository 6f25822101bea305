package server

import (
	"net/http"
	"time"

	"prdash/internal/fanout"
	"prdash/internal/snapshot"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

// streamHandler pushes the current view to a websocket viewer, then again
// after every cache change.
type streamHandler struct {
	cache    *snapshot.Cache
	shutdown <-chan struct{}
	log      zerolog.Logger
}

func (h *streamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := fanout.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	changes, stop := h.cache.Watch()
	defer stop()

	done := fanout.ReadUntilClosed(conn)

	send := func() error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(h.cache.View())
	}
	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-changes:
			if err := send(); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-h.shutdown:
			_ = fanout.WriteClose(conn)
			return
		case <-r.Context().Done():
			_ = fanout.WriteClose(conn)
			return
		}
	}
}
