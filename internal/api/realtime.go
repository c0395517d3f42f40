package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/logger"
	"github.com/julianstephens/streakd/internal/models"
)

const (
	wsWriteWait = 10 * time.Second
	wsMaxRead   = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// token auth, not cookies, so any origin may connect
	CheckOrigin: func(*http.Request) bool { return true },
}

func writeSSE(w io.Writer, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// streamEvents serves the SSE push channel: a connected hello, then one
// data frame per event and a comment line every heartbeat interval
func (s *Server) streamEvents(c *gin.Context) {
	owner := ownerID(c)
	sub := s.hub.Subscribe(owner)
	defer s.hub.Unsubscribe(owner, sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := writeSSE(c.Writer, models.Event{Type: constants.EventConnected}); err != nil {
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done():
			return false
		case ev := <-sub.Events():
			if err := writeSSE(w, ev); err != nil {
				logger.Debug("SSE write failed", "owner", owner, "err", err)
				return false
			}
			return true
		case <-ticker.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return false
			}
			return true
		}
	})
}

// websocketEvents serves the same events as JSON text frames. Pings keep
// the connection alive; the client only needs to answer them.
func (s *Server) websocketEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debug("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	owner := ownerID(c)
	sub := s.hub.Subscribe(owner)
	defer s.hub.Unsubscribe(owner, sub)

	// the read loop handles pongs and notices the client going away
	pongWait := 2 * s.heartbeat
	gone := make(chan struct{})
	conn.SetReadLimit(wsMaxRead)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(ev models.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(ev)
	}
	if err := write(models.Event{Type: constants.EventConnected}); err != nil {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(wsWriteWait))
			return
		case ev := <-sub.Events():
			if err := write(ev); err != nil {
				logger.Debug("WebSocket write failed", "owner", owner, "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
