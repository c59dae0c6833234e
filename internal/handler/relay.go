package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"scanbridge/internal/relay"
)

const (
	relayReadLimit = 2 * 1024 * 1024
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
)

// RelayHandler upgrades the relay route to a websocket and bridges the
// transport to the broker: the read loop posts inbound frames, the broker
// loop writes everything outbound. There is no authentication here: a
// valid-shaped token is the credential for joining its fan-out group.
type RelayHandler struct {
	Broker *relay.Broker
}

var relayUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *RelayHandler) Serve(c *gin.Context) {
	ws, err := relayUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := relay.NewConn(&wsWriter{conn: ws})
	h.Broker.Attach(conn, c.Query("token"))
	defer func() {
		h.Broker.Detach(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(relayReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pongWait * 9 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.Broker.Inbound(conn, data)
	}
}
