// Package ws bridges browser terminals onto PTY sessions over a
// WebSocket. One connection maps to at most one session.
package ws

import (
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/monitoring"
	"github.com/pengels22/Shop-Controller/internal/shared/id"
	"github.com/pengels22/Shop-Controller/internal/terminal"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The controller lives on a trusted shop LAN; origins are not
	// filtered here, CORS policy gates the REST surface.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is the envelope for both directions.
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Err  string `json:"error,omitempty"`
}

// Handler upgrades HTTP connections and routes terminal frames.
type Handler struct {
	terms   *terminal.Manager
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates a WebSocket handler over the terminal manager.
func NewHandler(terms *terminal.Manager, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{terms: terms, metrics: metrics, logger: logger}
}

// Handle serves GET /terminal. It owns the connection until the client
// goes away, then tears the session down.
func (h *Handler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := id.NewConnID().String()
	h.logger.Info("websocket connected",
		zap.String("conn", connID),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	// Gorilla allows one concurrent writer; the PTY reader goroutine
	// and this loop both emit, so writes are serialized.
	var writeMu sync.Mutex
	send := func(msg Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("websocket write failed",
				zap.String("conn", connID),
				zap.Error(err),
			)
		}
	}
	emit := func(text string) {
		send(Message{Type: "term_out", Data: text})
		if h.metrics != nil {
			h.metrics.RecordWSMessage("out", "term_out")
		}
	}

	defer func() {
		h.terms.Disconnect(connID)
		conn.Close()
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
		h.logger.Info("websocket disconnected", zap.String("conn", connID))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed",
					zap.String("conn", connID),
					zap.Error(err),
				)
			}
			return
		}

		// A frame that doesn't parse is ignored, not fatal.
		var msg Message
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.logger.Debug("unparseable frame dropped",
				zap.String("conn", connID),
				zap.Error(err),
			)
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "term_open":
			if err := h.terms.Open(connID, msg.Cols, msg.Rows, emit); err != nil {
				h.logger.Error("terminal open failed",
					zap.String("conn", connID),
					zap.Error(err),
				)
				// Surface the failure inside the terminal itself so the
				// operator sees it without a devtools console.
				send(Message{Type: "term_out", Data: "\r\n[terminal unavailable: " + err.Error() + "]\r\n"})
				send(Message{Type: "error", Err: err.Error()})
			}

		case "term_in":
			h.terms.Route(connID, msg.Data)

		case "term_resize":
			if err := h.terms.Resize(connID, msg.Cols, msg.Rows); err != nil {
				h.logger.Debug("terminal resize failed",
					zap.String("conn", connID),
					zap.Error(err),
				)
			}

		case "ping":
			send(Message{Type: "pong"})

		default:
			send(Message{Type: "error", Err: "unknown message type: " + msg.Type})
		}
	}
}
