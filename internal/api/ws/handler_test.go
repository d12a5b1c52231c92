package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pengels22/Shop-Controller/internal/infrastructure/config"
	"github.com/pengels22/Shop-Controller/internal/infrastructure/logging"
	"github.com/pengels22/Shop-Controller/internal/terminal"
)

type noopTailer struct{}

func (noopTailer) Tail(int) []string { return []string{"[no logs for today]"} }

func dialTestServer(t *testing.T, shell string) (*websocket.Conn, *terminal.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	terms := terminal.NewManager(
		config.TerminalConfig{Shell: shell},
		noopTailer{}, nil, logging.NewNop(),
	)
	h := NewHandler(terms, nil, logging.NewNop())

	r := gin.New()
	r.GET("/terminal", h.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/terminal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, terms
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPingPong(t *testing.T) {
	conn, _ := dialTestServer(t, "/bin/cat")

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	conn, _ := dialTestServer(t, "/bin/cat")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))

	// The bad frame is dropped and the connection keeps working.
	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestUnknownTypeReturnsError(t *testing.T) {
	conn, _ := dialTestServer(t, "/bin/cat")

	require.NoError(t, conn.WriteJSON(Message{Type: "bogus"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Err, "bogus")
}

func TestTerminalRoundTrip(t *testing.T) {
	conn, terms := dialTestServer(t, "/bin/cat")

	require.NoError(t, conn.WriteJSON(Message{Type: "term_open", Cols: 80, Rows: 24}))

	// First frame announces the session.
	var seen strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if msg.Type == "term_out" {
			seen.WriteString(msg.Data)
		}
		if strings.Contains(seen.String(), "[connected]") {
			break
		}
	}
	require.Contains(t, seen.String(), "[connected]")
	assert.Equal(t, 1, terms.Count())

	require.NoError(t, conn.WriteJSON(Message{Type: "term_resize", Cols: 120, Rows: 40}))
	require.NoError(t, conn.WriteJSON(Message{Type: "term_in", Data: "echo-me\r"}))

	seen.Reset()
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if msg.Type == "term_out" {
			seen.WriteString(msg.Data)
		}
		if strings.Contains(seen.String(), "echo-me") {
			break
		}
	}
	assert.Contains(t, seen.String(), "echo-me")

	// Dropping the socket tears the session down.
	conn.Close()
	waitUntil(t, func() bool { return terms.Count() == 0 })
}

func TestOpenFailureIsReportedInTerminal(t *testing.T) {
	conn, terms := dialTestServer(t, "/no/such/shell")

	require.NoError(t, conn.WriteJSON(Message{Type: "term_open", Cols: 80, Rows: 24}))

	sawText, sawErr := false, false
	for i := 0; i < 2; i++ {
		msg := readMessage(t, conn)
		switch msg.Type {
		case "term_out":
			assert.Contains(t, msg.Data, "terminal unavailable")
			sawText = true
		case "error":
			assert.NotEmpty(t, msg.Err)
			sawErr = true
		}
	}
	assert.True(t, sawText)
	assert.True(t, sawErr)
	assert.Equal(t, 0, terms.Count())
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
