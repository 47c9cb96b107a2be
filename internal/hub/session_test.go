package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialPair upgrades one connection and hands both ends to the test.
func dialPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server = <-serverConns
	t.Cleanup(func() { server.Close() })
	return server, client
}

func TestWritePumpDeliversEnqueuedPayloads(t *testing.T) {
	serverConn, clientConn := dialPair(t)

	session := NewSession(serverConn, 8, time.Second)
	go session.WritePump()
	defer session.Close()

	require.True(t, session.Enqueue([]byte("uno")))
	require.True(t, session.Enqueue([]byte("dos")))

	for _, want := range []string{"uno", "dos"} {
		clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := clientConn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(raw))
	}
}

func TestEnqueueDropsOnFullBuffer(t *testing.T) {
	serverConn, _ := dialPair(t)

	// no write pump running, so the buffer only fills
	session := NewSession(serverConn, 2, time.Second)
	defer session.Close()

	assert.True(t, session.Enqueue([]byte("a")))
	assert.True(t, session.Enqueue([]byte("b")))
	assert.False(t, session.Enqueue([]byte("c")))
}

func TestEnqueueAfterCloseReturnsFalse(t *testing.T) {
	serverConn, _ := dialPair(t)

	session := NewSession(serverConn, 2, time.Second)
	session.Close()
	session.Close() // idempotent

	assert.False(t, session.Enqueue([]byte("late")))

	select {
	case <-session.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestWritePumpStopsWhenPeerDisconnects(t *testing.T) {
	serverConn, clientConn := dialPair(t)

	session := NewSession(serverConn, 8, 100*time.Millisecond)
	pumpDone := make(chan struct{})
	go func() {
		session.WritePump()
		close(pumpDone)
	}()

	clientConn.Close()

	// writes start failing once the peer is gone
	for i := 0; i < 10; i++ {
		session.Enqueue([]byte("x"))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-pumpDone:
	case <-time.After(3 * time.Second):
		t.Fatal("write pump did not exit after disconnect")
	}
}
