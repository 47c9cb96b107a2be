package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const pingPeriod = 50 * time.Second

// Session is one live websocket connection's sending half. Broker deliveries
// land in a buffered channel and a dedicated write pump drains it, so a slow
// reader never blocks publishers or sibling sessions. When the buffer is full
// the delivery is dropped.
type Session struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

// NewSession wraps an upgraded connection. Call WritePump on its own
// goroutine before subscribing the session anywhere.
func NewSession(conn *websocket.Conn, buffer int, writeTimeout time.Duration) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Session{
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// Enqueue hands a payload to the write pump without blocking. It reports
// false when the session is closed or its buffer is full.
func (s *Session) Enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// WritePump drains the outbound buffer onto the wire and keeps the
// connection alive with pings. It returns when the session closes or a write
// fails.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Done is closed when the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
