package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	closeTimeout = time.Second
)

// wsSink adapts a gorilla WebSocket connection to the session's outbound
// contract. Writes are serialized by a lock; Close is idempotent and sends
// a close frame carrying the teardown reason before dropping the socket.
type wsSink struct {
	conn *websocket.Conn

	mu   sync.Mutex
	once sync.Once
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{conn: conn}
}

func (s *wsSink) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *wsSink) Close(reason string) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		deadline := time.Now().Add(closeTimeout)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
		err = s.conn.Close()
	})
	return err
}
