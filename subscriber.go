package server

import (
	"sync"
	"time"
)

// Transport is the minimal connection surface the hub writes to.
// *websocket.Conn satisfies it; tests substitute recording fakes.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// subscriber serializes writes to one transport. Gorilla connections allow a
// single concurrent writer, so every send goes through the mutex.
type subscriber struct {
	id       uint64
	playerID string
	conn     Transport
	mu       sync.Mutex
}

func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) Close() error {
	return s.conn.Close()
}
