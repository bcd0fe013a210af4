package sink

import (
	"context"
	"fmt"
	"sync"

	"planning-poker/domain/event"
)

var (
	ErrSinkFull   = fmt.Errorf("connection buffer is full")
	ErrSinkClosed = fmt.Errorf("connection is closed")
)

// ConnectionSink queues events for one connection. The connection's write
// pump drains Events; Consume waits at most until ctx expires.
type ConnectionSink struct {
	mu     sync.RWMutex
	events chan event.DomainEvent
	closed bool
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{events: make(chan event.DomainEvent, bufferSize)}
}

func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.events <- e:
		return nil
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrSinkFull, ctx.Err())
	}
}

// Events is closed by Close.
func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Close is idempotent; later Consume calls fail with ErrSinkClosed.
func (s *ConnectionSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
