package sinks

import (
	"context"
	"sync"

	"walnut-woods/server/logging"
)

// MemorySink records events in order for test assertions.
type MemorySink struct {
	mu     sync.Mutex
	events []logging.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := make([]logging.Event, len(s.events))
	copy(cloned, s.events)
	return cloned
}
