package acceptance

import (
	"sync"
)

const (
	EventSnapshot = "snapshot"
	EventNavigate = "navigate"
)

const DefaultWatchBuffer = 16

// PageEvent is one message pushed to page observers.
type PageEvent struct {
	Type       string      `json:"type"`
	Snapshot   *Snapshot   `json:"snapshot,omitempty"`
	Navigation *Navigation `json:"navigation,omitempty"`
}

// Stream fans page events out to watchers. New watchers first receive the
// latest snapshot and navigation.
type Stream struct {
	mu     sync.Mutex
	subs   map[uint64]chan PageEvent
	nextID uint64
	closed bool
	buffer int

	lastSnapshot   *PageEvent
	lastNavigation *PageEvent
}

type Watch struct {
	stream *Stream
	id     uint64
	ch     chan PageEvent
	once   sync.Once
}

func NewStream() *Stream {
	return &Stream{subs: make(map[uint64]chan PageEvent), buffer: DefaultWatchBuffer}
}

func (s *Stream) Publish(event PageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	switch event.Type {
	case EventSnapshot:
		s.lastSnapshot = &event
	case EventNavigate:
		s.lastNavigation = &event
	}
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Watch subscribes to the stream. On a closed stream the channel is already closed.
func (s *Stream) Watch() *Watch {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan PageEvent, s.buffer+2)
	w := &Watch{stream: s, ch: ch}
	if s.lastSnapshot != nil {
		ch <- *s.lastSnapshot
	}
	if s.lastNavigation != nil {
		ch <- *s.lastNavigation
	}
	if s.closed {
		close(ch)
		return w
	}
	w.id = s.nextID
	s.nextID++
	s.subs[w.id] = ch
	return w
}

// Close ends every watch.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (w *Watch) Events() <-chan PageEvent {
	if w == nil {
		return nil
	}
	return w.ch
}

func (w *Watch) Close() {
	if w == nil || w.stream == nil {
		return
	}
	w.once.Do(func() {
		w.stream.mu.Lock()
		defer w.stream.mu.Unlock()
		if ch, ok := w.stream.subs[w.id]; ok {
			delete(w.stream.subs, w.id)
			close(ch)
		}
	})
}
