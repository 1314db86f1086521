package capabilities

import "sync"

// StreamMixin fans one producer's values out to any number of subscribers
// registered after the stream started, replaying nothing: a late
// subscriber only sees values sent after it joined. No agent in this
// module holds a StreamMixin; it is available to callers that need
// in-process fan-out.
type StreamMixin[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// NewStreamMixin constructs an empty StreamMixin.
func NewStreamMixin[T any]() *StreamMixin[T] {
	return &StreamMixin[T]{subs: map[int]chan T{}}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel has a small buffer; a slow subscriber
// that never drains it will block Publish.
func (s *StreamMixin[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan T, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[id]; ok {
			close(ch)
			delete(s.subs, id)
		}
	}
}

// Publish sends value to every current subscriber.
func (s *StreamMixin[T]) Publish(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		ch <- value
	}
}

// Close closes every subscriber's channel. Publish must not be called
// after Close.
func (s *StreamMixin[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
