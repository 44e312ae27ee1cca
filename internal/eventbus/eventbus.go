// Package eventbus fans events out to subscribers. Every subscriber has its
// own queue and goroutine, so a slow handler never blocks the publisher or
// other subscribers, and each subscriber sees events in publish order exactly
// once.
package eventbus

import "sync"

// Bus delivers events of type E to subscribers.
type Bus[E any] struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber[E]
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

// New creates an empty bus.
func New[E any]() *Bus[E] {
	return &Bus[E]{subs: make(map[uint64]*subscriber[E])}
}

// Subscribe registers fn and returns a function that removes it. Events
// published before Subscribe are not replayed. Calling the returned function
// more than once is safe; events still queued for fn are dropped.
func (b *Bus[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := b.nextID
	b.nextID++
	sub := newSubscriber(fn)
	b.subs[id] = sub

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sub.run()
	}()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.stop()
	}
}

// Publish queues e for every current subscriber.
func (b *Bus[E]) Publish(e E) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.push(e)
	}
}

// Len returns the number of active subscribers.
func (b *Bus[E]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close removes every subscriber and waits for in-flight handlers to return.
// It must not be called from inside a handler.
func (b *Bus[E]) Close() {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber[E])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	b.wg.Wait()
}

type subscriber[E any] struct {
	fn    func(E)
	mu    sync.Mutex
	cond  *sync.Cond
	queue []E
	done  bool
}

func newSubscriber[E any](fn func(E)) *subscriber[E] {
	s := &subscriber[E]{fn: fn}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscriber[E]) push(e E) {
	s.mu.Lock()
	if !s.done {
		s.queue = append(s.queue, e)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber[E]) stop() {
	s.mu.Lock()
	s.done = true
	s.queue = nil
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscriber[E]) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.done {
			s.cond.Wait()
		}
		if s.done {
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		var zero E
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(e)
	}
}
