package directory

import (
	"slices"
	"sync"
)

type Listener func(Event)

// Subscription is released exactly once; further calls are no-ops.
type Subscription interface {
	Release()
}

// SubscriberSet fans events out to registered listeners. Adapters embed it
// and call Publish from their delivery goroutine.
type SubscriberSet struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]Listener
}

func (s *SubscriberSet) Subscribe(l Listener) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[uint64]Listener)
	}
	s.next++
	id := s.next
	s.listeners[id] = l
	return &subscription{set: s, id: id}
}

// Publish calls every listener registered at the time of the call, in
// subscription order.
func (s *SubscriberSet) Publish(ev Event) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	for _, id := range ids {
		s.mu.RLock()
		l, ok := s.listeners[id]
		s.mu.RUnlock()
		if ok {
			l(ev)
		}
	}
}

func (s *SubscriberSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *SubscriberSet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

type subscription struct {
	set  *SubscriberSet
	id   uint64
	once sync.Once
}

func (s *subscription) Release() {
	s.once.Do(func() { s.set.remove(s.id) })
}
