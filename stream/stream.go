// Package stream provides a minimal publish-subscribe primitive with
// multi-subscriber fan-out and terminal error/complete signals, plus lazy
// filtered views over a parent stream.
//
// A Subject dispatches values to observers in subscription order. A panic in
// one observer's Next callback is recovered and redirected to that observer's
// Error callback; it never aborts dispatch to subsequent observers and never
// reaches the publisher. Once a Subject terminates (Error or Complete) it
// accepts no further signals; late subscribers receive the terminal signal
// immediately.
package stream

import (
	"fmt"
	"sync"
)

// Observer bundles the three subscriber callbacks. Any of them may be nil.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// Subscription is the handle returned by Subject.Subscribe. Unsubscribe is
// idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the observer from future dispatch.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

type registration[T any] struct {
	id       uint64
	observer Observer[T]
}

// Subject is a multicast stream of values of type T. The zero value is not
// usable; create instances with NewSubject.
type Subject[T any] struct {
	mu        sync.Mutex
	observers []*registration[T]
	nextID    uint64
	completed bool
	errored   bool
	err       error

	// Lazy-view hooks, invoked outside the subject lock when the observer
	// count transitions 0->1 and 1->0. Set only by Filter.
	onActive func()
	onIdle   func()
}

// NewSubject creates an open Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe registers an observer and returns its subscription handle. If the
// subject has already terminated, the observer's terminal callback fires
// synchronously and the returned subscription is inert.
func (s *Subject[T]) Subscribe(observer Observer[T]) *Subscription {
	s.mu.Lock()
	if s.errored {
		err := s.err
		s.mu.Unlock()
		if observer.Error != nil {
			safeError(observer, err)
		}
		return &Subscription{}
	}
	if s.completed {
		s.mu.Unlock()
		if observer.Complete != nil {
			safeComplete(observer)
		}
		return &Subscription{}
	}

	s.nextID++
	reg := &registration[T]{id: s.nextID, observer: observer}
	s.observers = append(s.observers, reg)
	becameActive := len(s.observers) == 1
	onActive := s.onActive
	s.mu.Unlock()

	if becameActive && onActive != nil {
		onActive()
	}

	return &Subscription{cancel: func() { s.remove(reg.id) }}
}

// remove drops the registration with the given id, firing the idle hook when
// the last observer leaves.
func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	for i, reg := range s.observers {
		if reg.id == id {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			break
		}
	}
	becameIdle := len(s.observers) == 0 && !s.completed && !s.errored
	onIdle := s.onIdle
	s.mu.Unlock()

	if becameIdle && onIdle != nil {
		onIdle()
	}
}

// Next dispatches a value to every currently-registered observer in
// subscription order. No-op after termination.
func (s *Subject[T]) Next(value T) {
	s.mu.Lock()
	if s.completed || s.errored {
		s.mu.Unlock()
		return
	}
	snapshot := make([]*registration[T], len(s.observers))
	copy(snapshot, s.observers)
	s.mu.Unlock()

	for _, reg := range snapshot {
		safeNext(reg.observer, value)
	}
}

// Error terminates the stream with err. Registered observers receive their
// Error callback and the observer set is cleared.
func (s *Subject[T]) Error(err error) {
	s.mu.Lock()
	if s.completed || s.errored {
		s.mu.Unlock()
		return
	}
	s.errored = true
	s.err = err
	snapshot := s.observers
	s.observers = nil
	onIdle := s.onIdle
	s.mu.Unlock()

	for _, reg := range snapshot {
		safeError(reg.observer, err)
	}
	if len(snapshot) > 0 && onIdle != nil {
		onIdle()
	}
}

// Complete terminates the stream normally. Registered observers receive their
// Complete callback and the observer set is cleared.
func (s *Subject[T]) Complete() {
	s.mu.Lock()
	if s.completed || s.errored {
		s.mu.Unlock()
		return
	}
	s.completed = true
	snapshot := s.observers
	s.observers = nil
	onIdle := s.onIdle
	s.mu.Unlock()

	for _, reg := range snapshot {
		safeComplete(reg.observer)
	}
	if len(snapshot) > 0 && onIdle != nil {
		onIdle()
	}
}

// Terminated reports whether the subject has errored or completed.
func (s *Subject[T]) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed || s.errored
}

// SubscriberCount returns the number of active observers.
func (s *Subject[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// safeNext invokes the observer's Next callback, converting a panic into a
// call to the same observer's Error callback. Dispatch to other observers is
// unaffected.
func safeNext[T any](observer Observer[T], value T) {
	if observer.Next == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("observer panic: %v", r)
			}
			safeError(observer, err)
		}
	}()
	observer.Next(value)
}

func safeError[T any](observer Observer[T], err error) {
	if observer.Error == nil {
		return
	}
	defer func() {
		// An error callback that panics is dropped; it must never reach
		// the publisher or sibling observers.
		_ = recover()
	}()
	observer.Error(err)
}

func safeComplete[T any](observer Observer[T]) {
	if observer.Complete == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	observer.Complete()
}

// Filter returns a lazy view of parent containing only values for which pred
// returns true. The view holds a subscription to the parent only while it has
// at least one subscriber of its own: the last unsubscribe releases the
// parent subscription, and a later subscribe re-acquires it. Parent
// termination propagates to the view.
func Filter[T any](parent *Subject[T], pred func(T) bool) *Subject[T] {
	derived := NewSubject[T]()

	var linkMu sync.Mutex
	var parentSub *Subscription

	derived.onActive = func() {
		linkMu.Lock()
		if parentSub != nil {
			linkMu.Unlock()
			return
		}
		linkMu.Unlock()

		// Subscribe without holding linkMu: a terminal parent replays its
		// signal synchronously, which terminates the derived subject and
		// re-enters the idle hook.
		sub := parent.Subscribe(Observer[T]{
			Next: func(value T) {
				if pred(value) {
					derived.Next(value)
				}
			},
			Error:    derived.Error,
			Complete: derived.Complete,
		})

		linkMu.Lock()
		parentSub = sub
		linkMu.Unlock()

		// The derived subject may have gone idle or terminal while the
		// parent subscription was being established.
		if derived.Terminated() || derived.SubscriberCount() == 0 {
			linkMu.Lock()
			parentSub = nil
			linkMu.Unlock()
			sub.Unsubscribe()
		}
	}
	derived.onIdle = func() {
		linkMu.Lock()
		sub := parentSub
		parentSub = nil
		linkMu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
	}

	return derived
}
