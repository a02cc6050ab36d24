package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject_FanOutInOrder(t *testing.T) {
	s := NewSubject[int]()

	var first, second []int
	s.Subscribe(Observer[int]{Next: func(v int) { first = append(first, v) }})
	s.Subscribe(Observer[int]{Next: func(v int) { second = append(second, v) }})

	s.Next(1)
	s.Next(2)
	s.Next(3)

	assert.Equal(t, []int{1, 2, 3}, first)
	assert.Equal(t, []int{1, 2, 3}, second)
}

func TestSubject_UnsubscribeStopsDelivery(t *testing.T) {
	s := NewSubject[int]()

	var kept, dropped []int
	sub := s.Subscribe(Observer[int]{Next: func(v int) { dropped = append(dropped, v) }})
	s.Subscribe(Observer[int]{Next: func(v int) { kept = append(kept, v) }})

	s.Next(1)
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	s.Next(2)

	assert.Equal(t, []int{1}, dropped)
	assert.Equal(t, []int{1, 2}, kept)
}

func TestSubject_CompleteIsTerminal(t *testing.T) {
	s := NewSubject[int]()

	var received []int
	completed := false
	s.Subscribe(Observer[int]{
		Next:     func(v int) { received = append(received, v) },
		Complete: func() { completed = true },
	})

	s.Next(1)
	s.Complete()
	s.Next(2) // no-op after terminal
	s.Complete()

	assert.Equal(t, []int{1}, received)
	assert.True(t, completed)
	assert.True(t, s.Terminated())
	assert.Zero(t, s.SubscriberCount(), "terminal clears the observer set")

	// Late subscriber gets an immediate complete.
	lateCompleted := false
	s.Subscribe(Observer[int]{
		Next:     func(int) { t.Fatal("late subscriber must not receive values") },
		Complete: func() { lateCompleted = true },
	})
	assert.True(t, lateCompleted)
}

func TestSubject_ErrorIsTerminal(t *testing.T) {
	s := NewSubject[string]()
	boom := errors.New("boom")

	var got error
	s.Subscribe(Observer[string]{Error: func(err error) { got = err }})

	s.Error(boom)
	assert.Equal(t, boom, got)

	// Error after terminal is swallowed.
	s.Error(errors.New("second"))

	var lateErr error
	s.Subscribe(Observer[string]{Error: func(err error) { lateErr = err }})
	assert.Equal(t, boom, lateErr, "late subscriber replays the original error")
}

func TestSubject_ObserverPanicIsolated(t *testing.T) {
	s := NewSubject[int]()

	var redirected error
	var after []int
	s.Subscribe(Observer[int]{
		Next:  func(int) { panic(errors.New("observer exploded")) },
		Error: func(err error) { redirected = err },
	})
	s.Subscribe(Observer[int]{Next: func(v int) { after = append(after, v) }})

	require.NotPanics(t, func() { s.Next(7) })

	require.Error(t, redirected)
	assert.Contains(t, redirected.Error(), "observer exploded")
	assert.Equal(t, []int{7}, after, "panic must not abort dispatch to later observers")
	assert.False(t, s.Terminated(), "observer panic must not terminate the stream")
}

func TestSubject_ObserverPanicWithoutErrorCallback(t *testing.T) {
	s := NewSubject[int]()
	var after []int

	s.Subscribe(Observer[int]{Next: func(int) { panic("no error callback") }})
	s.Subscribe(Observer[int]{Next: func(v int) { after = append(after, v) }})

	require.NotPanics(t, func() { s.Next(1) })
	assert.Equal(t, []int{1}, after)
}

func TestFilter_ForwardsMatchingValues(t *testing.T) {
	parent := NewSubject[int]()
	evens := Filter(parent, func(v int) bool { return v%2 == 0 })

	var got []int
	evens.Subscribe(Observer[int]{Next: func(v int) { got = append(got, v) }})

	for v := 1; v <= 6; v++ {
		parent.Next(v)
	}
	assert.Equal(t, []int{2, 4, 6}, got)
}

func TestFilter_LazyParentSubscription(t *testing.T) {
	parent := NewSubject[int]()
	view := Filter(parent, func(int) bool { return true })

	assert.Zero(t, parent.SubscriberCount(), "no parent subscription without view subscribers")

	sub := view.Subscribe(Observer[int]{Next: func(int) {}})
	assert.Equal(t, 1, parent.SubscriberCount())

	second := view.Subscribe(Observer[int]{Next: func(int) {}})
	assert.Equal(t, 1, parent.SubscriberCount(), "view holds a single parent subscription")

	sub.Unsubscribe()
	assert.Equal(t, 1, parent.SubscriberCount())

	second.Unsubscribe()
	assert.Zero(t, parent.SubscriberCount(), "last view unsubscribe releases the parent")

	// Re-subscribing re-acquires the parent link.
	var got []int
	view.Subscribe(Observer[int]{Next: func(v int) { got = append(got, v) }})
	assert.Equal(t, 1, parent.SubscriberCount())
	parent.Next(42)
	assert.Equal(t, []int{42}, got)
}

func TestFilter_ParentTerminationPropagates(t *testing.T) {
	parent := NewSubject[int]()
	view := Filter(parent, func(int) bool { return true })

	completed := false
	view.Subscribe(Observer[int]{Complete: func() { completed = true }})

	parent.Complete()
	assert.True(t, completed)
	assert.True(t, view.Terminated())
	assert.Zero(t, parent.SubscriberCount())
}

func TestFilter_SubscribeAfterParentTerminal(t *testing.T) {
	parent := NewSubject[int]()
	parent.Complete()

	view := Filter(parent, func(int) bool { return true })
	completed := false
	view.Subscribe(Observer[int]{Complete: func() { completed = true }})

	assert.True(t, completed, "terminal parent replays complete through the view")
	assert.Zero(t, parent.SubscriberCount())
}

func TestFilter_ValuesBeforeSubscribeAreMissed(t *testing.T) {
	parent := NewSubject[int]()
	view := Filter(parent, func(int) bool { return true })

	parent.Next(1) // view has no subscribers, so no parent link exists

	var got []int
	view.Subscribe(Observer[int]{Next: func(v int) { got = append(got, v) }})
	parent.Next(2)

	assert.Equal(t, []int{2}, got)
}
