package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mst/core/txn"
)

func TestEventType_String(t *testing.T) {
	require.Equal(t, "prepared", EventPrepared.String())
	require.Equal(t, "expired", EventExpired.String())
	require.Equal(t, "unknown", EventType(0).String())
}

func TestEvent_String(t *testing.T) {
	batch := makeBatch(t)

	evt := Event{Type: EventExpired, Batch: batch}
	require.Equal(t, "expired "+batch.GetKey().String(), evt.String())
}

func TestWatcher_Add(t *testing.T) {
	watcher := NewWatcher()

	watcher.Add(newFakeObserver())
	require.Equal(t, 1, watcher.Len())

	obs := newFakeObserver()
	watcher.Add(obs)
	require.Equal(t, 2, watcher.Len())

	watcher.Add(obs)
	require.Equal(t, 2, watcher.Len())
}

func TestWatcher_Remove(t *testing.T) {
	watcher := NewWatcher()
	watcher.Add(newFakeObserver())

	obs := newFakeObserver()
	watcher.Add(obs)
	require.Equal(t, 2, watcher.Len())

	watcher.Remove(obs)
	require.Equal(t, 1, watcher.Len())

	watcher.Remove(obs)
	require.Equal(t, 1, watcher.Len())
}

func TestWatcher_Notify(t *testing.T) {
	watcher := NewWatcher()

	first := newFakeObserver()
	second := newFakeObserver()
	watcher.Add(first)
	watcher.Add(second)

	batch := makeBatch(t)
	watcher.Notify(Event{Type: EventPrepared, Batch: batch, At: time.Unix(1, 0)})

	for _, obs := range []*fakeObserver{first, second} {
		require.Len(t, obs.events, 1)
		require.Equal(t, EventPrepared, obs.events[0].Type)
		require.Equal(t, batch.GetKey(), obs.events[0].Batch.GetKey())
	}
}

func TestWatcher_RemoveWhileNotified(t *testing.T) {
	watcher := NewWatcher()

	obs := &selfRemover{watcher: watcher}
	watcher.Add(obs)

	watcher.Notify(Event{Type: EventExpired})
	require.Equal(t, 0, watcher.Len())
	require.Equal(t, 1, obs.calls)
}

func TestWatcher_NotComparable(t *testing.T) {
	watcher := NewWatcher()

	obs := sliceObserver{events: &[]Event{}, tags: []string{"a"}}

	require.NotPanics(t, func() {
		watcher.Add(obs)
		watcher.Add(newFakeObserver())
		watcher.Remove(obs)
	})
	require.Equal(t, 2, watcher.Len())

	watcher.Notify(Event{Type: EventPrepared})
	require.Len(t, *obs.events, 1)
}

// -----------------------------------------------------------------------------
// Utility functions

type sliceObserver struct {
	events *[]Event
	tags   []string
}

func (o sliceObserver) NotifyCallback(evt Event) {
	*o.events = append(*o.events, evt)
}

type fakeObserver struct {
	events []Event
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{}
}

func (o *fakeObserver) NotifyCallback(evt Event) {
	o.events = append(o.events, evt)
}

type selfRemover struct {
	watcher *Watcher
	calls   int
}

func (o *selfRemover) NotifyCallback(Event) {
	o.calls++
	o.watcher.Remove(o)
}

func makeBatch(t *testing.T) txn.Batch {
	tx, err := txn.NewTransaction([]byte("A"), 1, time.Unix(1, 0))
	require.NoError(t, err)

	batch, err := txn.NewBatch(tx)
	require.NoError(t, err)

	return batch
}
