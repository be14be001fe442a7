// Package core implements the tools shared by the components of the pool.
package core

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.dedis.ch/mst/core/txn"
)

// EventType is the type of outcome a batch reached when it left a pool.
type EventType int

const (
	// EventPrepared is the event of a batch that gathered enough signatures.
	EventPrepared EventType = iota + 1
	// EventExpired is the event of a batch that expired before completion.
	EventExpired
)

func (t EventType) String() string {
	switch t {
	case EventPrepared:
		return "prepared"
	case EventExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Event is the notification of a batch leaving a pool.
type Event struct {
	Type  EventType
	Batch txn.Batch
	At    time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %v", e.Type, e.Batch.GetKey())
}

// Observer is the interface to implement to watch the events of a pool.
// Observers are identified by equality, so an implementation should be
// comparable, typically a pointer. An observer that is not comparable is
// still notified but it cannot be removed.
type Observer interface {
	NotifyCallback(event Event)
}

// Observable provides primitives to add and remove observers and to notify
// them of new events.
type Observable interface {
	// Add adds the observer to the list of observers that will be notified of
	// new events.
	Add(observer Observer)

	// Remove removes the observer from the list thus stopping it from receiving
	// new events.
	Remove(observer Observer)

	// Notify notifies the observers of a new event.
	Notify(event Event)
}

// Watcher is an implementation of the Observable interface. The observers are
// notified in the order they were added.
//
// - implements core.Observable
type Watcher struct {
	sync.Mutex

	observers []Observer
}

// NewWatcher creates a new empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Len returns the number of observers.
func (w *Watcher) Len() int {
	w.Lock()
	defer w.Unlock()

	return len(w.observers)
}

// Add implements core.Observable. An observer already in the list is ignored.
func (w *Watcher) Add(observer Observer) {
	w.Lock()
	defer w.Unlock()

	for _, obs := range w.observers {
		if same(obs, observer) {
			return
		}
	}

	w.observers = append(w.observers, observer)
}

// Remove implements core.Observable.
func (w *Watcher) Remove(observer Observer) {
	w.Lock()
	defer w.Unlock()

	for i, obs := range w.observers {
		if same(obs, observer) {
			w.observers = append(w.observers[:i], w.observers[i+1:]...)
			return
		}
	}
}

// Notify implements core.Observable. The observers are called outside of the
// lock so that they can add or remove observers.
func (w *Watcher) Notify(event Event) {
	w.Lock()
	observers := append([]Observer{}, w.observers...)
	w.Unlock()

	for _, obs := range observers {
		obs.NotifyCallback(event)
	}
}

// same returns true when both observers are equal. It never panics for
// observers that are not comparable.
func same(a, b Observer) bool {
	typ := reflect.TypeOf(a)
	if typ != reflect.TypeOf(b) {
		return false
	}

	if typ != nil && !typ.Comparable() {
		return false
	}

	return a == b
}
