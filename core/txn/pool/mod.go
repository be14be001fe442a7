// Package pool defines the pending pool of multi-signature transactions. The
// pool holds the batches that do not have enough signatures yet, until they
// either gather their quorum or expire.
//
// The State is the mergeable container of pending batches. It is not safe for
// concurrent use: the implementations of Pool own a state and serialize the
// accesses to it. The state never talks to the network or to the consensus,
// every operation instead returns the batches that left the pool so that the
// owner can route them.
package pool

import (
	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/mino"
)

// Admission is the collaborator that receives the batches that gathered enough
// signatures. Each batch is admitted exactly once.
type Admission interface {
	Admit(batch txn.Batch) error
}

// Notifier is the collaborator that receives the batches that expired before
// gathering enough signatures. The batch holds the last known signatures.
type Notifier interface {
	NotifyExpired(batch txn.Batch) error
}

// Pool is the maintainer of the pending batches.
type Pool interface {
	// Len returns the number of pending batches.
	Len() int

	// Contains returns true if the batch is pending.
	Contains(key txn.Key) bool

	// Snapshot returns a copy of the pending state.
	Snapshot() *State

	// SetPlayers updates the list of participants that should eventually
	// receive the signatures of the pending batches.
	SetPlayers(players mino.Players) error

	// Add adds the batch to the pool, or merges its signatures with the
	// pending view of the batch.
	Add(batch txn.Batch) error

	// Close cleans the resources of the pool.
	Close() error
}
