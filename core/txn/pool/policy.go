package pool

import (
	"time"

	"go.dedis.ch/mst/core/txn"
)

// DefaultTTL is the time a batch can stay in the pool with the default policy.
const DefaultTTL = 24 * time.Hour

// Policy decides when a batch leaves the pool. Implementations must be pure
// functions of their inputs.
type Policy interface {
	// IsComplete returns true if the transaction has enough signatures.
	IsComplete(tx *txn.Transaction) bool

	// IsExpired returns true if the batch has been pending for too long at the
	// given time.
	IsExpired(batch txn.Batch, now time.Time) bool
}

// IsBatchComplete returns true when every transaction of the batch is complete
// according to the policy.
func IsBatchComplete(p Policy, batch txn.Batch) bool {
	for _, tx := range batch.GetTransactions() {
		if !p.IsComplete(tx) {
			return false
		}
	}

	return batch.Len() > 0
}

// Horizon is an optional capability of a policy whose expiration only depends
// on the creation time of the batches. A batch is expired at the given time if
// and only if it was created strictly before the horizon. The pool uses it to
// find the expired batches with a range query of the time index instead of a
// full scan.
type Horizon interface {
	Horizon(now time.Time) time.Time
}

// quorumPolicy is the default policy. A transaction is complete when it has
// at least as many distinct signatories as its quorum, and a batch expires
// after a fixed time-to-live.
//
// - implements pool.Policy
// - implements pool.Horizon
type quorumPolicy struct {
	ttl time.Duration
}

// NewQuorumPolicy returns the default policy with the given time-to-live.
func NewQuorumPolicy(ttl time.Duration) Policy {
	return quorumPolicy{ttl: ttl}
}

// IsComplete implements pool.Policy. It returns true when the number of
// distinct signatories reaches the quorum.
func (p quorumPolicy) IsComplete(tx *txn.Transaction) bool {
	return tx.SignatureCount() >= tx.GetQuorum()
}

// IsExpired implements pool.Policy. It returns true when the batch is older
// than the time-to-live.
func (p quorumPolicy) IsExpired(batch txn.Batch, now time.Time) bool {
	return now.Sub(batch.CreatedAt()) > p.ttl
}

// Horizon implements pool.Horizon. A batch is expired when it was created
// more than the time-to-live before the given time.
func (p quorumPolicy) Horizon(now time.Time) time.Time {
	return now.Add(-p.ttl)
}

// PolicyFuncs is a policy made of a pair of functions. A missing completion
// function falls back to the quorum rule, and a missing expiration function
// never expires a batch.
//
// - implements pool.Policy
type PolicyFuncs struct {
	Complete func(tx *txn.Transaction) bool
	Expired  func(batch txn.Batch, now time.Time) bool
}

// IsComplete implements pool.Policy.
func (p PolicyFuncs) IsComplete(tx *txn.Transaction) bool {
	if p.Complete == nil {
		return tx.SignatureCount() >= tx.GetQuorum()
	}

	return p.Complete(tx)
}

// IsExpired implements pool.Policy.
func (p PolicyFuncs) IsExpired(batch txn.Batch, now time.Time) bool {
	if p.Expired == nil {
		return false
	}

	return p.Expired(batch, now)
}
