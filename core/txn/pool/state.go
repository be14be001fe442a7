package pool

import (
	"fmt"
	"sort"
	"time"

	"go.dedis.ch/mst/core/txn"
	"golang.org/x/xerrors"
)

// State is the mergeable set of pending batches. It maintains an identity
// index to find a batch by its key, and a time index to find the oldest
// batches.
//
// A batch never stays in the state once it is complete according to the
// policy. The batches stored are never modified in place so that copies of a
// state can share them.
type State struct {
	policy Policy
	idx    *indices
}

// NewState returns an empty state that uses the policy to decide when a batch
// leaves. The default policy is used when nil.
func NewState(policy Policy) *State {
	if policy == nil {
		policy = NewQuorumPolicy(DefaultTTL)
	}

	return &State{
		policy: policy,
		idx:    newIndices(),
	}
}

// GetPolicy returns the policy of the state.
func (s *State) GetPolicy() Policy {
	return s.policy
}

// Len returns the number of pending batches.
func (s *State) Len() int {
	return s.idx.len()
}

// Contains returns true if the batch is pending.
func (s *State) Contains(key txn.Key) bool {
	_, found := s.idx.get(key)
	return found
}

// Get returns a copy of the pending batch if it exists.
func (s *State) Get(key txn.Key) (txn.Batch, bool) {
	batch, found := s.idx.get(key)
	if !found {
		return txn.Batch{}, false
	}

	return batch.Clone(), true
}

// GetAll returns a copy of the pending batches ordered from the oldest to the
// newest.
func (s *State) GetAll() []txn.Batch {
	batches := make([]txn.Batch, 0, s.idx.len())

	s.idx.ascend(func(batch txn.Batch) bool {
		batches = append(batches, batch.Clone())
		return true
	})

	return batches
}

// Insert adds the batch to the state. If the batch is already pending, the
// signatures of both views are merged. It returns the batch if it is complete,
// in which case the batch is not in the state anymore.
//
// It returns an error wrapping txn.ErrIdentityConflict if a pending batch has
// the same key but a different content, and the state is left untouched.
func (s *State) Insert(batch txn.Batch) (*txn.Batch, error) {
	key := batch.GetKey()

	existing, found := s.idx.get(key)
	if !found {
		batch = batch.Clone()

		if IsBatchComplete(s.policy, batch) {
			return &batch, nil
		}

		s.idx.put(batch)

		return nil, nil
	}

	merged, err := existing.Union(batch)
	if err != nil {
		return nil, xerrors.Errorf("couldn't insert %v: %w", key, err)
	}

	if IsBatchComplete(s.policy, merged) {
		s.idx.remove(key)

		return &merged, nil
	}

	s.idx.put(merged)

	return nil, nil
}

// Merge adds the batches of the other state into this one. Batches known by
// both are merged. It returns the batches that became complete, ordered by
// key, and that are not in the state anymore. The other state is left
// untouched.
//
// The operation is atomic: if a batch conflicts with a pending one, an error
// wrapping txn.ErrIdentityConflict is returned and the state is left
// untouched.
func (s *State) Merge(other *State) ([]txn.Batch, error) {
	keys := other.sortedKeys()
	batches := make([]txn.Batch, len(keys))

	for i, key := range keys {
		batches[i], _ = other.idx.get(key)
	}

	return s.MergeBatches(batches)
}

// MergeBatches adds the list of batches into the state, as Merge does for the
// batches of a state. The list can contain several views of the same batch,
// and complete batches. It returns the batches that are complete after the
// merge, ordered by key.
func (s *State) MergeBatches(batches []txn.Batch) ([]txn.Batch, error) {
	updates := make(map[txn.Key]txn.Batch, len(batches))
	keys := make([]txn.Key, 0, len(batches))

	for _, batch := range batches {
		key := batch.GetKey()

		current, found := updates[key]
		if !found {
			keys = append(keys, key)
			current, found = s.idx.get(key)
		}

		if !found {
			updates[key] = batch.Clone()
			continue
		}

		merged, err := current.Union(batch)
		if err != nil {
			return nil, xerrors.Errorf("couldn't merge %v: %w", key, err)
		}

		updates[key] = merged
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})

	var graduated []txn.Batch

	for _, key := range keys {
		batch := updates[key]

		if IsBatchComplete(s.policy, batch) {
			s.idx.remove(key)
			graduated = append(graduated, batch)
		} else {
			s.idx.put(batch)
		}
	}

	return graduated, nil
}

// Difference returns a new state with the batches that are unknown to the
// other state, or that have signatures the other state does not know about.
// It is the minimal set of batches to send to a participant whose knowledge is
// the other state.
func (s *State) Difference(other *State) *State {
	res := NewState(s.policy)

	for _, key := range s.sortedKeys() {
		batch, _ := s.idx.get(key)

		otherBatch, found := other.idx.get(key)
		if !found || batch.KnowsMore(otherBatch) {
			res.idx.put(batch)
		}
	}

	return res
}

// Expire removes the batches that are expired at the given time according to
// the policy. It returns them ordered from the oldest to the newest. When the
// policy has a horizon, only the batches created before it are visited,
// otherwise every batch is checked.
func (s *State) Expire(now time.Time) []txn.Batch {
	var keys []txn.Key

	horizon, ok := s.policy.(Horizon)
	if ok {
		keys = s.idx.before(horizon.Horizon(now))
	} else {
		s.idx.ascend(func(batch txn.Batch) bool {
			if s.policy.IsExpired(batch, now) {
				keys = append(keys, batch.GetKey())
			}

			return true
		})
	}

	expired := make([]txn.Batch, 0, len(keys))
	for _, key := range keys {
		batch, _ := s.idx.remove(key)
		expired = append(expired, batch)
	}

	return expired
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	return &State{
		policy: s.policy,
		idx:    s.idx.clone(),
	}
}

// Equal returns true if both states have the same batches with the same
// signatures.
func (s *State) Equal(other *State) bool {
	if s.idx.len() != other.idx.len() {
		return false
	}

	for key, batch := range s.idx.batches {
		otherBatch, found := other.idx.get(key)
		if !found || !batch.Equal(otherBatch) {
			return false
		}
	}

	return true
}

// String implements fmt.Stringer. It returns a short description of the
// state.
func (s *State) String() string {
	return fmt.Sprintf("State[%d]", s.idx.len())
}

func (s *State) sortedKeys() []txn.Key {
	keys := make([]txn.Key, 0, s.idx.len())
	for key := range s.idx.batches {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})

	return keys
}
