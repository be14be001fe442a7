package pool

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mst/core/txn"
	"pgregory.net/rapid"
)

const (
	numTemplates = 4
	numSigners   = 5
)

// templates returns a fixed list of unsigned batches. Some batches have
// several transactions so that the completion of a batch depends on every
// transaction.
func templates(t require.TestingT, quorum int) []txn.Batch {
	batches := make([]txn.Batch, numTemplates)

	for i := range batches {
		txs := make([]*txn.Transaction, i%2+1)
		for j := range txs {
			createdAt := epoch.Add(time.Duration(i) * time.Second)
			txs[j] = makeTx(t, fmt.Sprintf("%d-%d", i, j), quorum, createdAt)
		}

		batches[i] = makeBatch(t, txs...)
	}

	return batches
}

// drawState draws a state made of partial views of the templates. A signatory
// may have produced two different signatures for the same transaction.
func drawState(t *rapid.T, label string, batches []txn.Batch, policy Policy) *State {
	s := NewState(policy)

	n := rapid.IntRange(0, 8).Draw(t, label+"-inserts")
	for i := 0; i < n; i++ {
		batch := batches[rapid.IntRange(0, len(batches)-1).Draw(t, label+"-batch")]

		for j := 0; j < batch.Len(); j++ {
			signer := rapid.IntRange(0, numSigners-1).Draw(t, label+"-signer")
			variant := rapid.IntRange(0, 1).Draw(t, label+"-variant")

			var err error
			batch, err = batch.AddSignature(j, []byte{byte(signer)}, []byte{byte(variant)})
			require.NoError(t, err)
		}

		_, err := s.Insert(batch)
		require.NoError(t, err)
	}

	checkState(t, s)

	return s
}

func TestState_Merge_Commutative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		quorum := rapid.IntRange(1, numSigners).Draw(t, "quorum")
		batches := templates(t, quorum)

		a := drawState(t, "a", batches, nil)
		b := drawState(t, "b", batches, nil)

		ab := a.Clone()
		gab, err := ab.Merge(b)
		require.NoError(t, err)

		ba := b.Clone()
		gba, err := ba.Merge(a)
		require.NoError(t, err)

		require.True(t, ab.Equal(ba))
		requireSameBatches(t, gab, gba)

		checkState(t, ab)
		checkState(t, ba)
	})
}

func TestState_Merge_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		quorum := rapid.IntRange(1, numSigners).Draw(t, "quorum")
		batches := templates(t, quorum)

		a := drawState(t, "a", batches, nil)

		aa := a.Clone()
		graduated, err := aa.Merge(a)
		require.NoError(t, err)
		require.Empty(t, graduated)
		require.True(t, aa.Equal(a))

		graduated, err = aa.Merge(a)
		require.NoError(t, err)
		require.Empty(t, graduated)
		require.True(t, aa.Equal(a))
	})
}

func TestState_Merge_Associative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// The quorum cannot be reached so that no batch leaves the states
		// during the merges.
		batches := templates(t, numSigners+1)

		a := drawState(t, "a", batches, nil)
		b := drawState(t, "b", batches, nil)
		c := drawState(t, "c", batches, nil)

		left := a.Clone()
		_, err := left.Merge(b)
		require.NoError(t, err)
		_, err = left.Merge(c)
		require.NoError(t, err)

		bc := b.Clone()
		_, err = bc.Merge(c)
		require.NoError(t, err)
		right := a.Clone()
		_, err = right.Merge(bc)
		require.NoError(t, err)

		require.True(t, left.Equal(right))
	})
}

func TestState_Difference_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		batches := templates(t, numSigners+1)

		a := drawState(t, "a", batches, nil)
		b := drawState(t, "b", batches, nil)

		diff := a.Difference(b)
		checkState(t, diff)

		knows := true
		for _, batch := range a.GetAll() {
			other, found := b.Get(batch.GetKey())
			covered := found && other.Covers(batch)

			require.Equal(t, !covered, diff.Contains(batch.GetKey()))
			knows = knows && covered
		}

		require.Equal(t, knows, diff.Len() == 0)

		// Sending the difference brings the other side up to date.
		_, err := b.Merge(diff)
		require.NoError(t, err)
		require.Equal(t, 0, a.Difference(b).Len())
	})
}

func TestState_Insert_Graduation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		quorum := rapid.IntRange(1, numSigners).Draw(t, "quorum")
		batch := makeBatch(t, makeTx(t, "A", quorum, epoch))

		s := NewState(nil)
		signers := make(map[int]struct{})

		for len(signers) < quorum {
			signer := rapid.IntRange(0, numSigners-1).Draw(t, "signer")
			signers[signer] = struct{}{}

			view, err := batch.AddSignature(0, []byte{byte(signer)}, nil)
			require.NoError(t, err)

			graduated, err := s.Insert(view)
			require.NoError(t, err)

			if len(signers) < quorum {
				require.Nil(t, graduated)
				require.True(t, s.Contains(batch.GetKey()))
			} else {
				require.NotNil(t, graduated)
				require.Equal(t, quorum, graduated.SignatureCount())
				require.False(t, s.Contains(batch.GetKey()))
			}

			checkState(t, s)
		}
	})
}

func TestState_Expire_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ttl := time.Duration(rapid.IntRange(0, 10).Draw(t, "ttl")) * time.Second
		now := epoch.Add(time.Duration(rapid.IntRange(0, 15).Draw(t, "now")) * time.Second)

		policy := NewQuorumPolicy(ttl)
		batches := templates(t, numSigners+1)

		s := drawState(t, "s", batches, policy)
		before := s.Clone()

		expired := s.Expire(now)
		checkState(t, s)

		for _, batch := range expired {
			require.True(t, now.Sub(batch.CreatedAt()) > ttl)
			require.False(t, s.Contains(batch.GetKey()))
		}

		for _, batch := range s.GetAll() {
			require.False(t, now.Sub(batch.CreatedAt()) > ttl)

			prev, found := before.Get(batch.GetKey())
			require.True(t, found)
			require.True(t, prev.Equal(batch))
		}

		require.Equal(t, before.Len(), s.Len()+len(expired))
	})
}

func requireSameBatches(t require.TestingT, a, b []txn.Batch) {
	require.Len(t, b, len(a))

	sortBatches(a)
	sortBatches(b)

	for i := range a {
		require.True(t, a[i].Equal(b[i]))
	}
}

func sortBatches(batches []txn.Batch) {
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].GetKey().Less(batches[j].GetKey())
	})
}
