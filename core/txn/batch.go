package txn

import (
	"fmt"
	"strings"
	"time"

	"go.dedis.ch/mst/crypto"
	"golang.org/x/xerrors"
)

// Batch is an ordered and non-empty list of transactions that must be
// admitted atomically. A batch is treated as a value: any operation that
// changes the signatures returns a new batch, and Clone must be used before
// mutating a batch shared with someone else.
type Batch struct {
	key Key
	txs []*Transaction
}

// NewBatch creates a batch from the transactions. The key is computed from the
// ordered list of transaction digests.
func NewBatch(txs ...*Transaction) (Batch, error) {
	if len(txs) == 0 {
		return Batch{}, xerrors.New("batch must contain at least one transaction")
	}

	h := crypto.NewSha256Factory().New()

	for i, tx := range txs {
		if len(tx.GetID()) == 0 {
			return Batch{}, xerrors.Errorf("transaction %d has no digest", i)
		}

		_, err := h.Write(tx.GetID())
		if err != nil {
			return Batch{}, xerrors.Errorf("couldn't write digest: %v", err)
		}
	}

	b := Batch{
		txs: txs,
	}

	copy(b.key[:], h.Sum(nil))

	return b, nil
}

// GetKey returns the identifier of the batch.
func (b Batch) GetKey() Key {
	return b.key
}

// GetTransactions returns the transactions of the batch. They must not be
// modified.
func (b Batch) GetTransactions() []*Transaction {
	return b.txs
}

// Len returns the number of transactions.
func (b Batch) Len() int {
	return len(b.txs)
}

// CreatedAt returns the creation time of the batch, which is the creation time
// of its oldest transaction.
func (b Batch) CreatedAt() time.Time {
	var created time.Time

	for i, tx := range b.txs {
		if i == 0 || tx.GetCreatedAt().Before(created) {
			created = tx.GetCreatedAt()
		}
	}

	return created
}

// SignatureCount returns the total number of signatures over the transactions.
func (b Batch) SignatureCount() int {
	count := 0
	for _, tx := range b.txs {
		count += tx.SignatureCount()
	}

	return count
}

// AddSignature returns a new batch where the signature is added to the
// transaction at the given index.
func (b Batch) AddSignature(index int, pubkey, sig []byte) (Batch, error) {
	if index < 0 || index >= len(b.txs) {
		return Batch{}, xerrors.Errorf("index %d out of range [0:%d]", index, len(b.txs))
	}

	res := b.Clone()
	res.txs[index].AddSignature(pubkey, sig)

	return res, nil
}

// Union returns the batch where every transaction has the union of the
// signatures of both views. It returns an error wrapping ErrIdentityConflict if
// the batches do not share the same key and the same content.
func (b Batch) Union(other Batch) (Batch, error) {
	if b.key != other.key {
		return Batch{}, xerrors.Errorf("keys %v and %v differ: %w",
			b.key, other.key, ErrIdentityConflict)
	}

	if len(b.txs) != len(other.txs) {
		return Batch{}, xerrors.Errorf("batch %v has %d and %d transactions: %w",
			b.key, len(b.txs), len(other.txs), ErrIdentityConflict)
	}

	res := Batch{
		key: b.key,
		txs: make([]*Transaction, len(b.txs)),
	}

	for i, tx := range b.txs {
		otherTx := other.txs[i]

		if !tx.sameContent(otherTx) {
			return Batch{}, xerrors.Errorf("batch %v transaction %d differs: %w",
				b.key, i, ErrIdentityConflict)
		}

		merged := tx.Clone()
		merged.sigs = tx.sigs.Union(otherTx.sigs)

		res.txs[i] = merged
	}

	return res, nil
}

// Covers returns true if this view of the batch knows every signature of the
// other view.
func (b Batch) Covers(other Batch) bool {
	if len(b.txs) != len(other.txs) {
		return false
	}

	for i, tx := range b.txs {
		if !tx.sigs.Covers(other.txs[i].sigs) {
			return false
		}
	}

	return true
}

// KnowsMore returns true if this view holds a signature unknown to the other
// view.
func (b Batch) KnowsMore(other Batch) bool {
	return !other.Covers(b)
}

// Equal returns true if both batches have the same content and the same
// signatures.
func (b Batch) Equal(other Batch) bool {
	if b.key != other.key || len(b.txs) != len(other.txs) {
		return false
	}

	for i, tx := range b.txs {
		if !tx.sameContent(other.txs[i]) || !tx.sigs.Equal(other.txs[i].sigs) {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	res := Batch{
		key: b.key,
		txs: make([]*Transaction, len(b.txs)),
	}

	for i, tx := range b.txs {
		res.txs[i] = tx.Clone()
	}

	return res
}

// String implements fmt.Stringer. It returns a short description of the batch.
func (b Batch) String() string {
	txs := make([]string, len(b.txs))
	for i, tx := range b.txs {
		txs[i] = tx.String()
	}

	return fmt.Sprintf("batch{%v [%s]}", b.key, strings.Join(txs, " "))
}
