// Package txn defines the transactions that need several signatories before
// they can be admitted by the consensus.
//
// A transaction declares a quorum, the minimum number of distinct signatories
// it requires. Transactions are grouped in batches that must be admitted
// atomically. A batch is uniquely identified by a key computed from the
// ordered list of transaction digests. Two partial views of the same batch,
// that is two views with different signatures, can be merged with a union
// that never loses a signature.
package txn

import (
	"bytes"
	"fmt"

	"golang.org/x/xerrors"
)

// KeyLength is the length in bytes of a batch key.
const KeyLength = 32

// ErrIdentityConflict is returned when two batches share the same key but
// their transactions differ. Merging them would corrupt the view of a peer,
// therefore the operation must fail.
var ErrIdentityConflict = xerrors.New("identity conflict")

// Key is the identifier of a batch. It is the digest of the ordered list of
// transaction digests.
type Key [KeyLength]byte

// String implements fmt.Stringer. It returns a short string representation of
// the key.
func (k Key) String() string {
	return fmt.Sprintf("%#x", k[:4])
}

// Less returns true when the key is ordered before the other one.
func (k Key) Less(other Key) bool {
	return bytes.Compare(k[:], other[:]) < 0
}
