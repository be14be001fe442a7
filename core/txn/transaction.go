package txn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"go.dedis.ch/mst/crypto"
	"golang.org/x/xerrors"
)

// Transaction is a transaction that requires a quorum of distinct signatories.
// Its digest covers the payload, the quorum and the creation time but never
// the signatures so that every partial view of the transaction shares the
// same identifier.
type Transaction struct {
	hash      []byte
	payload   []byte
	quorum    int
	createdAt time.Time
	sigs      *SignatureSet
}

type template struct {
	Transaction

	hashFactory crypto.HashFactory
}

// TransactionOption is the type of options to create a transaction.
type TransactionOption func(*template)

// WithSignatures is an option to set the initial signatures.
func WithSignatures(sigs ...Signature) TransactionOption {
	return func(tmpl *template) {
		for _, sig := range sigs {
			tmpl.sigs.Add(sig.PublicKey, sig.Data)
		}
	}
}

// WithHash is an option to use the digest declared by the sender of the
// transaction instead of computing it.
func WithHash(id []byte) TransactionOption {
	return func(tmpl *template) {
		tmpl.hash = append([]byte{}, id...)
	}
}

// WithHashFactory is an option to set a different hash factory when creating a
// transaction.
func WithHashFactory(f crypto.HashFactory) TransactionOption {
	return func(tmpl *template) {
		tmpl.hashFactory = f
	}
}

// NewTransaction creates a new transaction with the provided payload, quorum
// and creation time.
func NewTransaction(payload []byte, quorum int, createdAt time.Time,
	opts ...TransactionOption) (*Transaction, error) {

	tmpl := template{
		Transaction: Transaction{
			payload:   append([]byte{}, payload...),
			quorum:    quorum,
			createdAt: createdAt,
			sigs:      NewSignatureSet(),
		},
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	if len(tmpl.hash) == 0 {
		h := tmpl.hashFactory.New()
		err := tmpl.Fingerprint(h)
		if err != nil {
			return nil, xerrors.Errorf("couldn't fingerprint tx: %v", err)
		}

		tmpl.hash = h.Sum(nil)
	}

	return &tmpl.Transaction, nil
}

// GetID returns the digest of the transaction.
func (t *Transaction) GetID() []byte {
	return t.hash
}

// GetPayload returns the payload of the transaction.
func (t *Transaction) GetPayload() []byte {
	return t.payload
}

// GetQuorum returns the minimum number of distinct signatories.
func (t *Transaction) GetQuorum() int {
	return t.quorum
}

// GetCreatedAt returns the creation time of the transaction.
func (t *Transaction) GetCreatedAt() time.Time {
	return t.createdAt
}

// GetSignatures returns the signatures ordered by public key.
func (t *Transaction) GetSignatures() []Signature {
	return t.sigs.All()
}

// GetSignatureSet returns the set of signatures of the transaction.
func (t *Transaction) GetSignatureSet() *SignatureSet {
	return t.sigs
}

// SignatureCount returns the number of distinct signatories.
func (t *Transaction) SignatureCount() int {
	return t.sigs.Len()
}

// AddSignature adds or overwrites the signature of the public key.
func (t *Transaction) AddSignature(pubkey, sig []byte) {
	t.sigs.Add(pubkey, sig)
}

// Sign signs the digest of the transaction and adds the signature.
func (t *Transaction) Sign(signer crypto.Signer) error {
	if len(t.hash) == 0 {
		return xerrors.New("missing digest in transaction")
	}

	sig, err := signer.Sign(t.hash)
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	pubkey, err := signer.GetPublicKey().MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal public key: %v", err)
	}

	data, err := sig.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal signature: %v", err)
	}

	t.sigs.Add(pubkey, data)

	return nil
}

// Fingerprint writes a deterministic binary representation of the
// transaction without its signatures.
func (t *Transaction) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 16)
	binary.LittleEndian.PutUint64(buffer[:8], uint64(t.quorum))
	binary.LittleEndian.PutUint64(buffer[8:], uint64(t.createdAt.UnixNano()))

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write header: %v", err)
	}

	_, err = w.Write(t.payload)
	if err != nil {
		return xerrors.Errorf("couldn't write payload: %v", err)
	}

	return nil
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	return &Transaction{
		hash:      append([]byte{}, t.hash...),
		payload:   append([]byte{}, t.payload...),
		quorum:    t.quorum,
		createdAt: t.createdAt,
		sigs:      t.sigs.Clone(),
	}
}

// String implements fmt.Stringer. It returns a short description of the
// transaction.
func (t *Transaction) String() string {
	id := t.hash
	if len(id) > 4 {
		id = id[:4]
	}

	return fmt.Sprintf("tx{%#x %d/%d}", id, t.sigs.Len(), t.quorum)
}

// sameContent returns true when both transactions have the same digest and
// the same content.
func (t *Transaction) sameContent(other *Transaction) bool {
	return bytes.Equal(t.hash, other.hash) &&
		bytes.Equal(t.payload, other.payload) &&
		t.quorum == other.quorum &&
		t.createdAt.Equal(other.createdAt)
}
