// Package json implements the JSON wire format of the batches exchanged by the
// participants.
package json

import (
	"bytes"
	"encoding/json"
	"time"

	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/crypto"
	"golang.org/x/xerrors"
)

// SignatureJSON is the JSON message of a signature.
type SignatureJSON struct {
	PublicKey []byte
	Signature []byte
}

// TransactionJSON is the JSON message of a transaction. The creation time is
// expressed in nanoseconds since the Unix epoch.
type TransactionJSON struct {
	Hash       []byte
	Payload    []byte
	Quorum     int
	CreatedAt  int64
	Signatures []SignatureJSON
}

// BatchJSON is the JSON message of a batch.
type BatchJSON struct {
	Transactions []TransactionJSON
}

// MessageJSON is the JSON message of a list of batches.
type MessageJSON struct {
	Batches []BatchJSON
}

// Format is the JSON format engine for lists of batches.
type Format struct {
	hashFactory crypto.HashFactory
	trustDigest bool
}

// FormatOption is the type of option to create a format.
type FormatOption func(*Format)

// WithHashFactory is an option to set the hash factory used to compute the
// digests of the decoded transactions.
func WithHashFactory(f crypto.HashFactory) FormatOption {
	return func(format *Format) {
		format.hashFactory = f
	}
}

// WithDeclaredDigest is an option to keep the digest declared by the sender
// instead of computing it from the content.
func WithDeclaredDigest() FormatOption {
	return func(format *Format) {
		format.trustDigest = true
	}
}

// NewFormat creates a new JSON format.
func NewFormat(opts ...FormatOption) Format {
	format := Format{
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&format)
	}

	return format
}

// Encode returns the JSON data of the list of batches.
func (f Format) Encode(batches []txn.Batch) ([]byte, error) {
	m := MessageJSON{
		Batches: make([]BatchJSON, len(batches)),
	}

	for i, batch := range batches {
		txs := batch.GetTransactions()

		bm := BatchJSON{
			Transactions: make([]TransactionJSON, len(txs)),
		}

		for j, tx := range txs {
			sigs := tx.GetSignatures()

			tm := TransactionJSON{
				Hash:       tx.GetID(),
				Payload:    tx.GetPayload(),
				Quorum:     tx.GetQuorum(),
				CreatedAt:  tx.GetCreatedAt().UnixNano(),
				Signatures: make([]SignatureJSON, len(sigs)),
			}

			for k, sig := range sigs {
				tm.Signatures[k] = SignatureJSON{
					PublicKey: sig.PublicKey,
					Signature: sig.Data,
				}
			}

			bm.Transactions[j] = tm
		}

		m.Batches[i] = bm
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode returns the list of batches of the JSON data. Unless the format
// trusts the declared digests, a transaction whose declared digest does not
// match its content is rejected.
func (f Format) Decode(data []byte) ([]txn.Batch, error) {
	m := MessageJSON{}
	err := json.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	batches := make([]txn.Batch, len(m.Batches))

	for i, bm := range m.Batches {
		txs := make([]*txn.Transaction, len(bm.Transactions))

		for j, tm := range bm.Transactions {
			tx, err := f.decodeTransaction(tm)
			if err != nil {
				return nil, xerrors.Errorf("batch %d: tx %d: %v", i, j, err)
			}

			txs[j] = tx
		}

		batch, err := txn.NewBatch(txs...)
		if err != nil {
			return nil, xerrors.Errorf("batch %d: %v", i, err)
		}

		batches[i] = batch
	}

	return batches, nil
}

func (f Format) decodeTransaction(m TransactionJSON) (*txn.Transaction, error) {
	sigs := make([]txn.Signature, len(m.Signatures))
	for i, sm := range m.Signatures {
		sigs[i] = txn.Signature{PublicKey: sm.PublicKey, Data: sm.Signature}
	}

	opts := []txn.TransactionOption{
		txn.WithSignatures(sigs...),
		txn.WithHashFactory(f.hashFactory),
	}

	if f.trustDigest && len(m.Hash) > 0 {
		opts = append(opts, txn.WithHash(m.Hash))
	}

	tx, err := txn.NewTransaction(m.Payload, m.Quorum, time.Unix(0, m.CreatedAt), opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tx: %v", err)
	}

	if !f.trustDigest && len(m.Hash) > 0 && !bytes.Equal(tx.GetID(), m.Hash) {
		return nil, xerrors.Errorf("digest mismatch: %#x != %#x", m.Hash, tx.GetID())
	}

	return tx, nil
}
