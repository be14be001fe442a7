// Package status records the outcome of the batches that left the pending
// pool. The pool itself has no memory of the batches it released, the store
// keeps it so that a client can learn whether a batch was prepared or expired.
package status

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.dedis.ch/mst/core/store/kv"
	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/core/txn/pool"
	"golang.org/x/xerrors"
)

// Status is the status of a batch.
type Status byte

const (
	// Unknown is the status of a batch that is neither pending nor recorded.
	Unknown Status = iota

	// Pending is the status of a batch that waits for signatures.
	Pending

	// Prepared is the status of a batch that gathered enough signatures and
	// was handed to the admission.
	Prepared

	// Expired is the status of a batch that expired before gathering enough
	// signatures.
	Expired
)

var bucketName = []byte("batch-status")

// recordLength is the size of an encoded record: the status, the time in unix
// nanoseconds and the number of signatures.
const recordLength = 1 + 8 + 4

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Prepared:
		return "prepared"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Record is the outcome of a batch.
type Record struct {
	Key        txn.Key
	Status     Status
	At         time.Time
	Signatures int
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return fmt.Sprintf("%x %s at %s with %d signature(s)",
		r.Key[:], r.Status, r.At.UTC().Format(time.RFC3339), r.Signatures)
}

// Store is the persistent storage of the outcomes of the batches.
type Store struct {
	db kv.DB
}

// NewStore creates a store on top of the database.
func NewStore(db kv.DB) (*Store, error) {
	err := db.Update(bucketName, func(kv.Bucket) error { return nil })
	if err != nil {
		return nil, xerrors.Errorf("failed to create bucket: %v", err)
	}

	return &Store{db: db}, nil
}

// Set records the status of the batch.
func (s *Store) Set(batch txn.Batch, status Status, at time.Time) error {
	key := batch.GetKey()

	value := make([]byte, recordLength)
	value[0] = byte(status)
	binary.LittleEndian.PutUint64(value[1:9], uint64(at.UnixNano()))
	binary.LittleEndian.PutUint32(value[9:], uint32(batch.SignatureCount()))

	err := s.db.Update(bucketName, func(b kv.Bucket) error {
		return b.Set(key[:], value)
	})
	if err != nil {
		return xerrors.Errorf("failed to write %v: %v", key, err)
	}

	return nil
}

// Get returns the record of the batch. The status is Unknown if nothing is
// recorded.
func (s *Store) Get(key txn.Key) (Record, error) {
	rec := Record{Key: key}

	err := s.db.View(bucketName, func(b kv.Bucket) error {
		value := b.Get(key[:])
		if value == nil {
			return nil
		}

		return decodeRecord(key[:], value, &rec)
	})
	if err != nil {
		return rec, xerrors.Errorf("failed to read %v: %v", key, err)
	}

	return rec, nil
}

// Resolve returns the status of the batch, Pending if the pool holds it.
func (s *Store) Resolve(p pool.Pool, key txn.Key) (Status, error) {
	if p.Contains(key) {
		return Pending, nil
	}

	rec, err := s.Get(key)
	if err != nil {
		return Unknown, err
	}

	return rec.Status, nil
}

// All returns the records ordered by key.
func (s *Store) All() ([]Record, error) {
	var records []Record

	err := s.db.View(bucketName, func(b kv.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			rec := Record{}
			err := decodeRecord(k, v, &rec)
			if err != nil {
				return err
			}

			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to read records: %v", err)
	}

	return records, nil
}

func decodeRecord(key, value []byte, rec *Record) error {
	if len(key) != txn.KeyLength || len(value) != recordLength {
		return xerrors.Errorf("malformed record %#x", key)
	}

	copy(rec.Key[:], key)
	rec.Status = Status(value[0])
	rec.At = time.Unix(0, int64(binary.LittleEndian.Uint64(value[1:9])))
	rec.Signatures = int(binary.LittleEndian.Uint32(value[9:]))

	return nil
}
