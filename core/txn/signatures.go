package txn

import (
	"bytes"
	"sort"
)

// Signature is the pair of a signatory public key and the signature it has
// produced for a transaction.
type Signature struct {
	PublicKey []byte
	Data      []byte
}

// SignatureSet is a collection of signatures unique by public key.
type SignatureSet struct {
	sigs map[string][]byte
}

// NewSignatureSet creates a new set populated with the signatures. A later
// signature overwrites an earlier one with the same public key.
func NewSignatureSet(sigs ...Signature) *SignatureSet {
	set := &SignatureSet{
		sigs: make(map[string][]byte, len(sigs)),
	}

	for _, sig := range sigs {
		set.Add(sig.PublicKey, sig.Data)
	}

	return set
}

// Add inserts the signature of the public key, or overwrites the existing one.
func (s *SignatureSet) Add(pubkey, data []byte) {
	s.sigs[string(pubkey)] = append([]byte{}, data...)
}

// Len returns the number of distinct signatories.
func (s *SignatureSet) Len() int {
	return len(s.sigs)
}

// Has returns true if the public key has signed.
func (s *SignatureSet) Has(pubkey []byte) bool {
	_, found := s.sigs[string(pubkey)]
	return found
}

// Get returns the signature of the public key, or nil if it has not signed.
func (s *SignatureSet) Get(pubkey []byte) []byte {
	return s.sigs[string(pubkey)]
}

// All returns the signatures ordered by public key.
func (s *SignatureSet) All() []Signature {
	keys := make([]string, 0, len(s.sigs))
	for key := range s.sigs {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	sigs := make([]Signature, len(keys))
	for i, key := range keys {
		sigs[i] = Signature{
			PublicKey: []byte(key),
			Data:      append([]byte{}, s.sigs[key]...),
		}
	}

	return sigs
}

// Union returns a new set with the signatures of both sets. When both sets
// hold a different signature for the same public key, the smallest one in
// lexicographic order is kept so that the result does not depend on the order
// of the operands.
func (s *SignatureSet) Union(other *SignatureSet) *SignatureSet {
	res := s.Clone()

	for key, data := range other.sigs {
		current, found := res.sigs[key]
		if !found || bytes.Compare(data, current) < 0 {
			res.sigs[key] = append([]byte{}, data...)
		}
	}

	return res
}

// Covers returns true if every signatory of the other set is also in this set.
func (s *SignatureSet) Covers(other *SignatureSet) bool {
	for key := range other.sigs {
		_, found := s.sigs[key]
		if !found {
			return false
		}
	}

	return true
}

// Equal returns true if both sets have the same signatures.
func (s *SignatureSet) Equal(other *SignatureSet) bool {
	if len(s.sigs) != len(other.sigs) {
		return false
	}

	for key, data := range s.sigs {
		otherData, found := other.sigs[key]
		if !found || !bytes.Equal(data, otherData) {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of the set.
func (s *SignatureSet) Clone() *SignatureSet {
	res := &SignatureSet{
		sigs: make(map[string][]byte, len(s.sigs)),
	}

	for key, data := range s.sigs {
		res.sigs[key] = append([]byte{}, data...)
	}

	return res
}
