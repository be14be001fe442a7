package json

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/internal/testing/fake"
)

const testBatchJSON = `{"Batches":[{"Transactions":[{` +
	`"Hash":"8GfVnuuGEghXZnL09UNqqKPe6k4ji77TaHeiIhFxaSk=","Payload":"QQ==",` +
	`"Quorum":2,"CreatedAt":1000000000000,` +
	`"Signatures":[{"PublicKey":"UEsx","Signature":"c2ln"}]}]}]}`

func TestFormat_Encode(t *testing.T) {
	format := NewFormat()

	batch := makeBatch(t)

	data, err := format.Encode([]txn.Batch{batch})
	require.NoError(t, err)
	require.Equal(t, testBatchJSON, string(data))

	data, err = format.Encode(nil)
	require.NoError(t, err)
	require.Equal(t, `{"Batches":[]}`, string(data))
}

func TestFormat_Decode(t *testing.T) {
	format := NewFormat()

	batches, err := format.Decode([]byte(testBatchJSON))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.True(t, batches[0].Equal(makeBatch(t)))
	require.True(t, batches[0].CreatedAt().Equal(time.Unix(1000, 0)))

	_, err = format.Decode([]byte(`[]`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal: ")

	_, err = format.Decode([]byte(`{"Batches":[{}]}`))
	require.EqualError(t, err, "batch 0: batch must contain at least one transaction")

	_, err = format.Decode([]byte(`{"Batches":[{"Transactions":[{"Hash":"AAAA"}]}]}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "batch 0: tx 0: digest mismatch: 0x000000 != ")

	format = NewFormat(WithHashFactory(fake.NewHashFactory(fake.NewBadHash())))
	_, err = format.Decode([]byte(testBatchJSON))
	require.EqualError(t, err,
		fake.Err("batch 0: tx 0: failed to create tx: couldn't fingerprint tx: couldn't write header"))
}

func TestFormat_Decode_DeclaredDigest(t *testing.T) {
	format := NewFormat(WithDeclaredDigest())

	batches, err := format.Decode([]byte(`{"Batches":[{"Transactions":[{"Hash":"AAAA","Quorum":1}]}]}`))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, []byte{0, 0, 0}, batches[0].GetTransactions()[0].GetID())

	// Without a declared digest, it is computed from the content.
	batches, err = format.Decode([]byte(`{"Batches":[{"Transactions":[{"Quorum":1}]}]}`))
	require.NoError(t, err)
	require.Len(t, batches[0].GetTransactions()[0].GetID(), 32)
}

func TestFormat_RoundTrip(t *testing.T) {
	format := NewFormat()

	tx1, err := txn.NewTransaction([]byte("A"), 2, time.Unix(10, 5))
	require.NoError(t, err)
	tx2, err := txn.NewTransaction([]byte("B"), 3, time.Unix(20, 0))
	require.NoError(t, err)

	tx1.AddSignature([]byte("PK2"), []byte("sig2"))
	tx1.AddSignature([]byte("PK1"), []byte("sig1"))

	batch, err := txn.NewBatch(tx1, tx2)
	require.NoError(t, err)

	data, err := format.Encode([]txn.Batch{batch})
	require.NoError(t, err)

	batches, err := format.Decode(data)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, batch.GetKey(), batches[0].GetKey())
	require.True(t, batch.Equal(batches[0]))
}

// -----------------------------------------------------------------------------
// Utility functions

func makeBatch(t *testing.T) txn.Batch {
	tx, err := txn.NewTransaction([]byte("A"), 2, time.Unix(1000, 0))
	require.NoError(t, err)

	tx.AddSignature([]byte("PK1"), []byte("sig"))

	batch, err := txn.NewBatch(tx)
	require.NoError(t, err)

	return batch
}
