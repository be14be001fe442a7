package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSha256Factory_New(t *testing.T) {
	factory := NewSha256Factory()
	require.NotNil(t, factory.New())
	require.Equal(t, 32, factory.New().Size())
}

func TestHashFactory_New(t *testing.T) {
	factory := NewHashFactory(Sha3_256)

	h := factory.New()
	h.Write([]byte("abc"))
	require.Len(t, h.Sum(nil), 32)

	require.NotEqual(t, NewSha256Factory().New().Sum([]byte("abc")), h.Sum(nil))

	require.Panics(t, func() { NewHashFactory(HashAlgorithm(42)).New() })
}
