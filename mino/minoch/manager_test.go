package minoch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_Get(t *testing.T) {
	manager := &Manager{
		instances: map[string]*Minoch{"A": {}},
	}

	m, err := manager.get(address{id: "A"})
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = manager.get(address{id: "B"})
	require.EqualError(t, err, "address <B> not found")
}

func TestManager_Insert(t *testing.T) {
	manager := NewManager()

	err := manager.insert(&Minoch{identifier: "A"})
	require.NoError(t, err)

	err = manager.insert(&Minoch{identifier: "A"})
	require.EqualError(t, err, "identifier <A> already exists")

	err = manager.insert(&Minoch{})
	require.EqualError(t, err, "identifier must not be empty")
}

func TestManager_Remove(t *testing.T) {
	manager := NewManager()

	inst := &Minoch{identifier: "A"}
	require.NoError(t, manager.insert(inst))

	manager.remove(inst)
	require.Empty(t, manager.instances)
}
