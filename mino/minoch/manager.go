package minoch

import (
	"sync"

	"golang.org/x/xerrors"
)

// Manager is an orchestrator to manage the communication between the local
// instances.
type Manager struct {
	sync.Mutex
	instances map[string]*Minoch
}

// NewManager creates a new empty manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*Minoch),
	}
}

func (m *Manager) get(addr address) (*Minoch, error) {
	m.Lock()
	defer m.Unlock()

	inst, ok := m.instances[addr.id]
	if !ok {
		return nil, xerrors.Errorf("address <%s> not found", addr)
	}

	return inst, nil
}

func (m *Manager) insert(inst *Minoch) error {
	if inst.identifier == "" {
		return xerrors.New("identifier must not be empty")
	}

	m.Lock()
	defer m.Unlock()

	_, found := m.instances[inst.identifier]
	if found {
		return xerrors.Errorf("identifier <%s> already exists", inst.identifier)
	}

	m.instances[inst.identifier] = inst

	return nil
}

func (m *Manager) remove(inst *Minoch) {
	m.Lock()
	delete(m.instances, inst.identifier)
	m.Unlock()
}
