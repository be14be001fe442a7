// Package minoch is an implementation of Mino that is using channels and a
// local manager to exchange messages.
//
// Because it is using only Go channels to communicate, this implementation can
// only be used by multiple instances in the same process. It is meant for the
// tests and the simulations, therefore it also provides filters to drop the
// incoming messages and emulate partitions.
package minoch

import (
	"context"
	"sync"

	"go.dedis.ch/mst"
	"go.dedis.ch/mst/mino"
	"golang.org/x/xerrors"
)

// DefaultInboxSize is the number of messages an instance can hold before the
// senders are blocked.
const DefaultInboxSize = 100

// Filter is a function called for any incoming message which will drop it if
// it returns false.
type Filter func(mino.Envelope) bool

// Minoch is an implementation of the Mino interface using channels. Each
// instance must have a unique string assigned to it.
//
// - implements mino.Mino
type Minoch struct {
	sync.Mutex

	manager    *Manager
	identifier string
	inbox      chan mino.Envelope
	filters    []Filter
	closed     bool
}

// NewMinoch creates a new instance of a local Mino instance.
func NewMinoch(manager *Manager, identifier string) (*Minoch, error) {
	inst := &Minoch{
		manager:    manager,
		identifier: identifier,
		inbox:      make(chan mino.Envelope, DefaultInboxSize),
	}

	err := manager.insert(inst)
	if err != nil {
		return nil, xerrors.Errorf("manager refused: %v", err)
	}

	mst.Logger.Trace().Msgf("new instance with identifier %s", identifier)

	return inst, nil
}

// MustCreate creates a new minoch instance and panic if the identifier is
// refused by the manager.
func MustCreate(manager *Manager, identifier string) *Minoch {
	m, err := NewMinoch(manager, identifier)
	if err != nil {
		panic(err)
	}

	return m
}

// GetAddressFactory implements mino.Mino.
func (m *Minoch) GetAddressFactory() mino.AddressFactory {
	return AddressFactory{}
}

// GetAddress implements mino.Mino.
func (m *Minoch) GetAddress() mino.Address {
	return address{id: m.identifier}
}

// AddFilter adds a filter for the incoming messages.
func (m *Minoch) AddFilter(filter Filter) {
	m.Lock()
	m.filters = append(m.filters, filter)
	m.Unlock()
}

// ClearFilters removes the filters for the incoming messages.
func (m *Minoch) ClearFilters() {
	m.Lock()
	m.filters = nil
	m.Unlock()
}

// Send implements mino.Mino. It copies the payload into the inbox of the
// recipient. A message dropped by a filter of the recipient is lost without
// error, like it would be on a network.
func (m *Minoch) Send(ctx context.Context, payload []byte, to mino.Address) error {
	addr, ok := to.(address)
	if !ok {
		return xerrors.Errorf("invalid address type '%T'", to)
	}

	peer, err := m.manager.get(addr)
	if err != nil {
		return xerrors.Errorf("couldn't find peer: %v", err)
	}

	env := mino.Envelope{
		From:    m.GetAddress(),
		Payload: append([]byte{}, payload...),
	}

	return peer.deliver(ctx, env)
}

// Receive implements mino.Mino. The channel is never closed.
func (m *Minoch) Receive() <-chan mino.Envelope {
	return m.inbox
}

// Close removes the instance from the manager so that it stops receiving
// messages.
func (m *Minoch) Close() error {
	m.Lock()
	m.closed = true
	m.Unlock()

	m.manager.remove(m)

	return nil
}

func (m *Minoch) deliver(ctx context.Context, env mino.Envelope) error {
	m.Lock()
	closed := m.closed
	filters := m.filters
	m.Unlock()

	if closed {
		return xerrors.Errorf("peer <%s> is closed", m.identifier)
	}

	for _, filter := range filters {
		if !filter(env) {
			mst.Logger.Trace().
				Str("from", env.From.String()).
				Str("to", m.identifier).
				Msg("message dropped by filter")

			return nil
		}
	}

	select {
	case m.inbox <- env:
		return nil
	case <-ctx.Done():
		return xerrors.Errorf("couldn't deliver to <%s>: %v", m.identifier, ctx.Err())
	}
}
