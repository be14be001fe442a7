package minoch

import "go.dedis.ch/mst/mino"

// address is the identifier of a local instance.
//
// - implements mino.Address
type address struct {
	id string
}

// Equal implements mino.Address.
func (a address) Equal(other mino.Address) bool {
	addr, ok := other.(address)
	return ok && addr.id == a.id
}

// MarshalText implements encoding.TextMarshaler.
func (a address) MarshalText() ([]byte, error) {
	return []byte(a.id), nil
}

// String implements fmt.Stringer.
func (a address) String() string {
	return a.id
}

// AddressFactory is the factory of local addresses.
//
// - implements mino.AddressFactory
type AddressFactory struct{}

// FromText implements mino.AddressFactory.
func (f AddressFactory) FromText(text []byte) mino.Address {
	return address{id: string(text)}
}
