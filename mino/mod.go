// Package mino defines the minimal overlay network used by the participants
// to exchange the signatures of the pending batches.
//
// The pool only needs a fire-and-forget primitive: a message is pushed to a
// participant, and every participant drains its own inbox. Delivery can fail
// or be delayed, the anti-entropy of the pool recovers from it.
package mino

import (
	"context"
	"encoding"
)

// Address is a representation of a participant's network address.
type Address interface {
	encoding.TextMarshaler

	// Equal returns true when both addresses point to the same participant.
	Equal(other Address) bool

	String() string
}

// AddressFactory is the factory to decode addresses.
type AddressFactory interface {
	FromText(text []byte) Address
}

// AddressIterator is an iterator over the list of addresses of a roster.
type AddressIterator interface {
	// Seek moves the iterator to a specific index.
	Seek(int)

	// HasNext returns true if a address is available, false otherwise.
	HasNext() bool

	// GetNext returns the next address. It should be called only if HasNext
	// returned true.
	GetNext() Address
}

// Players is an interface to represent a set of participants.
type Players interface {
	// Take returns a subset of the players according to the filters.
	Take(...FilterUpdater) Players

	// AddressIterator returns an iterator that prevents changes to the
	// underlying array and allows iterating over the addresses.
	AddressIterator() AddressIterator

	// Len returns the number of participants.
	Len() int
}

// Envelope is a message received from a participant.
type Envelope struct {
	From    Address
	Payload []byte
}

// Mino is the endpoint of a participant in the overlay network.
type Mino interface {
	// GetAddress returns the address that other participants should use to
	// contact this instance.
	GetAddress() Address

	// GetAddressFactory returns the address factory.
	GetAddressFactory() AddressFactory

	// Send pushes the payload to the participant. It returns once the message
	// is delivered to the inbox of the participant, or when the context is
	// done.
	Send(ctx context.Context, payload []byte, to Address) error

	// Receive returns the inbox of the participant.
	Receive() <-chan Envelope
}
