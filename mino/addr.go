package mino

// addressIterator is an implementation of the iterator for addresses.
//
// - implements mino.AddressIterator
type addressIterator struct {
	index int
	addrs []Address
}

// Seek implements mino.AddressIterator.
func (it *addressIterator) Seek(index int) {
	it.index = index
}

// HasNext implements mino.AddressIterator.
func (it *addressIterator) HasNext() bool {
	return it.index < len(it.addrs)
}

// GetNext implements mino.AddressIterator. It returns nil when the iterator
// is exhausted.
func (it *addressIterator) GetNext() Address {
	if !it.HasNext() {
		return nil
	}

	addr := it.addrs[it.index]
	it.index++

	return addr
}

// roster is an immutable list of addresses.
//
// - implements mino.Players
type roster struct {
	addrs []Address
}

// NewAddresses returns the players made of the addresses. Duplicates are
// removed while keeping the order of the first occurrences.
func NewAddresses(addrs ...Address) Players {
	r := roster{addrs: make([]Address, 0, len(addrs))}

	for _, addr := range addrs {
		if addr != nil && !r.contains(addr) {
			r.addrs = append(r.addrs, addr)
		}
	}

	return r
}

// Take implements mino.Players. It returns the subset of the roster selected
// by the filters. Out of range indices are ignored.
func (r roster) Take(updaters ...FilterUpdater) Players {
	filter := ApplyFilters(updaters)

	addrs := make([]Address, 0, len(filter.Indices))
	for _, k := range filter.Indices {
		if k >= 0 && k < len(r.addrs) {
			addrs = append(addrs, r.addrs[k])
		}
	}

	return roster{addrs: addrs}
}

// AddressIterator implements mino.Players.
func (r roster) AddressIterator() AddressIterator {
	return &addressIterator{addrs: r.addrs}
}

// Len implements mino.Players.
func (r roster) Len() int {
	return len(r.addrs)
}

func (r roster) contains(addr Address) bool {
	for _, a := range r.addrs {
		if a.Equal(addr) {
			return true
		}
	}

	return false
}
