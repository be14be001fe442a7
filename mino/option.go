package mino

import (
	"sort"
)

// Filter is a set of parameters for the Players.Take function.
type Filter struct {
	// Indices is the sorted list of the indices of the players to keep.
	Indices []int
}

// ApplyFilters applies the filters and returns the result.
func ApplyFilters(updaters []FilterUpdater) *Filter {
	filter := &Filter{
		Indices: []int{},
	}

	for _, fn := range updaters {
		fn(filter)
	}

	return filter
}

// FilterUpdater is a function to update the filter.
type FilterUpdater func(*Filter)

// IndexFilter is a filter to include a given index.
func IndexFilter(index int) FilterUpdater {
	return func(filter *Filter) {
		arr := filter.Indices
		i := sort.SearchInts(arr, index)
		if i < len(arr) && arr[i] == index {
			return
		}

		filter.Indices = append(arr, index)
		sort.Ints(filter.Indices)
	}
}

// RangeFilter is a filter to include a range of indices [start, end).
func RangeFilter(start, end int) FilterUpdater {
	return func(filter *Filter) {
		for k := start; k < end; k++ {
			IndexFilter(k)(filter)
		}
	}
}

// RingFilter is a filter to include the given amount of indices starting at
// start and wrapping around a ring of size n. The amount is capped to n.
func RingFilter(start, amount, n int) FilterUpdater {
	return func(filter *Filter) {
		if n <= 0 {
			return
		}

		if amount > n {
			amount = n
		}

		start = start % n
		if start < 0 {
			start += n
		}

		end := start + amount
		if end <= n {
			RangeFilter(start, end)(filter)
			return
		}

		RangeFilter(start, n)(filter)
		RangeFilter(0, end-n)(filter)
	}
}
