package allocator

import (
	"fmt"
	"sort"
	"strings"
)

// OrderingPolicy determines the order in which requests of a batch are placed.
type OrderingPolicy int

const (
	// AsGiven places requests in submission order.
	AsGiven OrderingPolicy = iota
	// BySizeAscending places requests in ascending order of their total
	// requirement (summed across all kinds). Ties keep submission order.
	BySizeAscending
)

// String returns the canonical name of the OrderingPolicy.
func (p OrderingPolicy) String() string {
	switch p {
	case AsGiven:
		return "as-given"
	case BySizeAscending:
		return "by-size"
	default:
		return fmt.Sprintf("OrderingPolicy(%d)", int(p))
	}
}

// Validate returns an error if the OrderingPolicy is not a known value.
func (p OrderingPolicy) Validate() error {
	switch p {
	case AsGiven, BySizeAscending:
		return nil
	default:
		return NewInvalidRequestError("unknown ordering policy (%d)", int(p))
	}
}

// ParseOrderingPolicy maps a policy name to its OrderingPolicy. Names are
// case-insensitive, and an empty name is AsGiven.
func ParseOrderingPolicy(name string) (OrderingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "as-given", "asgiven":
		return AsGiven, nil
	case "by-size", "by-size-ascending", "bysizeascending":
		return BySizeAscending, nil
	default:
		return AsGiven, NewInvalidRequestError("unknown ordering policy (%s)", name)
	}
}

// order returns the indices of |requests| in the order they are to be placed.
func (p OrderingPolicy) order(requests []EventRequest) []int {
	var out = make([]int, len(requests))
	for i := range out {
		out[i] = i
	}
	if p == BySizeAscending {
		sort.SliceStable(out, func(i, j int) bool {
			return requests[out[i]].Requires.Total() < requests[out[j]].Requires.Total()
		})
	}
	return out
}
