package allocator

import (
	"math"
	"sort"
	"strings"
)

// ResourceKind names a category of allocatable unit, such as "chairs".
type ResourceKind string

// Default resource kinds, used when an Allocator is built without WithKinds.
const (
	Projectors ResourceKind = "projectors"
	Mikes      ResourceKind = "mikes"
	Chairs     ResourceKind = "chairs"
	Markers    ResourceKind = "markers"
)

// DefaultKinds returns the default, ordered set of ResourceKinds.
func DefaultKinds() Kinds { return Kinds{Projectors, Mikes, Chairs, Markers} }

// Kinds is an ordered, closed set of ResourceKinds agreed between an
// Allocator and its callers. Order determines column order of rendered
// vectors; it has no bearing on placement.
type Kinds []ResourceKind

// Validate returns an error if the Kinds are empty, or contain an empty or
// repeated kind.
func (k Kinds) Validate() error {
	if len(k) == 0 {
		return NewConfigError("expected at least one resource kind")
	}
	var seen = make(map[ResourceKind]struct{}, len(k))
	for i, kind := range k {
		if strings.TrimSpace(string(kind)) == "" {
			return ExtendContext(NewConfigError("kind name is empty"), "kinds[%d]", i)
		} else if _, ok := seen[kind]; ok {
			return ExtendContext(NewConfigError("duplicated kind (%s)", kind), "kinds[%d]", i)
		}
		seen[kind] = struct{}{}
	}
	return nil
}

// Index returns the position of |kind| within Kinds, or -1.
func (k Kinds) Index(kind ResourceKind) int {
	for i := range k {
		if k[i] == kind {
			return i
		}
	}
	return -1
}

// Vector maps ResourceKinds to integer counts. It's used both for the
// available capacity of a session and the requirement of an event. A kind
// missing from the Vector has a count of zero.
type Vector map[ResourceKind]int

// Total returns the sum of counts across all kinds of the Vector. The sum
// saturates at math.MaxInt rather than overflowing.
func (v Vector) Total() int {
	var n int
	for _, c := range v {
		if c > 0 && n > math.MaxInt-c {
			return math.MaxInt
		}
		n += c
	}
	return n
}

// Copy returns a deep copy of the Vector. A nil Vector copies to nil.
func (v Vector) Copy() Vector {
	if v == nil {
		return nil
	}
	var out = make(Vector, len(v))
	for k, c := range v {
		out[k] = c
	}
	return out
}

// validate checks that every kind of the Vector is drawn from |kinds|, and
// that every count is non-negative. |newErr| builds the typed error returned.
func (v Vector) validate(kinds Kinds, newErr func(string, ...interface{}) error) error {
	// Walk kinds in sorted order so reported errors are deterministic.
	var keys = make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	for _, k := range keys {
		var kind = ResourceKind(k)

		if kinds.Index(kind) == -1 {
			return newErr("unknown resource kind (%s)", kind)
		} else if c := v[kind]; c < 0 {
			return ExtendContext(newErr("must be >= 0 (%d)", c), "%s", kind)
		}
	}
	return nil
}

// dense projects the Vector onto |kinds|, returning a slice of counts
// indexed by kind position. It assumes the Vector was validated.
func (v Vector) dense(kinds Kinds) []int {
	var out = make([]int, len(kinds))
	for i, k := range kinds {
		out[i] = v[k]
	}
	return out
}

// sparse inverts dense, building a Vector which has an entry for every kind.
func sparse(kinds Kinds, counts []int) Vector {
	var out = make(Vector, len(kinds))
	for i, k := range kinds {
		out[k] = counts[i]
	}
	return out
}
