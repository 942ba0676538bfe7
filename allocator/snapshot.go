package allocator

import (
	"fmt"
)

// Snapshot is a point-in-time copy of the Allocator capacity table and
// Ledger. It shares no state with the Allocator, and may be freely retained
// or modified by the caller.
type Snapshot struct {
	Kinds    Kinds          `json:"kinds" yaml:"kinds"`
	Sessions []SessionState `json:"sessions" yaml:"sessions"`
	Ledger   []EventRecord  `json:"ledger" yaml:"ledger"`
}

// SessionState is the state of a session within a Snapshot. Initial and
// Available have an entry for every kind of the Snapshot.
type SessionState struct {
	Name      string `json:"name" yaml:"name"`
	Initial   Vector `json:"initial" yaml:"initial"`
	Available Vector `json:"available" yaml:"available"`
}

// Snapshot returns a Snapshot of the current Allocator state.
func (a *Allocator) Snapshot() Snapshot {
	var out = Snapshot{
		Kinds:    a.Kinds(),
		Sessions: make([]SessionState, len(a.sessions)),
		Ledger:   make([]EventRecord, len(a.ledger)),
	}
	for i, s := range a.sessions {
		out.Sessions[i] = SessionState{
			Name:      s.name,
			Initial:   sparse(a.kinds, s.initial),
			Available: sparse(a.kinds, s.available),
		}
	}
	for i := range a.ledger {
		out.Ledger[i] = a.ledger[i].record.copy()
	}
	return out
}

// Session returns the SessionState of the named session.
func (s Snapshot) Session(name string) (SessionState, bool) {
	for _, ss := range s.Sessions {
		if ss.Name == name {
			return ss, true
		}
	}
	return SessionState{}, false
}

// RecordsOf returns the Ledger records placed in the named session, in
// Ledger order.
func (s Snapshot) RecordsOf(name string) []EventRecord {
	var out []EventRecord
	for _, r := range s.Ledger {
		if r.Session == name {
			out = append(out, r)
		}
	}
	return out
}

// CheckConservation verifies that, for every session, its available capacity
// plus the requirements of all Ledger records placed in it equals its initial
// capacity in every kind, and that no count is negative.
func (s Snapshot) CheckConservation() error {
	for _, ss := range s.Sessions {
		var sum = make(Vector, len(s.Kinds))
		for kind, n := range ss.Available {
			sum[kind] = n
		}
		for _, r := range s.RecordsOf(ss.Name) {
			for kind, n := range r.Requires {
				sum[kind] += n
			}
		}
		for _, kind := range s.Kinds {
			if ss.Available[kind] < 0 {
				return fmt.Errorf("session %s: available %s is negative (%d)",
					ss.Name, kind, ss.Available[kind])
			} else if sum[kind] != ss.Initial[kind] {
				return fmt.Errorf("session %s: %s not conserved (available + placed = %d; initial %d)",
					ss.Name, kind, sum[kind], ss.Initial[kind])
			}
		}
	}
	for _, r := range s.Ledger {
		if _, ok := s.Session(r.Session); !ok {
			return fmt.Errorf("record %s: unknown session (%s)", r.ID, r.Session)
		}
	}
	return nil
}
