package allocator

import (
	"time"
)

// EventRequest is a proposed event, to be placed into a session having
// sufficient capacity for its requirement.
type EventRequest struct {
	// Title of the event. It's carried through to the EventRecord and may be empty.
	Title string `json:"title" yaml:"title"`
	// Optional wall-clock start and end of the event, as "HH:MM". They're
	// informational and do not influence placement.
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty"`
	// Requires is the amount of each ResourceKind the event consumes.
	Requires Vector `json:"requires" yaml:"requires"`
}

// clockLayout is the layout of EventRequest Start and End.
const clockLayout = "15:04"

// Validate returns an *InvalidRequestError if the EventRequest names a kind
// outside of |kinds|, has a negative requirement, or has malformed times.
func (r EventRequest) Validate(kinds Kinds) error {
	if err := r.Requires.validate(kinds, NewInvalidRequestError); err != nil {
		return ExtendContext(err, "requires")
	}

	var start, end time.Time
	var err error

	if r.Start != "" {
		if start, err = time.Parse(clockLayout, r.Start); err != nil {
			return ExtendContext(NewInvalidRequestError("expected HH:MM (%s)", r.Start), "start")
		}
	}
	if r.End != "" {
		if end, err = time.Parse(clockLayout, r.End); err != nil {
			return ExtendContext(NewInvalidRequestError("expected HH:MM (%s)", r.End), "end")
		}
	}
	if r.Start != "" && r.End != "" && end.Before(start) {
		return NewInvalidRequestError("end precedes start (%s < %s)", r.End, r.Start)
	}
	return nil
}

func (r EventRequest) copy() EventRequest {
	r.Requires = r.Requires.Copy()
	return r
}

// EventRecord is an EventRequest which has been placed into a session.
// EventRecords are owned by the Allocator ledger, and are returned to callers
// only as copies.
type EventRecord struct {
	// ID is an opaque, unique handle of the record which remains stable as
	// other records are released.
	ID           string `json:"id" yaml:"id"`
	EventRequest `yaml:",inline"`
	// Session is the name of the session hosting the event.
	Session string `json:"session" yaml:"session"`
	// Label is assigned sequentially within the session at placement time,
	// eg "CSE 2". Labels are not recomputed when other records are released.
	Label string `json:"label" yaml:"label"`
}

func (r EventRecord) copy() EventRecord {
	r.EventRequest = r.EventRequest.copy()
	return r
}

// Reason a request was rejected.
type Reason string

// ReasonInsufficientResources indicates no session had enough available
// capacity, in every required kind, to host the request.
const ReasonInsufficientResources Reason = "InsufficientResources"

// Outcome of a single EventRequest submitted in a batch. Exactly one of
// Record or Reason is set.
type Outcome struct {
	// Index of the request within the submitted batch.
	Index int `json:"index" yaml:"index"`
	// Seq is the position at which the request was processed, which differs
	// from Index only under a re-ordering policy.
	Seq     int          `json:"seq" yaml:"seq"`
	Request EventRequest `json:"request" yaml:"request"`
	// Record is the placed EventRecord, or nil if the request was rejected.
	Record *EventRecord `json:"record,omitempty" yaml:"record,omitempty"`
	// Reason the request was rejected, or empty if it was placed.
	Reason Reason `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Placed returns true iff the request was placed.
func (o Outcome) Placed() bool { return o.Record != nil }
