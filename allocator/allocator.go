package allocator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// SessionSpec is the initial configuration of a session.
type SessionSpec struct {
	Name     string `json:"name" yaml:"name"`
	Capacity Vector `json:"capacity" yaml:"capacity"`
}

// Allocator places EventRequests into sessions of a fixed capacity table, and
// keeps a Ledger of placed EventRecords which may later be released.
//
// Allocator is not safe for concurrent use. Callers must serialize all calls,
// including Snapshot, for example by holding a sync.Mutex for the duration
// of each call.
type Allocator struct {
	kinds       Kinds
	labelPrefix string
	newID       func() string

	sessions []session
	ledger   []entry
}

// session is the internal state of a session, with vectors held densely in
// the order of Allocator.kinds.
type session struct {
	name      string
	initial   []int
	available []int
	records   int // Number of ledger entries currently placed in this session.
}

// entry is a ledger entry: a placed EventRecord and its dense requirement.
type entry struct {
	record  EventRecord
	session int
	need    []int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithKinds configures the closed set of ResourceKinds of the Allocator.
// By default, DefaultKinds are used.
func WithKinds(kinds ...ResourceKind) Option {
	return func(a *Allocator) { a.kinds = append(Kinds(nil), kinds...) }
}

// WithLabelPrefix configures the prefix of assigned labels, which
// defaults to "CSE".
func WithLabelPrefix(prefix string) Option {
	return func(a *Allocator) { a.labelPrefix = prefix }
}

// WithIDFunc configures the function used to generate EventRecord IDs.
// By default, random UUIDs are used.
func WithIDFunc(fn func() string) Option {
	return func(a *Allocator) { a.newID = fn }
}

// New returns an Allocator over the ordered |sessions|, each starting with a
// copy of its specified capacity, and an empty ledger. A *ConfigError is
// returned if |sessions| is empty, a session name is empty or repeated, or a
// capacity is negative or names a kind outside of the configured Kinds.
func New(sessions []SessionSpec, opts ...Option) (*Allocator, error) {
	var a = &Allocator{
		kinds:       DefaultKinds(),
		labelPrefix: "CSE",
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.kinds.Validate(); err != nil {
		return nil, err
	} else if len(sessions) == 0 {
		return nil, NewConfigError("expected at least one session")
	}

	var names = make(map[string]struct{}, len(sessions))
	var out = make([]session, 0, len(sessions))

	for i, spec := range sessions {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, ExtendContext(NewConfigError("session name is empty"), "sessions[%d]", i)
		} else if _, ok := names[spec.Name]; ok {
			return nil, ExtendContext(NewConfigError("duplicated session name (%s)", spec.Name), "sessions[%d]", i)
		} else if err := spec.Capacity.validate(a.kinds, NewConfigError); err != nil {
			return nil, ExtendContext(ExtendContext(err, "capacity"), "sessions[%d]", i)
		}
		names[spec.Name] = struct{}{}

		out = append(out, session{
			name:      spec.Name,
			initial:   spec.Capacity.dense(a.kinds),
			available: spec.Capacity.dense(a.kinds),
		})
	}
	a.sessions = out

	for s := range a.sessions {
		a.observeAvailable(s)
	}
	log.WithFields(log.Fields{
		"sessions": len(a.sessions),
		"kinds":    a.kinds,
	}).Debug("initialized allocator")

	return a, nil
}

// Kinds returns the ResourceKinds of the Allocator.
func (a *Allocator) Kinds() Kinds { return append(Kinds(nil), a.kinds...) }

// Len returns the number of records of the Ledger.
func (a *Allocator) Len() int { return len(a.ledger) }

// Submit places a single EventRequest. It's equivalent to SubmitBatch of a
// single request, with the AsGiven policy.
func (a *Allocator) Submit(req EventRequest) (Outcome, error) {
	var out, err = a.SubmitBatch([]EventRequest{req}, AsGiven)
	if err != nil {
		return Outcome{}, err
	}
	return out[0], nil
}

// SubmitBatch places each of |requests|, in the order determined by |policy|,
// into the first session having sufficient available capacity in every
// required kind. Placed requests are deducted from their session and appended
// to the Ledger before the next request is considered. Requests which cannot
// be placed are rejected with ReasonInsufficientResources, and do not affect
// the placement of other requests.
//
// Returned Outcomes are ordered on request submission Index. If any request
// (or the |policy|) is invalid, an *InvalidRequestError is returned and no
// request of the batch is placed.
func (a *Allocator) SubmitBatch(requests []EventRequest, policy OrderingPolicy) ([]Outcome, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	for i, req := range requests {
		if err := req.Validate(a.kinds); err != nil {
			return nil, ExtendContext(err, "requests[%d]", i)
		}
	}
	var timer = prometheus.NewTimer(allocatorBatchDurationSeconds)
	defer timer.ObserveDuration()

	var outcomes = make([]Outcome, len(requests))
	var placed int

	for seq, ind := range policy.order(requests) {
		var req = requests[ind].copy()
		var need = req.Requires.dense(a.kinds)

		outcomes[ind] = Outcome{Index: ind, Seq: seq, Request: req.copy()}

		if s := a.firstFit(need); s == -1 {
			outcomes[ind].Reason = ReasonInsufficientResources
			allocatorRejectedTotal.WithLabelValues(string(ReasonInsufficientResources)).Inc()

			log.WithFields(log.Fields{
				"index":    ind,
				"title":    req.Title,
				"requires": req.Requires,
			}).Debug("rejected event (insufficient resources)")
		} else {
			var rec = a.commit(s, req, need)
			outcomes[ind].Record = &rec
			placed++
		}
	}

	log.WithFields(log.Fields{
		"policy":   policy,
		"requests": len(requests),
		"placed":   placed,
		"rejected": len(requests) - placed,
	}).Debug("submitted batch")

	return outcomes, nil
}

// firstFit returns the index of the first session in table order having
// available capacity of at least |need| in every kind, or -1.
func (a *Allocator) firstFit(need []int) int {
	for s := range a.sessions {
		if fits(a.sessions[s].available, need) {
			return s
		}
	}
	return -1
}

func fits(available, need []int) bool {
	for k := range need {
		if available[k] < need[k] {
			return false
		}
	}
	return true
}

// commit places |req| into session |s|. The session's next available vector
// is fully built before it replaces the current one, and the ledger entry is
// appended in the same step: no intermediate state is observable.
func (a *Allocator) commit(s int, req EventRequest, need []int) EventRecord {
	var cur = &a.sessions[s]

	var next = make([]int, len(cur.available))
	for k := range next {
		next[k] = cur.available[k] - need[k]
	}
	var rec = EventRecord{
		ID:           a.newID(),
		EventRequest: req,
		Session:      cur.name,
		Label:        fmt.Sprintf("%s %d", a.labelPrefix, cur.records+1),
	}

	cur.available, cur.records = next, cur.records+1
	a.ledger = append(a.ledger, entry{record: rec, session: s, need: need})

	a.observeAvailable(s)
	allocatorPlacedTotal.Inc()
	allocatorLedgerRecords.Set(float64(len(a.ledger)))

	log.WithFields(log.Fields{
		"id":      rec.ID,
		"title":   rec.Title,
		"session": rec.Session,
		"label":   rec.Label,
	}).Debug("placed event")

	return rec.copy()
}

// Release removes the Ledger record at |index|, restoring its requirement to
// the available capacity of its session. Records following |index| shift
// down by one, but retain their assigned sessions and labels. A *NotFoundError
// is returned if |index| is out of range.
func (a *Allocator) Release(index int) (EventRecord, error) {
	if index < 0 || index >= len(a.ledger) {
		return EventRecord{}, &NotFoundError{Index: index, Len: len(a.ledger)}
	}
	var ent = a.ledger[index]
	var cur = &a.sessions[ent.session]

	var next = make([]int, len(cur.available))
	for k := range next {
		next[k] = cur.available[k] + ent.need[k]
	}
	var ledger = make([]entry, 0, len(a.ledger)-1)
	ledger = append(ledger, a.ledger[:index]...)
	ledger = append(ledger, a.ledger[index+1:]...)

	cur.available, cur.records = next, cur.records-1
	a.ledger = ledger

	a.observeAvailable(ent.session)
	allocatorReleasedTotal.Inc()
	allocatorLedgerRecords.Set(float64(len(a.ledger)))

	log.WithFields(log.Fields{
		"index":   index,
		"id":      ent.record.ID,
		"session": ent.record.Session,
		"label":   ent.record.Label,
	}).Debug("released event")

	return ent.record.copy(), nil
}

// ReleaseID releases the Ledger record having |id|. A *NotFoundError is
// returned if no such record exists.
func (a *Allocator) ReleaseID(id string) (EventRecord, error) {
	for i := range a.ledger {
		if a.ledger[i].record.ID == id {
			return a.Release(i)
		}
	}
	return EventRecord{}, &NotFoundError{Index: -1, ID: id, Len: len(a.ledger)}
}

func (a *Allocator) observeAvailable(s int) {
	for k, kind := range a.kinds {
		allocatorAvailable.WithLabelValues(a.sessions[s].name, string(kind)).
			Set(float64(a.sessions[s].available[k]))
	}
}
