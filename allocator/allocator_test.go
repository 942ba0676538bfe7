package allocator

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestFirstFitScansInTableOrder(t *testing.T) {
	var a = newTestAllocator(t,
		SessionSpec{Name: "small", Capacity: Vector{Chairs: 1}},
		SessionSpec{Name: "large", Capacity: Vector{Chairs: 5}},
	)
	var out, err = a.SubmitBatch([]EventRequest{
		{Title: "one chair", Requires: Vector{Chairs: 1}},
	}, AsGiven)
	require.NoError(t, err)

	// Expect the first session is chosen, even though the second has more room.
	require.True(t, out[0].Placed())
	require.Equal(t, "small", out[0].Record.Session)
	require.Equal(t, Vector{Projectors: 0, Mikes: 0, Chairs: 0, Markers: 0},
		sessionOf(t, a, "small").Available)
	require.Equal(t, 5, sessionOf(t, a, "large").Available[Chairs])
}

func TestFirstFitRequiresEveryKind(t *testing.T) {
	var a = newTestAllocator(t,
		SessionSpec{Name: "morning", Capacity: Vector{Chairs: 10, Projectors: 0}},
		SessionSpec{Name: "afternoon", Capacity: Vector{Chairs: 2, Projectors: 1}},
	)
	var out, err = a.Submit(EventRequest{Requires: Vector{Chairs: 2, Projectors: 1}})
	require.NoError(t, err)

	// "morning" has chairs to spare, but no projector.
	require.Equal(t, "afternoon", out.Record.Session)
	require.Equal(t, Vector{Projectors: 0, Mikes: 0, Chairs: 0, Markers: 0},
		sessionOf(t, a, "afternoon").Available)
}

func TestFirstFitIsDeterministic(t *testing.T) {
	var build = func() *Allocator {
		return newTestAllocator(t,
			SessionSpec{Name: "A", Capacity: Vector{Chairs: 2, Mikes: 1}},
			SessionSpec{Name: "B", Capacity: Vector{Chairs: 4, Mikes: 4}},
		)
	}
	var req = EventRequest{Title: "panel", Requires: Vector{Chairs: 3, Mikes: 1}}

	for i := 0; i != 5; i++ {
		var out, err = build().Submit(req)
		require.NoError(t, err)
		require.Equal(t, &EventRecord{
			ID:           "id-1",
			EventRequest: req,
			Session:      "B",
			Label:        "CSE 1",
		}, out.Record)
	}
}

func TestSortingChangesOutcome(t *testing.T) {
	var batch = []EventRequest{
		{Title: "big", Requires: Vector{Chairs: 5}},
		{Title: "small", Requires: Vector{Chairs: 3}},
	}
	var spec = SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}}

	// AsGiven places the big request, and rejects the small one.
	var a = newTestAllocator(t, spec)
	var out, err = a.SubmitBatch(batch, AsGiven)
	require.NoError(t, err)

	require.True(t, out[0].Placed())
	require.False(t, out[1].Placed())
	require.Equal(t, ReasonInsufficientResources, out[1].Reason)
	require.Equal(t, 0, sessionOf(t, a, "A").Available[Chairs])

	// BySizeAscending places the small request first, leaving too little for big.
	a = newTestAllocator(t, spec)
	out, err = a.SubmitBatch(batch, BySizeAscending)
	require.NoError(t, err)

	require.False(t, out[0].Placed())
	require.Equal(t, ReasonInsufficientResources, out[0].Reason)
	require.True(t, out[1].Placed())
	require.Equal(t, 2, sessionOf(t, a, "A").Available[Chairs])

	// Outcomes are ordered on submission index, and Seq reflects processing order.
	require.Equal(t, []int{0, 1}, []int{out[0].Index, out[1].Index})
	require.Equal(t, []int{1, 0}, []int{out[0].Seq, out[1].Seq})
}

func TestBySizeAscendingIsStable(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 4, Mikes: 4}})
	var out, err = a.SubmitBatch([]EventRequest{
		{Title: "three", Requires: Vector{Chairs: 2, Mikes: 1}},
		{Title: "first-two", Requires: Vector{Chairs: 2}},
		{Title: "second-two", Requires: Vector{Mikes: 2}},
		{Title: "zero"},
	}, BySizeAscending)
	require.NoError(t, err)

	var titles []string
	for _, r := range a.Snapshot().Ledger {
		titles = append(titles, r.Title)
	}
	require.Equal(t, []string{"zero", "first-two", "second-two", "three"}, titles)
	require.Equal(t, []int{3, 1, 2, 0}, []int{out[0].Seq, out[1].Seq, out[2].Seq, out[3].Seq})
}

func TestBySizeAscendingWithHugeRequirements(t *testing.T) {
	require.Equal(t, math.MaxInt, Vector{Chairs: math.MaxInt, Mikes: 1}.Total())
	require.Equal(t, math.MaxInt, Vector{Chairs: math.MaxInt, Mikes: math.MaxInt}.Total())
	require.Equal(t, 3, Vector{Chairs: 1, Mikes: 2}.Total())

	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: math.MaxInt, Mikes: 1}})
	var out, err = a.SubmitBatch([]EventRequest{
		{Title: "huge", Requires: Vector{Chairs: math.MaxInt, Mikes: 1}},
		{Title: "small", Requires: Vector{Chairs: 1}},
	}, BySizeAscending)
	require.NoError(t, err)

	// The small request is processed first, and the huge one no longer fits.
	require.Equal(t, 0, out[1].Seq)
	require.True(t, out[1].Placed())
	require.Equal(t, 1, out[0].Seq)
	require.False(t, out[0].Placed())
	require.NoError(t, a.Snapshot().CheckConservation())
}

func TestRejectionDoesNotBlockLaterRequests(t *testing.T) {
	var a = newTestAllocator(t,
		SessionSpec{Name: "A", Capacity: Vector{Chairs: 3}},
		SessionSpec{Name: "B", Capacity: Vector{Chairs: 3}},
	)
	var out, err = a.SubmitBatch([]EventRequest{
		{Title: "fits A", Requires: Vector{Chairs: 2}},
		{Title: "too big", Requires: Vector{Chairs: 4}},
		{Title: "fits B", Requires: Vector{Chairs: 2}},
		{Title: "fits A again", Requires: Vector{Chairs: 1}},
	}, AsGiven)
	require.NoError(t, err)

	var got []string
	for _, o := range out {
		if o.Placed() {
			got = append(got, o.Record.Session+"/"+o.Record.Label)
		} else {
			got = append(got, string(o.Reason))
		}
	}
	require.Equal(t, []string{"A/CSE 1", "InsufficientResources", "B/CSE 1", "A/CSE 2"}, got)
	require.Equal(t, 3, a.Len())
	require.NoError(t, a.Snapshot().CheckConservation())
}

func TestBatchIndependenceUnderAsGiven(t *testing.T) {
	var specs = []SessionSpec{
		{Name: "A", Capacity: Vector{Chairs: 3, Markers: 2}},
		{Name: "B", Capacity: Vector{Chairs: 5, Markers: 1}},
	}
	var e1 = EventRequest{Title: "e1", Requires: Vector{Chairs: 2, Markers: 2}}
	var e2 = EventRequest{Title: "e2", Requires: Vector{Chairs: 2, Markers: 1}}

	var batched = newTestAllocator(t, specs...)
	var _, err = batched.SubmitBatch([]EventRequest{e1, e2}, AsGiven)
	require.NoError(t, err)

	var serial = newTestAllocator(t, specs...)
	_, err = serial.SubmitBatch([]EventRequest{e1}, AsGiven)
	require.NoError(t, err)
	_, err = serial.SubmitBatch([]EventRequest{e2}, AsGiven)
	require.NoError(t, err)

	require.Equal(t, batched.Snapshot(), serial.Snapshot())
}

func TestLabelsArePerSessionCounters(t *testing.T) {
	var a = newTestAllocator(t,
		SessionSpec{Name: "morning", Capacity: Vector{Chairs: 2}},
		SessionSpec{Name: "afternoon", Capacity: Vector{Chairs: 5}},
	)
	var _, err = a.SubmitBatch([]EventRequest{
		{Title: "a", Requires: Vector{Chairs: 1}},
		{Title: "b", Requires: Vector{Chairs: 1}},
		{Title: "c", Requires: Vector{Chairs: 1}},
		{Title: "d", Requires: Vector{Chairs: 1}},
	}, AsGiven)
	require.NoError(t, err)

	var got []string
	for _, r := range a.Snapshot().Ledger {
		got = append(got, fmt.Sprintf("%s:%s:%s", r.Title, r.Session, r.Label))
	}
	require.Equal(t, []string{
		"a:morning:CSE 1",
		"b:morning:CSE 2",
		"c:afternoon:CSE 1",
		"d:afternoon:CSE 2",
	}, got)
}

func TestLabelPrefixOption(t *testing.T) {
	var a, err = New([]SessionSpec{{Name: "A", Capacity: Vector{Chairs: 1}}},
		WithLabelPrefix("ROOM"), WithIDFunc(seqIDs()))
	require.NoError(t, err)

	out, err := a.Submit(EventRequest{Requires: Vector{Chairs: 1}})
	require.NoError(t, err)
	require.Equal(t, "ROOM 1", out.Record.Label)
}

func TestReleaseRestoresCapacityExactly(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})

	var out, err = a.Submit(EventRequest{Title: "talk", Requires: Vector{Chairs: 3}})
	require.NoError(t, err)
	require.True(t, out.Placed())
	require.Equal(t, 2, sessionOf(t, a, "A").Available[Chairs])

	rec, err := a.Release(0)
	require.NoError(t, err)
	require.Equal(t, *out.Record, rec)
	require.Equal(t, 5, sessionOf(t, a, "A").Available[Chairs])
	require.Equal(t, 0, a.Len())
}

func TestReleaseShiftsWithoutRelabeling(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})
	var _, err = a.SubmitBatch([]EventRequest{
		{Title: "a", Requires: Vector{Chairs: 1}},
		{Title: "b", Requires: Vector{Chairs: 1}},
		{Title: "c", Requires: Vector{Chairs: 1}},
	}, AsGiven)
	require.NoError(t, err)

	rec, err := a.Release(0)
	require.NoError(t, err)
	require.Equal(t, "a", rec.Title)

	var ledger = a.Snapshot().Ledger
	require.Len(t, ledger, 2)
	require.Equal(t, []string{"b", "c"}, []string{ledger[0].Title, ledger[1].Title})
	require.Equal(t, []string{"CSE 2", "CSE 3"}, []string{ledger[0].Label, ledger[1].Label})

	// A following placement counts the records now in the session.
	out, err := a.Submit(EventRequest{Title: "d", Requires: Vector{Chairs: 1}})
	require.NoError(t, err)
	require.Equal(t, "CSE 3", out.Record.Label)
	require.NoError(t, a.Snapshot().CheckConservation())
}

func TestReleaseNotFound(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})
	var _, err = a.Submit(EventRequest{Requires: Vector{Chairs: 1}})
	require.NoError(t, err)

	var before = a.Snapshot()

	for _, ind := range []int{-1, 1, 7} {
		_, err = a.Release(ind)

		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		require.Equal(t, ind, nf.Index)
		require.Equal(t, 1, nf.Len)
	}
	require.EqualError(t, err, "ledger index out of range (7; expected 0 <= index < 1)")

	_, err = a.ReleaseID("does-not-exist")
	require.EqualError(t, err, "ledger record not found (id does-not-exist)")

	require.Equal(t, before, a.Snapshot())
}

func TestReleaseByID(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})
	var _, err = a.SubmitBatch([]EventRequest{
		{Title: "a", Requires: Vector{Chairs: 1}},
		{Title: "b", Requires: Vector{Chairs: 2}},
	}, AsGiven)
	require.NoError(t, err)

	rec, err := a.ReleaseID("id-2")
	require.NoError(t, err)
	require.Equal(t, "b", rec.Title)
	require.Equal(t, 4, sessionOf(t, a, "A").Available[Chairs])
	require.Equal(t, 1, a.Len())
}

func TestEmptyBatchIsIdempotent(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})
	var before = a.Snapshot()

	for _, policy := range []OrderingPolicy{AsGiven, BySizeAscending} {
		var out, err = a.SubmitBatch(nil, policy)
		require.NoError(t, err)
		require.Empty(t, out)

		out, err = a.SubmitBatch([]EventRequest{}, policy)
		require.NoError(t, err)
		require.Equal(t, []Outcome{}, out)
	}
	require.Equal(t, before, a.Snapshot())
}

func TestInvalidRequestsLeaveStateUnchanged(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})
	var before = a.Snapshot()

	for _, tc := range []struct {
		reqs   []EventRequest
		policy OrderingPolicy
		expect string
	}{
		{
			reqs:   []EventRequest{{Requires: Vector{Chairs: 1}}, {Requires: Vector{Chairs: -1}}},
			expect: "requests[1].requires.chairs: must be >= 0 (-1)",
		},
		{
			reqs:   []EventRequest{{Requires: Vector{"tables": 1}}},
			expect: "requests[0].requires: unknown resource kind (tables)",
		},
		{
			reqs:   []EventRequest{{Start: "9am"}},
			expect: "requests[0].start: expected HH:MM (9am)",
		},
		{
			reqs:   []EventRequest{{Start: "10:00", End: "25:00"}},
			expect: "requests[0].end: expected HH:MM (25:00)",
		},
		{
			reqs:   []EventRequest{{}, {Start: "10:00", End: "09:30"}},
			expect: "requests[1]: end precedes start (09:30 < 10:00)",
		},
		{
			reqs:   []EventRequest{{Requires: Vector{Chairs: 1}}},
			policy: OrderingPolicy(42),
			expect: "unknown ordering policy (42)",
		},
	} {
		var out, err = a.SubmitBatch(tc.reqs, tc.policy)
		require.EqualError(t, err, tc.expect)
		require.Nil(t, out)

		var ir *InvalidRequestError
		require.True(t, errors.As(err, &ir))
	}
	require.Equal(t, before, a.Snapshot())
}

func TestNewValidation(t *testing.T) {
	for _, tc := range []struct {
		specs  []SessionSpec
		opts   []Option
		expect string
	}{
		{specs: nil, expect: "expected at least one session"},
		{
			specs:  []SessionSpec{{Name: "A"}, {Name: " "}},
			expect: "sessions[1]: session name is empty",
		},
		{
			specs:  []SessionSpec{{Name: "A"}, {Name: "B"}, {Name: "A"}},
			expect: "sessions[2]: duplicated session name (A)",
		},
		{
			specs:  []SessionSpec{{Name: "A", Capacity: Vector{Chairs: 1}}, {Name: "B", Capacity: Vector{Mikes: -2}}},
			expect: "sessions[1].capacity.mikes: must be >= 0 (-2)",
		},
		{
			specs:  []SessionSpec{{Name: "A", Capacity: Vector{"tables": 2}}},
			expect: "sessions[0].capacity: unknown resource kind (tables)",
		},
		{
			specs:  []SessionSpec{{Name: "A"}},
			opts:   []Option{WithKinds()},
			expect: "expected at least one resource kind",
		},
		{
			specs:  []SessionSpec{{Name: "A"}},
			opts:   []Option{WithKinds("a", "b", "a")},
			expect: "kinds[2]: duplicated kind (a)",
		},
		{
			specs:  []SessionSpec{{Name: "A"}},
			opts:   []Option{WithKinds("a", "")},
			expect: "kinds[1]: kind name is empty",
		},
	} {
		var a, err = New(tc.specs, tc.opts...)
		require.EqualError(t, err, tc.expect)
		require.Nil(t, a)

		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
	}
}

func TestNewCopiesInitialCapacity(t *testing.T) {
	var capacity = Vector{Chairs: 3}
	var a, err = New([]SessionSpec{{Name: "A", Capacity: capacity}}, WithKinds(Chairs, "tables"))
	require.NoError(t, err)

	capacity[Chairs] = 100 // Must not alias the Allocator's state.

	var snap = a.Snapshot()
	require.Equal(t, Kinds{Chairs, "tables"}, snap.Kinds)
	require.Equal(t, []SessionState{{
		Name:      "A",
		Initial:   Vector{Chairs: 3, "tables": 0},
		Available: Vector{Chairs: 3, "tables": 0},
	}}, snap.Sessions)
	require.Empty(t, snap.Ledger)
}

func TestSnapshotIsIsolated(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})
	var req = EventRequest{Title: "talk", Requires: Vector{Chairs: 2}}

	var out, err = a.Submit(req)
	require.NoError(t, err)

	// Mutate everything reachable from the caller's side.
	req.Requires[Chairs] = 99
	out.Record.Requires[Chairs] = 99
	out.Request.Requires[Chairs] = 99

	var snap = a.Snapshot()
	snap.Sessions[0].Available[Chairs] = 99
	snap.Ledger[0].Requires[Chairs] = 99
	snap.Ledger[0].Title = "changed"
	snap.Kinds[0] = "changed"

	snap = a.Snapshot()
	require.Equal(t, 3, snap.Sessions[0].Available[Chairs])
	require.Equal(t, Vector{Chairs: 2}, snap.Ledger[0].Requires)
	require.Equal(t, "talk", snap.Ledger[0].Title)
	require.Equal(t, DefaultKinds(), snap.Kinds)
	require.NoError(t, snap.CheckConservation())
}

func TestConservationOverOperationSequences(t *testing.T) {
	var a = newTestAllocator(t,
		SessionSpec{Name: "morning", Capacity: Vector{Projectors: 5, Mikes: 5, Chairs: 5, Markers: 5}},
		SessionSpec{Name: "afternoon", Capacity: Vector{Projectors: 5, Mikes: 5, Chairs: 5, Markers: 5}},
		SessionSpec{Name: "evening", Capacity: Vector{Projectors: 5, Mikes: 5, Chairs: 5, Markers: 5}},
	)
	// Deterministic pseudo-random sequence of submits and releases.
	var seed uint32 = 7
	var next = func(n int) int {
		seed = seed*1664525 + 1013904223
		return int(seed>>16) % n
	}

	for step := 0; step != 200; step++ {
		if a.Len() != 0 && next(3) == 0 {
			var _, err = a.Release(next(a.Len()))
			require.NoError(t, err)
		} else {
			var batch = make([]EventRequest, next(4))
			for i := range batch {
				batch[i] = EventRequest{
					Title: fmt.Sprintf("event-%d-%d", step, i),
					Requires: Vector{
						Projectors: next(3),
						Mikes:      next(3),
						Chairs:     next(4),
						Markers:    next(2),
					},
				}
			}
			var _, err = a.SubmitBatch(batch, OrderingPolicy(next(2)))
			require.NoError(t, err)
		}
		require.NoError(t, a.Snapshot().CheckConservation(), "step %d", step)
	}
}

func TestCheckConservationDetectsViolations(t *testing.T) {
	var a = newTestAllocator(t, SessionSpec{Name: "A", Capacity: Vector{Chairs: 5}})
	var _, err = a.Submit(EventRequest{Title: "talk", Requires: Vector{Chairs: 2}})
	require.NoError(t, err)

	var snap = a.Snapshot()
	snap.Ledger[0].Requires[Chairs] = 1
	require.EqualError(t, snap.CheckConservation(),
		"session A: chairs not conserved (available + placed = 4; initial 5)")

	snap = a.Snapshot()
	snap.Ledger[0].Session = "B"
	require.Error(t, snap.CheckConservation())

	snap = a.Snapshot()
	snap.Sessions[0].Available[Chairs] = -1
	require.EqualError(t, snap.CheckConservation(), "session A: available chairs is negative (-1)")
}

func TestParseOrderingPolicy(t *testing.T) {
	for name, expect := range map[string]OrderingPolicy{
		"":                  AsGiven,
		"as-given":          AsGiven,
		"AsGiven":           AsGiven,
		"by-size":           BySizeAscending,
		"By-Size-Ascending": BySizeAscending,
		"BySizeAscending":   BySizeAscending,
	} {
		var p, err = ParseOrderingPolicy(name)
		require.NoError(t, err)
		require.Equal(t, expect, p)
	}
	var _, err = ParseOrderingPolicy("best-fit")
	require.EqualError(t, err, "unknown ordering policy (best-fit)")

	require.Equal(t, "as-given", AsGiven.String())
	require.Equal(t, "by-size", BySizeAscending.String())
	require.Equal(t, "OrderingPolicy(9)", OrderingPolicy(9).String())
}

func TestMetricsTrackPlacementsAndReleases(t *testing.T) {
	var placed = testutil.ToFloat64(allocatorPlacedTotal)
	var rejected = testutil.ToFloat64(allocatorRejectedTotal.WithLabelValues(string(ReasonInsufficientResources)))
	var released = testutil.ToFloat64(allocatorReleasedTotal)

	var a = newTestAllocator(t, SessionSpec{Name: "metrics-session", Capacity: Vector{Chairs: 4}})
	var _, err = a.SubmitBatch([]EventRequest{
		{Requires: Vector{Chairs: 3}},
		{Requires: Vector{Chairs: 3}},
	}, AsGiven)
	require.NoError(t, err)

	require.Equal(t, placed+1, testutil.ToFloat64(allocatorPlacedTotal))
	require.Equal(t, rejected+1, testutil.ToFloat64(
		allocatorRejectedTotal.WithLabelValues(string(ReasonInsufficientResources))))
	require.Equal(t, 1.0, testutil.ToFloat64(
		allocatorAvailable.WithLabelValues("metrics-session", string(Chairs))))

	_, err = a.Release(0)
	require.NoError(t, err)

	require.Equal(t, released+1, testutil.ToFloat64(allocatorReleasedTotal))
	require.Equal(t, 4.0, testutil.ToFloat64(
		allocatorAvailable.WithLabelValues("metrics-session", string(Chairs))))
}

func TestGaugesReflectMostRecentlyMutatedAllocator(t *testing.T) {
	var first = newTestAllocator(t, SessionSpec{Name: "shared-gauge", Capacity: Vector{Chairs: 4}})
	var second = newTestAllocator(t, SessionSpec{Name: "shared-gauge", Capacity: Vector{Chairs: 9}})

	var available = func() float64 {
		return testutil.ToFloat64(allocatorAvailable.WithLabelValues("shared-gauge", string(Chairs)))
	}
	require.Equal(t, 9.0, available())

	var _, err = first.Submit(EventRequest{Requires: Vector{Chairs: 1}})
	require.NoError(t, err)
	require.Equal(t, 3.0, available())
	require.Equal(t, 1.0, testutil.ToFloat64(allocatorLedgerRecords))

	_, err = second.Submit(EventRequest{Requires: Vector{Chairs: 2}})
	require.NoError(t, err)
	require.Equal(t, 7.0, available())
}

func newTestAllocator(t *testing.T, specs ...SessionSpec) *Allocator {
	var a, err = New(specs, WithIDFunc(seqIDs()))
	require.NoError(t, err)
	return a
}

func seqIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func sessionOf(t *testing.T, a *Allocator, name string) SessionState {
	var s, ok = a.Snapshot().Session(name)
	require.True(t, ok)
	return s
}
