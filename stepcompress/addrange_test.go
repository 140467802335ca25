package stepcompress

import "testing"

func TestIdivUp(t *testing.T) {
	cases := []struct{ n, d, want int64 }{
		{7, 2, 4},
		{8, 2, 4},
		{-7, 2, -3},
		{-8, 2, -4},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := idivUp(c.n, c.d); got != c.want {
			t.Errorf("idivUp(%d, %d) = %d, want %d", c.n, c.d, got, c.want)
		}
	}
}

func TestIdivDown(t *testing.T) {
	cases := []struct{ n, d, want int64 }{
		{7, 2, 3},
		{8, 2, 4},
		{-7, 2, -4},
		{-8, 2, -4},
		{0, 5, 0},
	}
	for _, c := range cases {
		if got := idivDown(c.n, c.d); got != c.want {
			t.Errorf("idivDown(%d, %d) = %d, want %d", c.n, c.d, got, c.want)
		}
	}
}

// buildConstantVelocityQueue creates a queue of n steps at exactly `interval`
// ticks apart, with tolerance maxError around each ideal point.
func buildConstantVelocityQueue(n int, interval uint32, maxError uint32) *QueueRef {
	q := newStepQueue()
	for s := 1; s <= n; s++ {
		q.Push(uint32(s) * interval)
	}
	return q.View(q.Len(), 0, 0, 0, maxError)
}

func TestAddRangeScanAcceptsExactConstantVelocity(t *testing.T) {
	qr := buildConstantVelocityQueue(10, 1000, 50)
	r := newAddRange()
	r.scan(qr, 1000)

	if r.Count != 10 {
		t.Fatalf("Count = %d, want 10 (every step should fit add=0 within tolerance)", r.Count)
	}
	if r.MinAdd > 0 || r.MaxAdd < 0 {
		t.Fatalf("feasible range [%d, %d] does not contain add=0", r.MinAdd, r.MaxAdd)
	}
}

func TestAddRangeScanStopsAtInfeasibleStep(t *testing.T) {
	q := newStepQueue()
	// First three steps consistent with interval=1000, add=0; the fourth
	// jumps far outside any tolerance window reachable from interval=1000.
	q.Push(1000)
	q.Push(2000)
	q.Push(3000)
	q.Push(50000)
	qr := q.View(q.Len(), 0, 0, 0, 10)

	r := newAddRange()
	r.scan(qr, 1000)

	if r.Count != 3 {
		t.Fatalf("Count = %d, want 3 (scan should stop before the infeasible 4th step)", r.Count)
	}
}

func TestAddRangeScanEmptyViewStopsImmediately(t *testing.T) {
	q := newStepQueue()
	qr := q.View(0, 0, 0, 0, 10)
	r := newAddRange()
	r.scan(qr, 1000)
	if r.Count != 0 {
		t.Fatalf("Count = %d, want 0 on an empty view", r.Count)
	}
}

// TestAddRangeScanAcceptsLinearDeceleration exercises a feasible range over
// a run with a genuine negative add, using the natural-continuation
// last_interval for a segment that began at interval=1100 and decelerates by
// 100 ticks per step (see DESIGN.md's Open Question decision on the worked
// examples' preconditions).
func TestAddRangeScanAcceptsLinearDeceleration(t *testing.T) {
	q := newStepQueue()
	var clock int64
	interval := int64(1000)
	add := int64(-100)
	field := interval + add // interval_field(1) = last_interval + add
	for s := 0; s < 5; s++ {
		clock += field
		q.Push(uint32(clock))
		field += add
	}
	qr := q.View(q.Len(), 0, 0, 0, 5)

	r := newAddRange()
	r.scan(qr, 1000)

	if r.Count != 5 {
		t.Fatalf("Count = %d, want 5", r.Count)
	}
	if r.MinAdd > -100 || r.MaxAdd < -100 {
		t.Fatalf("feasible range [%d, %d] does not contain add=-100", r.MinAdd, r.MaxAdd)
	}
}
