package stepcompress

// AddRange tracks, as the candidate segment length grows one step at a
// time, the feasible range of `add` values that keep every covered step
// inside its tolerance window (spec.md §4.2.1-4.2.2).
type AddRange struct {
	MinAdd, MaxAdd int64
	Count          int
}

func newAddRange() AddRange {
	return AddRange{MinAdd: MinAdd, MaxAdd: MaxAdd, Count: 0}
}

// update attempts to extend the segment by one more step at the given base
// interval, narrowing [MinAdd, MaxAdd]. It reports false (leaving the range
// unchanged) if the next step cannot be reached by any add still in range,
// or if the view has no further steps.
func (r *AddRange) update(qr *QueueRef, interval uint32) bool {
	if r.Count >= qr.Count() {
		return false
	}
	countPrime := int64(r.Count + 1)
	addfactor := countPrime * (countPrime + 1) / 2
	pt := qr.PointsAt(r.Count)
	base := int64(interval) * countPrime
	minAddPrime := idivUp(int64(pt.Minp)-base, addfactor)
	maxAddPrime := idivDown(int64(pt.Maxp)-base, addfactor)

	newMin := r.MinAdd
	if minAddPrime > newMin {
		newMin = minAddPrime
	}
	newMax := r.MaxAdd
	if maxAddPrime < newMax {
		newMax = maxAddPrime
	}
	if newMin > newMax {
		return false
	}
	r.MinAdd, r.MaxAdd = newMin, newMax
	r.Count++
	return true
}

// scan repeatedly extends the range as far as feasible, i.e. the longest
// run (4.2.2).
func (r *AddRange) scan(qr *QueueRef, interval uint32) {
	for r.update(qr, interval) {
	}
}

// idivUp is ceiling division for a positive divisor, matching the C
// idiv_up semantics spec.md §9 requires (correct for both signs of n).
func idivUp(n, d int64) int64 {
	q := n / d
	if n%d != 0 && n > 0 {
		q++
	}
	return q
}

// idivDown is floor division for a positive divisor, matching the C
// idiv_down semantics spec.md §9 requires (correct for both signs of n).
func idivDown(n, d int64) int64 {
	q := n / d
	if n%d != 0 && n < 0 {
		q--
	}
	return q
}
