package stepcompress

// compressLeastSquares runs the full search (spec.md §4.2.4): a baseline
// single-segment scan, a degenerate single-step fallback if even that fails,
// and then an iterative widening using calcLeastSquares to look one segment
// ahead before settling on the (add, count) pair to hand to wrapCompress.
func compressLeastSquares(qr *QueueRef) AddMove {
	if qr.Count() == 0 {
		return AddMove{Count: 0}
	}

	baseline := newAddRange()
	baseline.scan(qr, qr.lastInterval)
	if baseline.Count == 0 {
		off0 := qr.offsetAt(0)
		interval := off0 - qr.lastInterval - qr.maxError/2
		return AddMove{Degenerate: true, Interval: interval, Count: 1, Add: 0}
	}

	result := AddMove{Add: (baseline.MinAdd + baseline.MaxAdd) / 2, Count: baseline.Count}
	prevTotal := result.Count

	for {
		tail := qr.after(result.Count, result.Add)
		seg2 := newAddRange()
		seg2.scan(tail, tail.lastInterval)
		totalcount := result.Count + seg2.Count
		if totalcount <= prevTotal {
			break
		}
		prevTotal = totalcount
		result = calcLeastSquares(qr, totalcount)
		if result.Count == 0 {
			// No count1 chosen at the larger window; fall back to the
			// baseline single-segment scan's result.
			result = AddMove{Add: (baseline.MinAdd + baseline.MaxAdd) / 2, Count: baseline.Count}
			break
		}
	}
	return result
}

// wrapCompress turns the search result for the current cursor into the
// StepMove that will actually be emitted, applying the "first pulse already
// carries one add" wire-encoding correction (spec.md §4.2.5), and folding a
// single leftover step into the following move's add-series when possible.
func wrapCompress(qr *QueueRef) (StepMove, int) {
	am1 := compressLeastSquares(qr)
	if am1.Count == 0 {
		return StepMove{}, 0
	}
	if am1.Degenerate {
		return StepMove{Interval: am1.Interval, Count: 1, Add: 0}, 1
	}

	if am1.Count == 1 && qr.Count() > 1 {
		tail := qr.after(1, am1.Add)
		am2 := compressLeastSquares(tail)
		if !am2.Degenerate && am2.Add >= MinAdd && am2.Add <= MaxAdd {
			move := StepMove{
				Interval: qr.lastInterval + uint32(am1.Add),
				Count:    uint16(am2.Count + 1),
				Add:      int16(am2.Add),
			}
			if move.Valid() {
				return move, am2.Count + 1
			}
		}
	}

	add := am1.Add
	if am1.Count <= 1 {
		add = 0
	}
	move := StepMove{
		Interval: qr.lastInterval + uint32(am1.Add),
		Count:    uint16(am1.Count),
		Add:      int16(add),
	}
	return move, am1.Count
}
