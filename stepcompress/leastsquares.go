package stepcompress

import "math"

// calcLeastSquares jointly fits a two-segment (add1, count1) + (add2, count2)
// model over the first totalcount steps of qr, returning the best (add1,
// count1) pair seen (ties broken by first-seen), per spec.md §4.2.3.
//
// The segments share one free boundary: count1 runs from 0 up to however far
// a plain AddRange scan can extend segment 1 alone, since add1 cannot be
// feasible past that point regardless of how good the joint fit looks.
//
// Rather than maintaining the five running sums incrementally in O(1) per
// step (as the original algorithm's note describes), this port recomputes
// them directly in O(totalcount) per count1 tried. Window sizes in this
// domain (bounded by SearchWindow, but in practice a few dozen steps between
// flushes) make the O(totalcount^2) total cost irrelevant next to transport
// latency, and direct recomputation is far less likely to harbor an
// off-by-one than a hand-maintained incremental accumulator — a deliberate
// trade documented in DESIGN.md.
func calcLeastSquares(qr *QueueRef, totalcount int) AddMove {
	ar := newAddRange()
	best := AddMove{Add: 0, Count: 0}
	haveBest := false
	bestErr := math.Inf(1)

	limit := totalcount
	for count1 := 0; count1 <= limit; count1++ {
		if count1 > 0 {
			if !ar.update(qr, qr.lastInterval) {
				break
			}
		}
		count2 := totalcount - count1
		if count2 < 0 {
			break
		}

		varAc1, varAc2, covAc12, covA1T, covA2T := accumulate(qr, totalcount, count1)
		add1raw, add2raw, ok := solveNormal(varAc1, varAc2, covAc12, covA1T, covA2T)
		if !ok {
			continue
		}

		add1 := int64(math.Round(add1raw))
		if add1 < ar.MinAdd {
			add1 = ar.MinAdd
		}
		if add1 > ar.MaxAdd {
			add1 = ar.MaxAdd
		}

		add2 := recomputeAdd2(add1, varAc2, covAc12, covA2T)
		add2Int, feasible := repairAdd2(qr, totalcount, count1, count2, add1, int64(math.Round(add2)))
		if !feasible {
			continue
		}

		da1 := float64(add1) - add1raw
		da2 := float64(add2Int) - add2raw
		errv := objective(da1, da2, varAc1, varAc2, covAc12)
		if !haveBest || errv < bestErr {
			bestErr = errv
			best = AddMove{Add: add1, Count: count1}
			haveBest = true
		}
	}
	return best
}

// ac1At and ac2At are the coefficients of add1/add2 in the cumulative
// reproduced offset at step s (1-indexed), derived from the wire-replay
// identity interval_field = last_interval + add. When
// count1 == 0 segment 2 is effectively the whole move and inherits the
// leading "+1" term that only the very first emitted segment gets.
func ac1At(s, count1 int) float64 {
	if count1 == 0 {
		return 0
	}
	if s <= count1 {
		return float64(s) * float64(s+1) / 2
	}
	j := s - count1
	return float64(count1)*float64(count1+1)/2 + float64(j)*float64(count1+1)
}

func ac2At(s, count1 int) float64 {
	if s <= count1 {
		return 0
	}
	j := s - count1
	if count1 == 0 {
		return float64(s) * float64(s+1) / 2
	}
	return float64(j) * float64(j-1) / 2
}

func ac1IntAt(s, count1 int) int64 {
	if count1 == 0 {
		return 0
	}
	if s <= count1 {
		return int64(s) * int64(s+1) / 2
	}
	j := int64(s - count1)
	return int64(count1)*int64(count1+1)/2 + j*int64(count1+1)
}

func ac2IntAt(s, count1 int) int64 {
	if s <= count1 {
		return 0
	}
	j := int64(s - count1)
	if count1 == 0 {
		return int64(s) * int64(s+1) / 2
	}
	return j * (j - 1) / 2
}

// targetAt is the cumulative offset residual at step s relative to the
// s*last_interval baseline — the regression target for ac1/ac2.
func targetAt(qr *QueueRef, s int) float64 {
	off := int64(qr.offsetAt(s - 1))
	return float64(off) - float64(s)*float64(qr.lastInterval)
}

func accumulate(qr *QueueRef, totalcount, count1 int) (varAc1, varAc2, covAc12, covA1T, covA2T float64) {
	for s := 1; s <= totalcount; s++ {
		a1 := ac1At(s, count1)
		a2 := ac2At(s, count1)
		t := targetAt(qr, s)
		varAc1 += a1 * a1
		varAc2 += a2 * a2
		covAc12 += a1 * a2
		covA1T += a1 * t
		covA2T += a2 * t
	}
	return
}

func solveNormal(varAc1, varAc2, covAc12, covA1T, covA2T float64) (add1, add2 float64, ok bool) {
	const eps = 1e-9
	switch {
	case varAc1 < eps && varAc2 < eps:
		return 0, 0, false
	case varAc1 < eps:
		return 0, covA2T / varAc2, true
	case varAc2 < eps:
		return covA1T / varAc1, 0, true
	}
	det := varAc1*varAc2 - covAc12*covAc12
	if math.Abs(det) < eps {
		return covA1T / varAc1, 0, true
	}
	add1 = (covA1T*varAc2 - covAc12*covA2T) / det
	add2 = (varAc1*covA2T - covAc12*covA1T) / det
	return add1, add2, true
}

// recomputeAdd2 solves the second normal equation for add2 given a fixed
// (clamped) add1.
func recomputeAdd2(add1 int64, varAc2, covAc12, covA2T float64) float64 {
	if varAc2 < 1e-9 {
		return 0
	}
	return (covA2T - float64(add1)*covAc12) / varAc2
}

func objective(da1, da2, varAc1, varAc2, covAc12 float64) float64 {
	return da1*da1*varAc1 + da2*da2*varAc2 + 2*da1*da2*covAc12
}

// repairAdd2 nudges add2 (already rounded to an integer) so the final
// step's reproduced cumulative offset lands inside its tolerance window,
// per spec.md §4.2.3's clamp-then-repair order. It reports false if no
// integer add2 within 16-bit bounds can repair the fit.
func repairAdd2(qr *QueueRef, totalcount, count1, count2 int, add1, add2 int64) (int64, bool) {
	pt := qr.PointsAt(totalcount - 1)
	reproduced := func(a2 int64) int64 {
		return int64(totalcount)*int64(qr.lastInterval) + add1*ac1IntAt(totalcount, count1) + a2*ac2IntAt(totalcount, count1)
	}

	off := reproduced(add2)
	gap := int64(0)
	switch {
	case off < int64(pt.Minp):
		gap = int64(pt.Minp) - off
	case off > int64(pt.Maxp):
		gap = int64(pt.Maxp) - off
	}
	if gap == 0 {
		return add2, true
	}

	af2 := ac2IntAt(totalcount, count1)
	if af2 == 0 {
		return add2, false
	}
	mag := gap
	if mag < 0 {
		mag = -mag
	}
	correction := idivUp(mag, af2)
	if gap < 0 {
		correction = -correction
	}
	add2 += correction
	if add2 < MinAdd || add2 > MaxAdd {
		return add2, false
	}
	off = reproduced(add2)
	if off < int64(pt.Minp) || off > int64(pt.Maxp) {
		return add2, false
	}
	_ = count2
	return add2, true
}
