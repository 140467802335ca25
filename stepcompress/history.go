package stepcompress

import "math"

// HistoryEntry records one already-flushed StepMove long enough to answer
// "what position was the stepper at at clock X" queries (spec.md §4.5),
// indexed by the direction it stepped in.
type HistoryEntry struct {
	FirstClock    uint64
	LastClock     uint64
	StartPosition int64
	Interval      uint32
	Add           int16
	Count         uint16
	Forward       bool
}

// history is a list of HistoryEntry in the order they were appended, oldest
// first. append never drops entries; only freeHistoryBefore does, called
// from StepperCompressor.SetTime (entries that ended more than HistoryExpire
// before lastStepClock) and StepperCompressor.ExtractOld.
type history struct {
	entries []HistoryEntry
}

func (h *history) append(e HistoryEntry) {
	h.entries = append(h.entries, e)
}

// freeHistoryBefore drops every entry whose LastClock is strictly before
// cutoff (ticks), keeping the ring bounded in long-running sessions.
func (h *history) freeHistoryBefore(cutoff uint64) {
	i := 0
	for i < len(h.entries) && h.entries[i].LastClock < cutoff {
		i++
	}
	if i > 0 {
		h.entries = append(h.entries[:0], h.entries[i:]...)
	}
}

// findPastPosition inverts a HistoryEntry's arithmetic progression to find
// the stepper position at the given absolute clock, per spec.md §4.5: solve
// interval*offset + add*offset*(offset-1)/2 = ticks for the largest integer
// offset with a non-negative solution, clamped to [0, count]. Entries are
// searched newest first; a clock at or after an entry's LastClock reports
// that entry's end position. A clock before the oldest entry (or any clock
// when there is no history) is reported as not found.
func findPastPosition(entries []HistoryEntry, clock uint64) (int64, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if clock < e.FirstClock {
			continue
		}
		delta := int64(e.Count)
		if clock < e.LastClock {
			ticks := (clock - e.FirstClock) + uint64(e.Interval)
			delta = int64(invertStepOffset(e, ticks))
		}
		if e.Forward {
			return e.StartPosition + delta, true
		}
		return e.StartPosition - delta, true
	}
	return 0, false
}

// invertStepOffset solves interval*offset + add*offset*(offset-1)/2 = ticks
// for the largest integer offset in [0, count] whose reproduced time does
// not exceed ticks.
func invertStepOffset(e HistoryEntry, ticks uint64) uint16 {
	if e.Add == 0 {
		if e.Interval == 0 {
			return 0
		}
		off := ticks / uint64(e.Interval)
		if off > uint64(e.Count) {
			off = uint64(e.Count)
		}
		return uint16(off)
	}

	// ticks = interval*x + add/2*x^2 - add/2*x  =>  (add/2)x^2 + (interval -
	// add/2)x - ticks = 0. Solve the quadratic in float64, then walk by +-1
	// to correct for rounding since offsets are always small integers here.
	a := float64(e.Add) / 2
	b := float64(e.Interval) - a
	c := -float64(ticks)
	disc := b*b - 4*a*c
	if disc < 0 {
		disc = 0
	}
	sq := math.Sqrt(disc)
	var x float64
	if a > 0 {
		x = (-b + sq) / (2 * a)
	} else {
		x = (-b - sq) / (2 * a)
	}
	off := int64(math.Floor(x))
	off = clampOffset(e, off, ticks)
	return uint16(off)
}

func reproducedTicks(e HistoryEntry, off int64) int64 {
	return int64(e.Interval)*off + int64(e.Add)*off*(off-1)/2
}

func clampOffset(e HistoryEntry, off int64, ticks uint64) int64 {
	if off < 0 {
		off = 0
	}
	if off > int64(e.Count) {
		off = int64(e.Count)
	}
	for off > 0 && reproducedTicks(e, off) > int64(ticks) {
		off--
	}
	for off < int64(e.Count) && reproducedTicks(e, off+1) <= int64(ticks) {
		off++
	}
	return off
}
