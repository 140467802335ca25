package stepcompress

// CheckLines gates the verifier (C8), mirroring the teacher's runtime
// debug-flag idiom (core/debug.go) since Go has no build-time macro
// equivalent to the original's compile-time CHECK_LINES switch. Disabled by
// default; callers that want the extra safety net set it true.
var CheckLines = false

// CheckLine replays move against its per-step tolerance windows using the
// same arithmetic the MCU would use, and reports whether every reproduced
// pulse falls inside its Points window (spec.md §4.8). len(points) must
// equal int(move.Count).
func CheckLine(move StepMove, points []Points) error {
	if !CheckLines {
		return nil
	}
	if move.Interval >= 1<<31 {
		return ErrIntervalOverflow
	}
	if int(move.Count) != len(points) {
		return ErrInvalidSequence
	}

	interval := int64(move.Interval)
	add := int64(move.Add)
	for i := 0; i < int(move.Count); i++ {
		s := int64(i + 1)
		off := s*interval + add*s*(s-1)/2
		p := points[i]
		if off < int64(p.Minp) || off > int64(p.Maxp) {
			return ErrInvalidSequence
		}
	}
	return nil
}
