// Package stepcompress implements the host-side stepper pulse schedule
// compressor: it turns a stream of absolute step clocks from the motion
// planner into a short sequence of (interval, count, add) move commands that
// the MCU can replay with simple integer arithmetic, while keeping every
// reproduced pulse inside its per-step tolerance window.
//
// None of the exported types here are safe for concurrent use without
// external synchronization; the compression core is single-threaded and
// cooperative by design (see the Synchronizer in package syncer for how
// multiple steppers are merged onto one transport).
package stepcompress

// Wire and timing constants shared by every component in this package.
const (
	// ClockDiffMax bounds the clock delta the search is allowed to treat as
	// "near" (inside a single compression window). Anything farther away
	// must go through the far-step path (flushFar).
	ClockDiffMax = 3 << 28

	// SDSFilterTime is the step-dir-step debounce window, in seconds.
	SDSFilterTime = 0.000750

	// HistoryExpire is how long (in seconds of MCU clock) a history entry
	// is kept before it is eligible for eviction.
	HistoryExpire = 30

	// QueueStartSize is the initial StepQueue capacity.
	QueueStartSize = 1024

	// SearchWindow bounds how many queued steps a single compression pass
	// will consider.
	SearchWindow = 46000

	// QueueCap is the maximum number of steps held in a StepQueue before a
	// forced partial flush is required.
	QueueCap = 65535 + 2000

	// MinAdd and MaxAdd are the 16-bit signed bounds of the wire `add` field.
	MinAdd = -0x8000
	MaxAdd = 0x7fff
)

// Logger receives diagnostic lines from the compression core. A nil Logger
// disables logging. Grounded on the teacher's lightweight DebugPrintln-style
// gating (no structured logging package appears anywhere in the retrieval
// pack's real dependency graph).
type Logger func(format string, args ...any)

// Points is the per-step tolerance window, expressed as 32-bit offsets from
// a cursor's last_step_clock (wrap-around intentional; see QueueRef).
type Points struct {
	Minp uint32
	Maxp uint32
}

// StepMove is one MCU queue_step command: emit Count pulses starting at
// Interval ticks apart, with Add added to the interval after each pulse.
type StepMove struct {
	Interval uint32
	Count    uint16
	Add      int16
}

// Valid reports whether m satisfies the wire-level constraints spec.md §3
// places on an emitted StepMove.
func (m StepMove) Valid() bool {
	if m.Count < 1 {
		return false
	}
	if m.Count > 1 && m.Interval == 0 && m.Add == 0 {
		return false
	}
	return m.Interval < 1<<31
}

// AddMove is the internal search result produced by the step-move search
// (§4.2): a candidate (add, count) pair for the first of up to two fitted
// segments, before it is combined into a StepMove by wrapCompress.
type AddMove struct {
	Add   int64
	Count int

	// Degenerate moves bypass the add/count model entirely (§4.2.4 step 2):
	// the very first queued step could not be reached by any add within
	// 16-bit bounds from the current last_interval, so a single manually
	// placed step is emitted instead.
	Degenerate bool
	Interval   uint32
}
