package stepcompress

// StepQueue is an appendable sequence of 32-bit step clocks (the low 32 bits
// of an absolute 64-bit MCU clock). It grows by doubling from QueueStartSize
// and compacts by shifting live data back to index 0 once the consumed
// prefix is large enough to be worth reclaiming.
//
// Not safe for concurrent use without external synchronization.
type StepQueue struct {
	data []uint32
	pos  int // index of the oldest unconsumed entry
	next int // index one past the newest entry
}

func newStepQueue() *StepQueue {
	return &StepQueue{data: make([]uint32, 0, QueueStartSize)}
}

// Len returns the number of unconsumed (live) entries.
func (q *StepQueue) Len() int {
	return q.next - q.pos
}

// Push appends a new step clock to the tail of the queue, growing or
// compacting storage as needed.
func (q *StepQueue) Push(clock uint32) {
	q.reserve()
	if q.next < len(q.data) {
		q.data[q.next] = clock
	} else {
		q.data = append(q.data, clock)
	}
	q.next++
}

// reserve ensures there is room for one more push, compacting the live span
// to the front of the backing array first, then growing by doubling if that
// alone is not enough.
func (q *StepQueue) reserve() {
	if q.pos > 0 && (q.next >= cap(q.data) || q.pos > cap(q.data)/2) {
		q.compact()
	}
	if q.next >= cap(q.data) {
		newCap := cap(q.data) * 2
		if newCap == 0 {
			newCap = QueueStartSize
		}
		grown := make([]uint32, q.next, newCap)
		copy(grown, q.data)
		q.data = grown
	}
}

// compact shifts the live span [pos, next) down to index 0.
func (q *StepQueue) compact() {
	if q.pos == 0 {
		return
	}
	n := copy(q.data, q.data[q.pos:q.next])
	q.data = q.data[:n]
	q.next = n
	q.pos = 0
}

// Advance marks count entries at the head of the live span as consumed.
func (q *StepQueue) Advance(count int) {
	q.pos += count
	if q.pos > q.next {
		q.pos = q.next
	}
}

// At returns the raw clock at live-span offset i (0 is the oldest
// unconsumed entry).
func (q *StepQueue) At(i int) uint32 {
	return q.data[q.pos+i]
}

// OverCap reports whether the live span exceeds the hard queue cap,
// signalling that the caller must force a partial flush before pushing more.
func (q *StepQueue) OverCap() bool {
	return q.Len() > QueueCap
}

// View returns a QueueRef over up to maxCount live entries, anchored at the
// given cursor state. maxCount is clamped to both the live span and
// SearchWindow.
func (q *StepQueue) View(maxCount int, lastStepClock, lastIdealStepClock uint64, lastInterval, maxError uint32) *QueueRef {
	if maxCount > SearchWindow {
		maxCount = SearchWindow
	}
	return &QueueRef{
		q:                  q,
		base:               q.pos,
		window:             maxCount,
		lastStepClock:      lastStepClock,
		lastIdealStepClock: lastIdealStepClock,
		lastInterval:       lastInterval,
		maxError:           maxError,
	}
}

// QueueRef is a read-only, bounded view into a StepQueue, carrying the
// cursor state (last_step_clock, last_ideal_step_clock, last_interval) that
// the search math needs to turn raw clocks into offsets and tolerance
// windows. All arithmetic here is in 32-bit wrapped offset space, matching
// spec.md's "*pos - (u32)last_step_clock (wrap-around intentional)".
type QueueRef struct {
	q      *StepQueue
	base   int
	window int

	lastStepClock      uint64
	lastIdealStepClock uint64
	lastInterval       uint32
	maxError           uint32
}

// Count returns the number of steps visible through this view.
func (qr *QueueRef) Count() int {
	avail := qr.q.next - qr.base
	if avail < 0 {
		avail = 0
	}
	if avail > qr.window {
		avail = qr.window
	}
	return avail
}

// offsetAt returns the wrapped 32-bit offset of live entry i from
// last_step_clock.
func (qr *QueueRef) offsetAt(i int) uint32 {
	return qr.q.data[qr.base+i] - uint32(qr.lastStepClock)
}

// rawAt returns the absolute low-32 clock value of live entry i.
func (qr *QueueRef) rawAt(i int) uint32 {
	return qr.q.data[qr.base+i]
}

// PointsAt returns the tolerance window for live entry i.
func (qr *QueueRef) PointsAt(i int) Points {
	maxp := qr.offsetAt(i)
	var prev uint32
	if i == 0 {
		prev = uint32(qr.lastIdealStepClock) - uint32(qr.lastStepClock)
	} else {
		prev = qr.offsetAt(i - 1)
	}
	gap := maxp - prev
	errAllow := gap / 2
	if errAllow > qr.maxError {
		errAllow = qr.maxError
	}
	return Points{Minp: maxp - errAllow, Maxp: maxp}
}

// after returns a new QueueRef positioned just past a committed segment of
// count1 steps using interval/add1, simulating the cursor advance in the
// same 32-bit-offset search frame. The new lastInterval is
// lastInterval + add1*(count1+1), one `add` more than the interval of the
// segment's last step in the wire replay frame (see emitMove).
func (qr *QueueRef) after(count1 int, add1 int64) *QueueRef {
	if count1 == 0 {
		return &QueueRef{
			q:                  qr.q,
			base:               qr.base,
			window:             qr.window,
			lastStepClock:      qr.lastStepClock,
			lastIdealStepClock: qr.lastIdealStepClock,
			lastInterval:       qr.lastInterval,
			maxError:           qr.maxError,
		}
	}
	c := int64(count1)
	ticks := add1*c*(c+1)/2 + int64(qr.lastInterval)*c
	lastClock := qr.lastStepClock + uint64(ticks)
	lastInterval := uint32(int64(qr.lastInterval) + add1*(c+1))
	off := qr.offsetAt(count1 - 1)
	lastIdeal := qr.lastStepClock + uint64(off)
	return &QueueRef{
		q:                  qr.q,
		base:               qr.base + count1,
		window:             qr.window - count1,
		lastStepClock:      lastClock,
		lastIdealStepClock: lastIdeal,
		lastInterval:       lastInterval,
		maxError:           qr.maxError,
	}
}
