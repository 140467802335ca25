package stepcompress

import "fmt"

// Config holds the per-stepper wiring the compressor needs: which MCU
// object id it is compressing for, the tolerance budget, and the message
// tags used to build wire commands (spec.md §3, realized as a plain struct
// for idiomatic construction instead of the original's positional fill()).
type Config struct {
	OID                  uint32
	MaxError             uint32
	QueueStepMsgTag      int32
	SetNextStepDirMsgTag int32
	InvertSdir           bool
}

type pendingPoint struct {
	clock uint64
	dir   bool
}

// StepperCompressor is the per-stepper facade (C6) tying the queue, search,
// direction filter and history ring together into the four public phases a
// caller drives: Append raw planner steps, Commit them through the
// direction filter, Flush compressed StepMoves out to the transport, and
// query History for past positions.
//
// Not safe for concurrent use without external synchronization.
type StepperCompressor struct {
	oid       uint32
	cfg       Config
	transport Transport
	log       Logger

	clockFreq float64
	filter    *dirFilter
	queue     *StepQueue
	hist      history

	pending []pendingPoint

	queueDir bool
	haveDir  bool

	lastStepClock      uint64
	lastIdealStepClock uint64
	lastInterval       uint32
	lastPosition       int64
}

// NewStepperCompressor constructs a compressor for the given MCU object id.
func NewStepperCompressor(oid uint32, cfg Config, transport Transport, log Logger) *StepperCompressor {
	cfg.OID = oid
	return &StepperCompressor{
		oid:       oid,
		cfg:       cfg,
		transport: transport,
		log:       log,
		queue:     newStepQueue(),
	}
}

// SetInvertSdir flips the sense of the direction bit sent on the wire,
// without affecting any already-queued or already-committed steps.
func (c *StepperCompressor) SetInvertSdir(invert bool) {
	c.cfg.InvertSdir = invert
}

// SetTime establishes the stepper's clock frequency (ticks per second),
// used to convert SDSFilterTime and HistoryExpire from seconds into ticks,
// and drops history entries that ended more than HistoryExpire before
// lastStepClock. Must be called before the first Append.
func (c *StepperCompressor) SetTime(clockFreq float64) {
	c.clockFreq = clockFreq
	c.filter = newDirFilter(uint64(SDSFilterTime * clockFreq))
	if expire := uint64(HistoryExpire * clockFreq); c.lastStepClock > expire {
		c.hist.freeHistoryBefore(c.lastStepClock - expire)
	}
}

// Append stages one planner-reported step event. Steps must be appended in
// strictly increasing clock order; Commit later runs staged steps through
// the direction filter and into the compression queue.
func (c *StepperCompressor) Append(clock uint64, dir bool) error {
	if n := len(c.pending); n > 0 && clock <= c.pending[n-1].clock {
		return fmt.Errorf("stepcompress: append clock %d out of order: %w", clock, ErrInvalidSequence)
	}
	c.pending = append(c.pending, pendingPoint{clock: clock, dir: dir})
	return nil
}

// Commit runs every staged point through the direction filter, flushing the
// current run of compressed steps whenever a confirmed direction change
// occurs (steps of different directions cannot share one compression
// window), and pushes the surviving points into the queue. Since no further
// rollback is possible once Commit returns, it finishes by forcing any step
// still held by the filter into the queue too (spec.md §4.4 commit()).
func (c *StepperCompressor) Commit() ([]*Message, error) {
	if c.filter == nil {
		return nil, fmt.Errorf("stepcompress: Commit called before SetTime")
	}
	var msgs []*Message
	for _, p := range c.pending {
		if s := c.filter.push(p.clock, p.dir); s != nil {
			out, err := c.acceptStep(*s)
			if err != nil {
				return msgs, err
			}
			msgs = append(msgs, out...)
		}
	}
	c.pending = c.pending[:0]

	if s := c.filter.flush(); s != nil {
		out, err := c.acceptStep(*s)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, out...)
	}
	return msgs, nil
}

// acceptStep pushes one filtered step into the queue, emitting a direction
// message (and draining the previous direction's queue) first if needed.
func (c *StepperCompressor) acceptStep(s FilterStep) ([]*Message, error) {
	var msgs []*Message
	if !c.haveDir || s.Dir != c.queueDir {
		drained, err := c.flushAll()
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, drained...)
		msgs = append(msgs, c.emitDirChange(s.Dir))
		c.queueDir = s.Dir
		c.haveDir = true
	}
	c.queue.Push(uint32(s.Clock))
	return msgs, nil
}

func (c *StepperCompressor) emitDirChange(dir bool) *Message {
	wireDir := dir
	if c.cfg.InvertSdir {
		wireDir = !wireDir
	}
	var d uint32
	if wireDir {
		d = 1
	}
	msg := c.QueueMsg([]uint32{uint32(c.cfg.SetNextStepDirMsgTag), c.oid, d})
	msg.ReqClock = c.lastStepClock
	return msg
}

// QueueMsg asks the configured Transport to allocate and encode a raw wire
// payload, exposed directly so callers (and tests) can build custom
// messages without reaching into the Transport themselves.
func (c *StepperCompressor) QueueMsg(data []uint32) *Message {
	if c.transport == nil {
		return &Message{Data: data}
	}
	return c.transport.AllocAndEncode(data)
}

// Flush compresses queued steps into StepMoves, one per wrapCompress call,
// until the queue is empty or lastStepClock has reached moveClock. When the
// oldest queued step lies ClockDiffMax or more past the cursor, it is
// emitted on its own as a single-step move (flushFar) instead.
func (c *StepperCompressor) Flush(moveClock uint64) ([]*Message, error) {
	var msgs []*Message
	for c.queue.Len() > 0 && c.lastStepClock < moveClock {
		if c.flushFarNeeded() {
			msg, err := c.flushFar()
			if err != nil {
				return msgs, err
			}
			msgs = append(msgs, msg)
			continue
		}
		move, consumed := wrapCompress(c.currentView())
		if consumed == 0 {
			break
		}
		msg, err := c.emitMove(move, consumed)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
		if c.queue.OverCap() {
			continue
		}
	}
	return msgs, nil
}

// flushFarNeeded reports whether the oldest queued step is too far from the
// cursor for 32-bit wrapped offset arithmetic to stay unambiguous.
func (c *StepperCompressor) flushFarNeeded() bool {
	if c.queue.Len() == 0 {
		return false
	}
	off := c.queue.At(0) - uint32(c.lastStepClock)
	return off >= ClockDiffMax
}

// flushFar rebases the cursor directly onto the next queued step as a
// single-step degenerate move, when that step is too far away (in 32-bit
// wrapped offset terms) for the normal search to reach it safely.
func (c *StepperCompressor) flushFar() (*Message, error) {
	raw := c.queue.At(0)
	move := StepMove{Interval: raw - uint32(c.lastStepClock), Count: 1, Add: 0}
	return c.emitMove(move, 1)
}

func (c *StepperCompressor) currentView() *QueueRef {
	return c.queue.View(c.queue.Len(), c.lastStepClock, c.lastIdealStepClock, c.lastInterval, c.cfg.MaxError)
}

// emitMove advances the cursor past consumed queued steps, records history
// for position queries, verifies the move if CheckLines is enabled, and
// encodes it as a queue_step wire message.
func (c *StepperCompressor) emitMove(move StepMove, consumed int) (*Message, error) {
	if CheckLines {
		qr := c.currentView()
		points := make([]Points, consumed)
		for i := 0; i < consumed; i++ {
			points[i] = qr.PointsAt(i)
		}
		if err := CheckLine(move, points); err != nil {
			return nil, fmt.Errorf("stepcompress: move verification failed: %w", err)
		}
	}

	oldLastStepClock := c.lastStepClock
	firstClock := c.lastStepClock + uint64(move.Interval)
	step1 := int64(move.Interval)
	add := int64(move.Add)
	n := int64(move.Count)
	lastClockOffset := step1*n + add*n*(n-1)/2 - step1
	lastClock := firstClock + uint64(lastClockOffset)

	c.hist.append(HistoryEntry{
		FirstClock:    firstClock,
		LastClock:     lastClock,
		StartPosition: c.lastPosition,
		Interval:      move.Interval,
		Add:           move.Add,
		Count:         move.Count,
		Forward:       c.queueDir,
	})

	if c.queueDir {
		c.lastPosition += int64(move.Count)
	} else {
		c.lastPosition -= int64(move.Count)
	}

	c.lastInterval = move.Interval + uint32(int64(move.Add)*(n-1))
	c.lastStepClock = lastClock
	c.lastIdealStepClock = uint64(c.queue.At(consumed - 1))
	c.queue.Advance(consumed)

	msg := c.QueueMsg([]uint32{
		uint32(c.cfg.QueueStepMsgTag),
		c.oid,
		move.Interval,
		uint32(move.Count),
		uint32(int32(move.Add)),
	})
	msg.UsesMoveSlot = true
	msg.MinClock = oldLastStepClock
	msg.ReqClock = oldLastStepClock
	if move.Count == 1 && firstClock-oldLastStepClock >= ClockDiffMax {
		msg.ReqClock = firstClock
	}
	return msg, nil
}

// flushAll drains the whole queue unconditionally, used when a direction
// change forces the current run to end early.
func (c *StepperCompressor) flushAll() ([]*Message, error) {
	var msgs []*Message
	for c.queue.Len() > 0 {
		move, consumed := wrapCompress(c.currentView())
		if consumed == 0 {
			break
		}
		msg, err := c.emitMove(move, consumed)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Reset clears all search and history state, the only recovery path after
// a transport or verification error (spec.md §7).
func (c *StepperCompressor) Reset() {
	c.queue = newStepQueue()
	c.pending = nil
	c.hist = history{}
	c.lastStepClock = 0
	c.lastIdealStepClock = 0
	c.lastInterval = 0
	c.lastPosition = 0
	c.haveDir = false
	if c.clockFreq != 0 {
		c.filter = newDirFilter(uint64(SDSFilterTime * c.clockFreq))
	}
}

// SetLastPosition forces the stepper's tracked position, e.g. after homing.
func (c *StepperCompressor) SetLastPosition(pos int64) {
	c.lastPosition = pos
}

// FindPastPosition reports the stepper's position at an already-flushed
// clock, by inverting the relevant history entry's arithmetic progression.
func (c *StepperCompressor) FindPastPosition(clock uint64) (int64, bool) {
	return findPastPosition(c.hist.entries, clock)
}

// ExtractOld drops history entries older than cutoff ticks, returning how
// many were removed.
func (c *StepperCompressor) ExtractOld(cutoff uint64) int {
	before := len(c.hist.entries)
	c.hist.freeHistoryBefore(cutoff)
	return before - len(c.hist.entries)
}
