package syncer

import (
	"testing"

	"github.com/gopper-project/stepcompress-host/stepcompress"
)

// fakeTransport hands out messages with caller-chosen scheduling metadata so
// tests can drive assignSlot without a real MCU dictionary.
type fakeTransport struct {
	minClock     uint64
	reqClock     uint64
	usesMoveSlot bool
}

func (f *fakeTransport) AllocAndEncode(data []uint32) *stepcompress.Message {
	return &stepcompress.Message{
		Data:         data,
		MinClock:     f.minClock,
		ReqClock:     f.reqClock,
		UsesMoveSlot: f.usesMoveSlot,
	}
}

// fakeSender records every batch it is handed, in order.
type fakeSender struct {
	batches [][]*stepcompress.Message
}

func (f *fakeSender) SendBatch(msgs []*stepcompress.Message) error {
	f.batches = append(f.batches, msgs)
	return nil
}

func testConfig(oid uint32) stepcompress.Config {
	return stepcompress.Config{MaxError: 20, QueueStepMsgTag: 5, SetNextStepDirMsgTag: 6, OID: oid}
}

func TestSynchronizerFlushDrainsEveryStepperIntoOneBatch(t *testing.T) {
	transport := &fakeTransport{usesMoveSlot: true}
	a := stepcompress.NewStepperCompressor(0, testConfig(0), transport, nil)
	b := stepcompress.NewStepperCompressor(1, testConfig(1), transport, nil)
	a.SetTime(1e6)
	b.SetTime(1e6)

	clock := uint64(0)
	for i := 0; i < 5; i++ {
		clock += 1000
		if err := a.Append(clock, true); err != nil {
			t.Fatalf("a.Append(%d): %v", i, err)
		}
		if err := b.Append(clock, true); err != nil {
			t.Fatalf("b.Append(%d): %v", i, err)
		}
	}
	if _, err := a.Commit(); err != nil {
		t.Fatalf("a.Commit: %v", err)
	}
	if _, err := b.Commit(); err != nil {
		t.Fatalf("b.Commit: %v", err)
	}

	sender := &fakeSender{}
	sync := NewSynchronizer([]*stepcompress.StepperCompressor{a, b}, 3, transport, sender, nil)

	// Commit already emitted (and this test discarded) each stepper's
	// set_next_step_dir message, so every message Flush produces here is a
	// queue_step payload; drain with repeated Flush calls the same way the
	// compressor's own round-trip test does, since a cold cursor (no prior
	// move establishing lastInterval) is not guaranteed to compress the
	// whole run in a single call.
	for i := 0; i < 20; i++ {
		if err := sync.Flush(clock); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}
	if len(sender.batches) == 0 {
		t.Fatalf("sender received no batches")
	}

	var total int
	for _, batch := range sender.batches {
		for _, m := range batch {
			if len(m.Data) != 5 {
				t.Fatalf("message = %v, want a 5-field queue_step payload", m.Data)
			}
			total++
		}
	}
	if total == 0 {
		t.Fatalf("no messages were ever sent")
	}
}

func TestSynchronizerFlushFromColdCursorLeavesSlotsAtZero(t *testing.T) {
	transport := &fakeTransport{usesMoveSlot: false}
	a := stepcompress.NewStepperCompressor(0, testConfig(0), transport, nil)
	a.SetTime(1e6)
	if err := a.Append(1000, true); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	sender := &fakeSender{}
	sync := NewSynchronizer([]*stepcompress.StepperCompressor{a}, 3, transport, sender, nil)
	if err := sync.Flush(1000); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// emitMove marks every queue_step as UsesMoveSlot regardless of the
	// transport, so the one queue_step here does heap-replace; its MinClock
	// is the cold cursor's previous lastStepClock (0), so every slot stays 0.
	for i, s := range sync.slots {
		if s != 0 {
			t.Fatalf("slots[%d] = %d, want 0 (untouched)", i, s)
		}
	}
}

func TestAssignSlotNonMoveSlotMessageJustReadsCurrentRoot(t *testing.T) {
	s := &Synchronizer{slots: []uint64{100, 200, 300}}

	m := &stepcompress.Message{ReqClock: 50, UsesMoveSlot: false}
	s.assignSlot(m)

	if m.MinClock != 100 {
		t.Fatalf("MinClock = %d, want 100 (the current root, unmoved)", m.MinClock)
	}
	if s.slots[0] != 100 || s.slots[1] != 200 || s.slots[2] != 300 {
		t.Fatalf("slots = %v, want unchanged (non-slot messages do not heap-replace)", s.slots)
	}
}

func TestAssignSlotMoveSlotMessageReplacesRootWithItsOwnSlotTime(t *testing.T) {
	s := &Synchronizer{slots: []uint64{100, 200, 300}}

	m := &stepcompress.Message{MinClock: 150, ReqClock: 500, UsesMoveSlot: true}
	s.assignSlot(m)

	if m.MinClock != 100 {
		t.Fatalf("MinClock = %d, want 100 (the pre-replace root, transmitted as the earliest time the slot frees up)", m.MinClock)
	}
	if s.slots[0] != 150 {
		t.Fatalf("slots[0] after replace = %d, want 150 (the message's own requested slot time)", s.slots[0])
	}
}

func TestAssignSlotWithNoSlotsFallsBackToReqClock(t *testing.T) {
	s := &Synchronizer{slots: nil}
	m := &stepcompress.Message{MinClock: 5, ReqClock: 999, UsesMoveSlot: true}
	s.assignSlot(m)
	if m.MinClock != 999 {
		t.Fatalf("MinClock = %d, want 999 (ReqClock, when there are no move-queue slots to floor against)", m.MinClock)
	}
}

// TestMergeAndAssignOrdersAcrossSteppersByReqClock mirrors the two-stepper
// ordering scenario: stepper A's message has no move slot and the smaller
// req_clock, stepper B's does use a slot with its own min_clock distinct
// from req_clock. The merge must deliver A before B, and B's transmitted
// min_clock must be the root observed just before its own heap-replace (here
// 0), regardless of what B's replace then writes into the heap.
func TestMergeAndAssignOrdersAcrossSteppersByReqClock(t *testing.T) {
	s := &Synchronizer{slots: []uint64{0, 0}}

	a := &stepcompress.Message{ReqClock: 100, UsesMoveSlot: false}
	b := &stepcompress.Message{ReqClock: 150, MinClock: 120, UsesMoveSlot: true}

	batch := s.mergeAndAssign([][]*stepcompress.Message{{a}, {b}}, 1000)

	if len(batch) != 2 || batch[0] != a || batch[1] != b {
		t.Fatalf("batch = %v, want [a, b] in that order", batch)
	}
	if a.MinClock != 0 {
		t.Fatalf("a.MinClock = %d, want 0 (root, untouched by a non-slot message)", a.MinClock)
	}
	if b.MinClock != 0 {
		t.Fatalf("b.MinClock = %d, want 0 (the root observed right before b's heap-replace)", b.MinClock)
	}
	// b's heap-replace writes its own requested slot time (120) into the
	// root, then the sift-down moves it below the other slot (0), which
	// neither message touched, so the smallest value stays at the root.
	if s.slots[0] != 0 || s.slots[1] != 120 {
		t.Fatalf("slots = %v, want [0, 120]", s.slots)
	}
}

func TestSiftDownRestoresMinHeapInvariant(t *testing.T) {
	// Everything but the root is already a valid min-heap, matching siftDown's
	// actual precondition (only the root changes between calls).
	s := &Synchronizer{slots: []uint64{1000, 10, 20, 50, 60, 70, 80}}
	s.siftDown(0)

	for i := range s.slots {
		l, r := 2*i+1, 2*i+2
		if l < len(s.slots) && s.slots[i] > s.slots[l] {
			t.Fatalf("heap invariant broken: slots[%d]=%d > slots[%d]=%d", i, s.slots[i], l, s.slots[l])
		}
		if r < len(s.slots) && s.slots[i] > s.slots[r] {
			t.Fatalf("heap invariant broken: slots[%d]=%d > slots[%d]=%d", i, s.slots[i], r, s.slots[r])
		}
	}
}

func TestHeapReplaceKeepsRootAsMinimum(t *testing.T) {
	s := &Synchronizer{slots: []uint64{1, 5, 9, 6, 8}}
	s.heapReplace(100)

	min := s.slots[0]
	for _, v := range s.slots {
		if v < min {
			t.Fatalf("slots = %v, root %d is not the minimum", s.slots, min)
		}
	}
}
