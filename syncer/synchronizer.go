// Package syncer merges the compressed output of several independent
// steppers onto one MCU move-queue, ordering move-slot-consuming messages
// by earliest-available slot time before handing the batch to a transport.
package syncer

import (
	"fmt"

	"github.com/gopper-project/stepcompress-host/stepcompress"
)

// Synchronizer is the multi-stepper move-queue synchronizer (C7). It tracks
// a fixed number of MCU move-queue slots as a small array-based min-heap
// (not container/heap: the only operation needed is a single heap-replace
// per message, which a hand-rolled sift-down expresses more directly than
// wrapping the generic container/heap interface would).
//
// Not safe for concurrent use without external synchronization.
type Synchronizer struct {
	steppers  []*stepcompress.StepperCompressor
	transport stepcompress.Transport
	sender    stepcompress.BatchSender
	log       stepcompress.Logger

	slots []uint64 // release time of each move-queue slot, heap-ordered
}

// NewSynchronizer builds a Synchronizer over steppers, modelling an MCU
// move-queue with moveQueueDepth slots.
func NewSynchronizer(steppers []*stepcompress.StepperCompressor, moveQueueDepth int, transport stepcompress.Transport, sender stepcompress.BatchSender, log stepcompress.Logger) *Synchronizer {
	return &Synchronizer{
		steppers:  steppers,
		transport: transport,
		sender:    sender,
		log:       log,
		slots:     make([]uint64, moveQueueDepth),
	}
}

// SetTime propagates the stepper clock frequency to every managed stepper.
func (s *Synchronizer) SetTime(clockFreq float64) {
	for _, st := range s.steppers {
		st.SetTime(clockFreq)
	}
}

// Flush drains every stepper's compressed queue up to moveClock, then
// repeatedly picks the smallest-req_clock eligible head message across all
// steppers' FIFOs (spec.md §4.7 step 2) so the batch handed to the
// transport is in non-decreasing req_clock order across steppers, not just
// within one. Ties keep enumeration order since only a strictly smaller
// req_clock displaces the running pick.
func (s *Synchronizer) Flush(moveClock uint64) error {
	pending := make([][]*stepcompress.Message, len(s.steppers))
	for i, st := range s.steppers {
		msgs, err := st.Flush(moveClock)
		if err != nil {
			return fmt.Errorf("syncer: stepper %d flush: %w", i, err)
		}
		pending[i] = msgs
	}

	batch := s.mergeAndAssign(pending, moveClock)

	if s.log != nil {
		s.log("syncer: sending batch of %d messages", len(batch))
	}
	if err := s.sender.SendBatch(batch); err != nil {
		return fmt.Errorf("syncer: send batch: %w", err)
	}
	return nil
}

// mergeAndAssign drains pending (one FIFO per stepper, mutated in place) by
// repeatedly taking the smallest-req_clock eligible head across all of them,
// assigning it a move-queue slot, and appending it to the batch, until no
// stepper has an eligible head left.
func (s *Synchronizer) mergeAndAssign(pending [][]*stepcompress.Message, moveClock uint64) []*stepcompress.Message {
	var batch []*stepcompress.Message
	for {
		pick := -1
		for i, msgs := range pending {
			if len(msgs) == 0 {
				continue
			}
			head := msgs[0]
			if head.UsesMoveSlot && head.ReqClock > moveClock {
				continue
			}
			if pick == -1 || head.ReqClock < pending[pick][0].ReqClock {
				pick = i
			}
		}
		if pick == -1 {
			break
		}
		m := pending[pick][0]
		pending[pick] = pending[pick][1:]
		s.assignSlot(m)
		batch = append(batch, m)
	}
	return batch
}

// assignSlot gives m its post-synchronization min_clock (spec.md §4.7 step
// 3). A message that does not consume a move-queue slot just reads the
// current root as its earliest transmit time. One that does performs a
// heap-replace: the message's own requested slot time becomes the new root,
// the prior root (the next slot actually free) is what gets transmitted.
func (s *Synchronizer) assignSlot(m *stepcompress.Message) {
	if len(s.slots) == 0 {
		m.MinClock = m.ReqClock
		return
	}
	if !m.UsesMoveSlot {
		m.MinClock = s.slots[0]
		return
	}
	oldRoot := s.slots[0]
	s.heapReplace(m.MinClock)
	m.MinClock = oldRoot
}

// heapReplace swaps the heap's root for newVal and restores the min-heap
// invariant by sifting down from the root.
func (s *Synchronizer) heapReplace(newVal uint64) {
	s.slots[0] = newVal
	s.siftDown(0)
}

func (s *Synchronizer) siftDown(i int) {
	n := len(s.slots)
	for {
		l, r := 2*i+1, 2*i+2
		smallest := i
		if l < n && s.slots[l] < s.slots[smallest] {
			smallest = l
		}
		if r < n && s.slots[r] < s.slots[smallest] {
			smallest = r
		}
		if smallest == i {
			return
		}
		s.slots[i], s.slots[smallest] = s.slots[smallest], s.slots[i]
		i = smallest
	}
}
