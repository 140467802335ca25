package stepcompress

// FilterStep is one step pulse that survived the direction filter, tagged
// with the direction it should be emitted in.
type FilterStep struct {
	Clock uint64
	Dir   bool
}

// dirFilter implements the step-dir-step (SDS) debounce (spec.md §4.4).
// Every step is held back by one cycle: push never emits the step it was
// just given, only (at most) the step held from the previous call. A
// direction reversal that flips back within SDSFilterTime cancels the held
// step outright, so the pathological step+dir+step burst never reaches the
// queue at all. Commit later calls flush to force the last held step
// through once no further rollback is possible.
type dirFilter struct {
	havePending  bool
	pendingClock uint64
	nextDir      bool
	window       uint64
}

func newDirFilter(windowTicks uint64) *dirFilter {
	return &dirFilter{window: windowTicks}
}

// push feeds one step pulse through the filter. It returns the previously
// held pulse if this call flushes it ahead of storing the new one, or nil if
// the pulse was absorbed: either newly held with nothing to flush yet, or
// cancelled along with the step it reverses.
func (f *dirFilter) push(clock uint64, dir bool) *FilterStep {
	if f.havePending && dir != f.nextDir && clock-f.pendingClock < f.window {
		f.havePending = false
		f.nextDir = dir
		return nil
	}

	var out *FilterStep
	if f.havePending {
		out = &FilterStep{Clock: f.pendingClock, Dir: f.nextDir}
	}
	f.pendingClock = clock
	f.nextDir = dir
	f.havePending = true
	return out
}

// flush forces any still-held pulse into the queue, for use at Commit time
// when no further rollback is permitted.
func (f *dirFilter) flush() *FilterStep {
	if !f.havePending {
		return nil
	}
	out := &FilterStep{Clock: f.pendingClock, Dir: f.nextDir}
	f.havePending = false
	return out
}
