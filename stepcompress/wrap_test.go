package stepcompress

import "testing"

func TestWrapCompressConstantVelocity(t *testing.T) {
	qr := buildDecelerationQueue(1000, 0, 10, 20)
	move, consumed := wrapCompress(qr)
	if consumed != 10 {
		t.Fatalf("consumed = %d, want 10", consumed)
	}
	if move.Interval != 1000 || move.Count != 10 || move.Add != 0 {
		t.Fatalf("move = %+v, want {Interval:1000 Count:10 Add:0}", move)
	}
}

func TestWrapCompressLinearDeceleration(t *testing.T) {
	qr := buildDecelerationQueue(1100, -100, 5, 5)
	move, consumed := wrapCompress(qr)
	if consumed != 5 {
		t.Fatalf("consumed = %d, want 5", consumed)
	}
	if move.Interval != 1000 || move.Count != 5 || move.Add != -100 {
		t.Fatalf("move = %+v, want {Interval:1000 Count:5 Add:-100}", move)
	}
}

func TestWrapCompressDegenerateFarStep(t *testing.T) {
	q := newStepQueue()
	q.Push(100000)
	qr := q.View(q.Len(), 0, 0, 0, 0)

	am := compressLeastSquares(qr)
	if !am.Degenerate {
		t.Fatalf("compressLeastSquares = %+v, want a degenerate single-step fallback", am)
	}

	move, consumed := wrapCompress(qr)
	if consumed != 1 {
		t.Fatalf("consumed = %d, want 1", consumed)
	}
	if move.Interval != 100000 || move.Count != 1 || move.Add != 0 {
		t.Fatalf("move = %+v, want {Interval:100000 Count:1 Add:0}", move)
	}
}

func TestWrapCompressEmptyQueueYieldsNothing(t *testing.T) {
	q := newStepQueue()
	qr := q.View(0, 0, 0, 0, 0)
	move, consumed := wrapCompress(qr)
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0", consumed)
	}
	if move != (StepMove{}) {
		t.Fatalf("move = %+v, want zero value", move)
	}
}
