package screencap

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func testFrame(seq uint64) *Frame {
	return &Frame{
		Data:   make([]byte, BGRASize(2, 2)),
		Width:  2,
		Height: 2,
		Seq:    seq,
	}
}

func mustNext(t *testing.T, s *frameSink) *Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := s.next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	return f
}

func TestFrameSinkFIFOOrder(t *testing.T) {
	s := newFrameSink(4, DropOldest)
	for i := uint64(0); i < 3; i++ {
		s.push(testFrame(s.nextSeq()))
	}
	for want := uint64(0); want < 3; want++ {
		if got := mustNext(t, s).Seq; got != want {
			t.Fatalf("seq = %d, want %d", got, want)
		}
	}
}

func TestFrameSinkDropOldest(t *testing.T) {
	// Depth 2, a burst of 4 frames with no reads in between: the two most
	// recent survive, in order.
	s := newFrameSink(2, DropOldest)
	for i := 0; i < 4; i++ {
		s.push(testFrame(s.nextSeq()))
	}
	if got := s.buffered(); got != 2 {
		t.Fatalf("buffered = %d, want 2", got)
	}
	if got := mustNext(t, s).Seq; got != 2 {
		t.Fatalf("first seq = %d, want 2", got)
	}
	if got := mustNext(t, s).Seq; got != 3 {
		t.Fatalf("second seq = %d, want 3", got)
	}
}

func TestFrameSinkDropNewest(t *testing.T) {
	// Same burst with the opposite policy: the earliest frames survive and
	// arrivals at capacity are discarded.
	s := newFrameSink(2, DropNewest)
	for i := 0; i < 4; i++ {
		s.push(testFrame(s.nextSeq()))
	}
	if got := mustNext(t, s).Seq; got != 0 {
		t.Fatalf("first seq = %d, want 0", got)
	}
	if got := mustNext(t, s).Seq; got != 1 {
		t.Fatalf("second seq = %d, want 1", got)
	}
	if got := s.buffered(); got != 0 {
		t.Fatalf("buffered = %d, want 0", got)
	}
}

func TestFrameSinkDrainBetweenBursts(t *testing.T) {
	// With reads keeping pace, every frame is delivered even at depth 2.
	s := newFrameSink(2, DropOldest)
	var got []uint64
	for i := 0; i < 4; i++ {
		s.push(testFrame(s.nextSeq()))
		got = append(got, mustNext(t, s).Seq)
	}
	for i, seq := range got {
		if seq != uint64(i) {
			t.Fatalf("delivered seqs = %v, want 0..3", got)
		}
	}
}

func TestFrameSinkSeqGapSignalsDrop(t *testing.T) {
	// Sequence numbers are assigned in production order, so a dropped
	// frame leaves a gap the consumer can detect.
	s := newFrameSink(1, DropNewest)
	s.push(testFrame(s.nextSeq())) // seq 0, buffered
	s.push(testFrame(s.nextSeq())) // seq 1, dropped at capacity

	if got := mustNext(t, s).Seq; got != 0 {
		t.Fatalf("seq = %d, want 0", got)
	}
	s.push(testFrame(s.nextSeq())) // seq 2
	if got := mustNext(t, s).Seq; got != 2 {
		t.Fatalf("seq after drop = %d, want 2", got)
	}
}

func TestFrameSinkDepthClamped(t *testing.T) {
	for _, tt := range []struct {
		depth int
		want  int
	}{
		{0, MinQueueDepth},
		{-3, MinQueueDepth},
		{5, 5},
		{20, MaxQueueDepth},
	} {
		if got := newFrameSink(tt.depth, DropOldest).depth; got != tt.want {
			t.Errorf("depth(%d) = %d, want %d", tt.depth, got, tt.want)
		}
	}
}

func TestFrameSinkCleanFinish(t *testing.T) {
	s := newFrameSink(4, DropOldest)
	s.push(testFrame(s.nextSeq()))
	s.finish(nil)

	// Buffered frames do not outlive termination.
	ctx := context.Background()
	if _, err := s.next(ctx); err != io.EOF {
		t.Fatalf("next after clean finish = %v, want io.EOF", err)
	}
	if _, err := s.next(ctx); err != io.EOF {
		t.Fatalf("second next = %v, want io.EOF", err)
	}
}

func TestFrameSinkFailedFinish(t *testing.T) {
	s := newFrameSink(4, DropOldest)
	terminal := captureFailed("engine died", nil)
	s.finish(terminal)

	if _, err := s.next(context.Background()); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("next after failure = %v, want capture failed", err)
	}
}

func TestFrameSinkPushAfterFinish(t *testing.T) {
	s := newFrameSink(4, DropOldest)
	s.finish(nil)
	s.push(testFrame(0)) // must be a no-op
	if got := s.buffered(); got != 0 {
		t.Fatalf("buffered = %d, want 0", got)
	}
	s.finish(captureFailed("late", nil)) // idempotent, keeps the clean end
	if _, err := s.next(context.Background()); err != io.EOF {
		t.Fatalf("next = %v, want io.EOF", err)
	}
}

func TestFrameSinkNextBlocksUntilPush(t *testing.T) {
	s := newFrameSink(4, DropOldest)

	got := make(chan *Frame, 1)
	go func() {
		f, err := s.next(context.Background())
		if err != nil {
			t.Errorf("next: %v", err)
		}
		got <- f
	}()

	time.Sleep(20 * time.Millisecond)
	s.push(testFrame(s.nextSeq()))

	select {
	case f := <-got:
		if f.Seq != 0 {
			t.Fatalf("seq = %d, want 0", f.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("next did not wake after push")
	}
}

func TestFrameSinkNextContextCancel(t *testing.T) {
	s := newFrameSink(4, DropOldest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("next = %v, want context.Canceled", err)
	}

	// The cancelled read left producer state untouched.
	s.push(testFrame(s.nextSeq()))
	if got := mustNext(t, s).Seq; got != 0 {
		t.Fatalf("seq = %d, want 0", got)
	}
}
