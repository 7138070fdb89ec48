package screencap

import (
	"context"
	"io"
	"testing"
	"time"
)

// End-to-end capture through the synthetic backend: real engine goroutine,
// real pacing, real normalization.
func TestPatternBackendCapture(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FPS = 60
	cfg.OutputWidth = 64
	cfg.OutputHeight = 48

	s := NewStream(DisplayTarget(patternDisplayID), cfg, WithBackend(NewPatternBackend()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var lastSeq uint64
	var lastTS int64 = -1
	for i := 0; i < 5; i++ {
		f, err := s.ReadFrame(ctx)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if f.Width != 64 || f.Height != 48 {
			t.Fatalf("frame size = %dx%d, want 64x48", f.Width, f.Height)
		}
		if len(f.Data) != BGRASize(64, 48) {
			t.Fatalf("frame bytes = %d, want %d", len(f.Data), BGRASize(64, 48))
		}
		if i > 0 && f.Seq <= lastSeq {
			t.Fatalf("seq %d not increasing after %d", f.Seq, lastSeq)
		}
		if f.Timestamp <= lastTS {
			t.Fatalf("timestamp %d not increasing after %d", f.Timestamp, lastTS)
		}
		lastSeq, lastTS = f.Seq, f.Timestamp
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := s.ReadFrame(ctx); err != io.EOF {
		t.Fatalf("ReadFrame after stop = %v, want io.EOF", err)
	}
}

func TestPatternBackendCatalog(t *testing.T) {
	b := NewPatternBackend()
	ctx := context.Background()

	displays, err := b.Displays(ctx)
	if err != nil || len(displays) != 1 {
		t.Fatalf("Displays = %v, %v", displays, err)
	}
	windows, err := b.Windows(ctx)
	if err != nil || len(windows) != 1 {
		t.Fatalf("Windows = %v, %v", windows, err)
	}

	status, err := b.AuthStatus(ctx)
	if err != nil || status != AuthAuthorized {
		t.Fatalf("AuthStatus = %v, %v", status, err)
	}
}

func TestPatternEngineStopIdempotent(t *testing.T) {
	b := NewPatternBackend()
	sink := &discardSink{}
	engine, err := b.NewEngine(EngineConfig{
		Width: 32, Height: 32, MinFrameInterval: time.Second / 60,
	}, sink)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := engine.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := engine.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

type discardSink struct{}

func (discardSink) HandleFrame(*ImageBuffer, int64, FrameStatus, *Rect) {}
func (discardSink) HandleError(error)                                   {}
