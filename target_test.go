package screencap

import (
	"context"
	"errors"
	"testing"
)

func TestResolveTarget(t *testing.T) {
	backend := newFakeBackend()
	ctx := context.Background()
	cfg := DefaultConfig()

	t.Run("display", func(t *testing.T) {
		r, err := resolveTarget(ctx, backend, DisplayTarget(1), cfg)
		if err != nil {
			t.Fatalf("resolveTarget: %v", err)
		}
		if r.filter.Display != 1 || r.filter.Window != 0 {
			t.Fatalf("filter = %+v, want display 1", r.filter)
		}
		if r.width != 64 || r.height != 48 {
			t.Fatalf("output = %dx%d, want 64x48", r.width, r.height)
		}
		if r.sourceRect != nil {
			t.Fatalf("sourceRect = %v, want nil without crop", r.sourceRect)
		}
	})

	t.Run("window", func(t *testing.T) {
		r, err := resolveTarget(ctx, backend, WindowTarget(10), cfg)
		if err != nil {
			t.Fatalf("resolveTarget: %v", err)
		}
		if r.filter.Window != 10 {
			t.Fatalf("filter = %+v, want window 10", r.filter)
		}
		if r.contentRect != (Rect{X: 10, Y: 10, Width: 32, Height: 32}) {
			t.Fatalf("contentRect = %v, want window bounds", r.contentRect)
		}
	})

	t.Run("window takes precedence", func(t *testing.T) {
		r, err := resolveTarget(ctx, backend, Target{Display: 1, Window: 10}, cfg)
		if err != nil {
			t.Fatalf("resolveTarget: %v", err)
		}
		if r.filter.Window != 10 || r.filter.Display != 0 {
			t.Fatalf("filter = %+v, want window 10 only", r.filter)
		}
	})

	t.Run("unknown display", func(t *testing.T) {
		_, err := resolveTarget(ctx, backend, DisplayTarget(7), cfg)
		if !errors.Is(err, ErrSourceNotFound) {
			t.Fatalf("err = %v, want source not found", err)
		}
	})

	t.Run("unknown window", func(t *testing.T) {
		_, err := resolveTarget(ctx, backend, WindowTarget(7), cfg)
		if !errors.Is(err, ErrSourceNotFound) {
			t.Fatalf("err = %v, want source not found", err)
		}
	})

	t.Run("crop intersects bounds", func(t *testing.T) {
		target := DisplayTarget(1).Cropped(Rect{X: 32, Y: 24, Width: 100, Height: 100})
		r, err := resolveTarget(ctx, backend, target, cfg)
		if err != nil {
			t.Fatalf("resolveTarget: %v", err)
		}
		// The crop extends past the display and is clipped to it.
		if r.contentRect != (Rect{X: 32, Y: 24, Width: 32, Height: 24}) {
			t.Fatalf("contentRect = %v, want clipped crop", r.contentRect)
		}
		if r.sourceRect == nil || *r.sourceRect != r.contentRect {
			t.Fatalf("sourceRect = %v, want clipped crop", r.sourceRect)
		}
		if r.width != 32 || r.height != 24 {
			t.Fatalf("output = %dx%d, want 32x24", r.width, r.height)
		}
	})

	t.Run("disjoint crop", func(t *testing.T) {
		target := DisplayTarget(1).Cropped(Rect{X: 500, Y: 500, Width: 10, Height: 10})
		_, err := resolveTarget(ctx, backend, target, cfg)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("err = %v, want invalid configuration", err)
		}
	})

	t.Run("explicit output size wins", func(t *testing.T) {
		sized := cfg
		sized.OutputWidth = 320
		sized.OutputHeight = 240
		r, err := resolveTarget(ctx, backend, DisplayTarget(1), sized)
		if err != nil {
			t.Fatalf("resolveTarget: %v", err)
		}
		if r.width != 320 || r.height != 240 {
			t.Fatalf("output = %dx%d, want 320x240", r.width, r.height)
		}
	})

	t.Run("sub-pixel crop truncates to zero", func(t *testing.T) {
		target := DisplayTarget(1).Cropped(Rect{X: 0, Y: 0, Width: 0.5, Height: 0.5})
		_, err := resolveTarget(ctx, backend, target, cfg)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("err = %v, want invalid configuration", err)
		}
	})
}

func TestTargetString(t *testing.T) {
	for _, tt := range []struct {
		target Target
		want   string
	}{
		{DisplayTarget(1), "display 1"},
		{WindowTarget(42), "window 42"},
		{DisplayTarget(1).Cropped(Rect{X: 0, Y: 0, Width: 10, Height: 20}), "display 1 crop (0,0 10x20)"},
	} {
		if got := tt.target.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestConfigMinFrameInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FPS = 60
	if got := cfg.minFrameInterval().Milliseconds(); got != 16 {
		t.Fatalf("interval = %dms, want 16ms", got)
	}
}
