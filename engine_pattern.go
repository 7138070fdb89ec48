package screencap

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Synthetic capture backend. It emulates a single 1280x800 display plus
// one window and generates moving-box BGRA frames, so the full capture
// path can run on any machine without OS capture support. Registered as a
// fallback; tests and demos select it explicitly with WithBackend.

const (
	patternDisplayID     DisplayID = 1
	patternWindowID      WindowID  = 100
	patternDisplayWidth            = 1280
	patternDisplayHeight           = 800
)

// PatternBackend is the synthetic backend. Authorization is always
// granted.
type PatternBackend struct{}

// NewPatternBackend returns the synthetic pattern backend.
func NewPatternBackend() *PatternBackend { return &PatternBackend{} }

// Name implements Backend.
func (b *PatternBackend) Name() string { return "pattern" }

// Displays implements Catalog.
func (b *PatternBackend) Displays(ctx context.Context) ([]Display, error) {
	return []Display{{
		ID:     patternDisplayID,
		Width:  patternDisplayWidth,
		Height: patternDisplayHeight,
		Rect:   Rect{Width: patternDisplayWidth, Height: patternDisplayHeight},
	}}, nil
}

// Windows implements Catalog.
func (b *PatternBackend) Windows(ctx context.Context) ([]Window, error) {
	return []Window{{
		ID:        patternWindowID,
		Rect:      Rect{X: 200, Y: 150, Width: 640, Height: 480},
		Title:     "Pattern",
		OnScreen:  true,
		Active:    true,
		OwnerPID:  1,
		OwnerName: "screencap",
	}}, nil
}

// AuthStatus implements Authorizer.
func (b *PatternBackend) AuthStatus(ctx context.Context) (AuthStatus, error) {
	return AuthAuthorized, nil
}

// RequestAuth implements Authorizer.
func (b *PatternBackend) RequestAuth(ctx context.Context) (AuthStatus, error) {
	return AuthAuthorized, nil
}

// NewEngine implements Backend.
func (b *PatternBackend) NewEngine(cfg EngineConfig, sink EngineSink) (Engine, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("pattern engine: invalid output size %dx%d", cfg.Width, cfg.Height)
	}
	return &patternEngine{cfg: cfg, sink: sink}, nil
}

// patternEngine generates animated BGRA frames at the configured pacing
// from its own goroutine, standing in for an OS capture engine.
type patternEngine struct {
	cfg  EngineConfig
	sink EngineSink

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

func (e *patternEngine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pattern engine already running")
	}
	if err := ctx.Err(); err != nil {
		e.running.Store(false)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.doneCh = make(chan struct{})

	go e.generateLoop(runCtx)
	return nil
}

func (e *patternEngine) Stop(ctx context.Context) error {
	if !e.running.CompareAndSwap(true, false) {
		return nil // already inactive
	}
	e.cancel()
	select {
	case <-e.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *patternEngine) generateLoop(ctx context.Context) {
	defer close(e.doneCh)

	interval := e.cfg.MinFrameInterval
	if interval <= 0 {
		interval = time.Second / 30
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w, h := e.cfg.Width, e.cfg.Height
	buf := make([]byte, BGRASize(w, h))
	start := time.Now()
	var frameNum uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drawMovingBox(buf, w, h, frameNum, e.cfg.ShowsCursor)
			frameNum++

			e.sink.HandleFrame(&ImageBuffer{
				Data:   buf,
				Format: PixelFormatBGRA32,
				Width:  w,
				Height: h,
			}, time.Since(start).Nanoseconds(), FrameComplete, nil)
		}
	}
}

// drawMovingBox fills a BGRA buffer with a dark background and a white box
// orbiting the center. With cursor enabled a small marker trails the box.
func drawMovingBox(buf []byte, w, h int, frameNum uint64, cursor bool) {
	for i := 0; i < len(buf); i += 4 {
		buf[i+0] = 0x20 // B
		buf[i+1] = 0x18 // G
		buf[i+2] = 0x18 // R
		buf[i+3] = 0xff // A
	}

	boxSize := min(w, h) / 8
	radius := float64(min(w, h)) / 4
	angle := float64(frameNum) * 0.05
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	fillBGRARect(buf, w, h, boxX, boxY, boxSize, boxSize, 0xff, 0xff, 0xff)

	if cursor {
		cx := w/2 + int(radius*math.Cos(angle-0.3))
		cy := h/2 + int(radius*math.Sin(angle-0.3))
		fillBGRARect(buf, w, h, cx, cy, 6, 6, 0x00, 0x00, 0xff)
	}
}

func fillBGRARect(buf []byte, w, h, x0, y0, rw, rh int, b, g, r byte) {
	for y := y0; y < y0+rh && y < h; y++ {
		if y < 0 {
			continue
		}
		for x := x0; x < x0+rw && x < w; x++ {
			if x < 0 {
				continue
			}
			i := (y*w + x) * 4
			buf[i+0] = b
			buf[i+1] = g
			buf[i+2] = r
		}
	}
}

func init() {
	registerFallbackBackend(NewPatternBackend())
}
