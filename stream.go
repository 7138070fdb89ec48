package screencap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Stream.
type State int

const (
	StateIdle     State = iota // created, or terminated after a clean stop
	StateStarting              // Start in progress
	StateRunning               // engine producing frames
	StateStopping              // Stop in progress
	StateFailed                // terminal failure
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// engineStopTimeout bounds resource release when the caller's context is
// already gone (async failure path).
const engineStopTimeout = 3 * time.Second

// Stream is a one-shot capture session: it owns the capture engine and the
// bounded delivery queue, and gates Start/Stop against configuration
// validity and authorization.
//
// Mutating operations are strictly serialized. The capture engine delivers
// frames from its own goroutine, decoupled from consumer pacing; the
// consumer pulls with ReadFrame.
//
// A Stream that has stopped or failed permanently rejects Start. Capture
// resources are released exactly once regardless of which path triggers
// shutdown: explicit Stop, a synchronous Start failure, or an asynchronous
// failure reported by the engine.
type Stream struct {
	id      string
	target  Target
	config  Config
	backend Backend
	sink    *frameSink

	mu         sync.Mutex
	state      State
	terminated bool
	engine     Engine
}

// StreamOption customizes stream construction.
type StreamOption func(*Stream)

// WithBackend pins the stream to a specific backend instead of the
// platform default.
func WithBackend(b Backend) StreamOption {
	return func(s *Stream) { s.backend = b }
}

// NewStream creates a capture stream for the given target. The
// configuration is validated in Start, not here.
func NewStream(target Target, config Config, opts ...StreamOption) *Stream {
	s := &Stream{
		id:     uuid.NewString(),
		target: target,
		config: config,
		sink:   newFrameSink(config.Depth, config.Policy),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = DefaultBackend()
	}
	return s
}

// ID returns the stream's unique identifier.
func (s *Stream) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the stream configuration.
func (s *Stream) Config() Config { return s.config }

// ReadFrame returns the next captured frame, suspending until one is
// available or the stream terminates. A clean stop ends the sequence with
// io.EOF; a failure ends it with the stream's terminal *Error, delivered
// exactly once per read thereafter.
//
// Cancelling ctx abandons only this read. It does not stop capture; call
// Stop for that.
func (s *Stream) ReadFrame(ctx context.Context) (*Frame, error) {
	return s.sink.next(ctx)
}

// Start validates the configuration, checks authorization, resolves the
// target and spins up the capture engine. It is valid exactly once, from
// StateIdle.
//
// Any failure is terminal: the stream moves to StateFailed, capture
// resources are released, and the frame sequence ends with the same error
// returned here.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return invalidConfigf("stream is terminated and cannot be restarted")
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return invalidConfigf("stream already started (state %v)", s.state)
	}
	if err := s.config.validate(); err != nil {
		s.state = StateFailed
		s.terminated = true
		s.sink.finish(err)
		s.mu.Unlock()
		return err
	}
	if s.backend == nil {
		err := captureFailed("no capture backend registered", nil)
		s.state = StateFailed
		s.terminated = true
		s.sink.finish(err)
		s.mu.Unlock()
		return err
	}
	s.state = StateStarting
	s.mu.Unlock()

	// Authorization, resolution and engine spin-up run outside the lock so
	// a concurrent Stop can abort a slow start.
	status, err := s.backend.AuthStatus(ctx)
	if err != nil {
		return s.failStart(nil, notAuthorized("authorization query failed", err))
	}
	if status != AuthAuthorized {
		return s.failStart(nil, notAuthorized("screen recording permission is "+status.String(), nil))
	}

	resolved, err := resolveTarget(ctx, s.backend, s.target, s.config)
	if err != nil {
		return s.failStart(nil, asError(err))
	}

	engine, err := s.backend.NewEngine(EngineConfig{
		Filter:           resolved.filter,
		Width:            resolved.width,
		Height:           resolved.height,
		MinFrameInterval: s.config.minFrameInterval(),
		QueueDepth:       s.config.Depth,
		ShowsCursor:      s.config.ShowsCursor,
		ScalesToFit:      s.config.ScalesToFit,
		PixelFormat:      PixelFormatBGRA32,
		SourceRect:       resolved.sourceRect,
	}, &engineOutput{stream: s, contentRect: resolved.contentRect})
	if err != nil {
		return s.failStart(nil, captureFailed("engine configuration failed", err))
	}

	if err := engine.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return s.failStart(engine, &Error{Code: ErrCodeCancelled, Detail: "start cancelled", Err: err})
		}
		return s.failStart(engine, captureFailed("engine start failed", err))
	}

	s.mu.Lock()
	if s.terminated || s.state != StateStarting {
		// Stop raced in and already terminated the sequence; unwind the
		// engine we just started.
		s.mu.Unlock()
		releaseEngine(engine)
		return cancelled("start aborted by stop")
	}
	s.engine = engine
	s.state = StateRunning
	s.mu.Unlock()
	return nil
}

// Stop shuts the stream down: it detaches and stops the capture engine,
// tolerating either already being inactive, and ends the frame sequence
// cleanly. Valid from StateRunning or StateStarting; a no-op otherwise.
//
// Stopping a stream that is still starting aborts the start: the sequence
// ends cleanly with no frames and the pending Start returns Cancelled.
func (s *Stream) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		s.state = StateStopping
		engine := s.engine
		s.engine = nil
		var err error
		if engine != nil {
			err = engine.Stop(ctx)
		}
		s.sink.finish(nil)
		s.terminated = true
		s.state = StateIdle
		return err

	case StateStarting:
		s.state = StateStopping
		s.sink.finish(nil)
		s.terminated = true
		s.state = StateIdle
		return nil

	default:
		return nil
	}
}

// failStart handles a failure on the Start path. engine is the engine to
// unwind, nil if none was created yet.
func (s *Stream) failStart(engine Engine, cerr *Error) error {
	s.mu.Lock()
	if s.terminated {
		// Stop already tore the instance down while Start was in flight.
		s.mu.Unlock()
		if engine != nil {
			releaseEngine(engine)
		}
		return cancelled("start aborted by stop")
	}
	s.state = StateFailed
	if engine != nil {
		releaseEngine(engine)
	}
	s.sink.finish(cerr)
	s.terminated = true
	s.mu.Unlock()
	return cerr
}

// fail handles an asynchronous post-start failure reported by the engine.
// It follows the same path as a start-time failure: release resources,
// terminate the sequence with the error, mark the instance terminated.
func (s *Stream) fail(cerr *Error) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	engine := s.engine
	s.engine = nil
	if engine != nil {
		releaseEngine(engine)
	}
	s.sink.finish(cerr)
	s.terminated = true
	s.mu.Unlock()
}

func releaseEngine(engine Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), engineStopTimeout)
	defer cancel()
	_ = engine.Stop(ctx)
}

// engineOutput adapts engine callbacks onto the stream's sink. It runs on
// the engine's goroutine.
type engineOutput struct {
	stream      *Stream
	contentRect Rect // resolved content rect, used when the engine reports none
}

func (o *engineOutput) HandleFrame(img *ImageBuffer, pts int64, status FrameStatus, contentRect *Rect) {
	if status != FrameComplete {
		return
	}

	// Sequence numbers are assigned in production order, before the drop
	// policy gets a say.
	seq := o.stream.sink.nextSeq()

	data, err := ToBGRA(img)
	if err != nil {
		go o.stream.fail(captureFailed("pixel normalization failed", err))
		return
	}

	rect := o.contentRect
	if contentRect != nil {
		rect = *contentRect
	}

	o.stream.sink.push(&Frame{
		Data:        data,
		Width:       img.Width,
		Height:      img.Height,
		ContentRect: rect,
		Timestamp:   pts,
		Seq:         seq,
	})
}

func (o *engineOutput) HandleError(err error) {
	// Dispatch on a fresh goroutine so an engine tearing down under the
	// stream lock cannot deadlock against its own callback.
	go o.stream.fail(captureFailed("capture engine failed", err))
}
