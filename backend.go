package screencap

import (
	"context"
	"sync"
	"time"
)

// AuthStatus is the screen-recording authorization state reported by the
// operating system.
type AuthStatus int

const (
	AuthNotDetermined AuthStatus = iota // user has not been asked yet
	AuthDenied                          // user declined or policy forbids
	AuthAuthorized                      // capture is permitted
)

func (s AuthStatus) String() string {
	switch s {
	case AuthNotDetermined:
		return "not determined"
	case AuthDenied:
		return "denied"
	case AuthAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Catalog enumerates capturable sources. Queries are read-only and carry no
// lifecycle state.
type Catalog interface {
	// Displays returns the currently attached displays.
	Displays(ctx context.Context) ([]Display, error)

	// Windows returns the currently known windows.
	Windows(ctx context.Context) ([]Window, error)
}

// Authorizer answers screen-recording authorization queries. Queries are
// stateless and independent of any stream's lifecycle.
type Authorizer interface {
	// AuthStatus returns the current authorization status without
	// prompting.
	AuthStatus(ctx context.Context) (AuthStatus, error)

	// RequestAuth asks the OS for authorization, prompting the user if the
	// status is not yet determined, and returns the resulting status.
	RequestAuth(ctx context.Context) (AuthStatus, error)
}

// Filter identifies the concrete capture target handed to an engine.
// Exactly one of Display or Window is set.
type Filter struct {
	Display DisplayID
	Window  WindowID
}

// FrameStatus classifies a frame delivered by an engine. Only complete
// frames are forwarded to the consumer.
type FrameStatus int

const (
	FrameComplete FrameStatus = iota // new content, deliver
	FrameIdle                        // no screen change since last frame
	FrameBlank                       // source produced no content
	FrameSuspended                   // capture temporarily suspended by the OS
)

// EngineSink receives the engine's asynchronous output. Implementations
// must not block: HandleFrame does O(1) bookkeeping and HandleError
// dispatches without waiting, so an engine goroutine is never stalled.
type EngineSink interface {
	// HandleFrame is invoked once per captured frame from the engine's own
	// goroutine. contentRect is nil when the engine does not report one.
	HandleFrame(img *ImageBuffer, pts int64, status FrameStatus, contentRect *Rect)

	// HandleError reports a terminal engine failure. The engine stops
	// producing frames after calling it.
	HandleError(err error)
}

// EngineConfig is the full parameter set handed to a capture engine.
type EngineConfig struct {
	Filter           Filter
	Width            int           // output width in pixels
	Height           int           // output height in pixels
	MinFrameInterval time.Duration // pacing; engine never exceeds this rate
	QueueDepth       int           // engine-side buffer depth hint
	ShowsCursor      bool
	ScalesToFit      bool
	PixelFormat      PixelFormat // requested delivery format
	SourceRect       *Rect       // sub-rectangle to capture; nil for full output
}

// Engine is one configured capture session of the underlying OS capture
// subsystem. It produces frames into its EngineSink from its own goroutine.
//
// Stop must tolerate the engine already being inactive and must not block
// waiting for in-flight sink callbacks to return.
type Engine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Backend bundles the three capture collaborators for one platform:
// source enumeration, authorization, and engine construction.
type Backend interface {
	Catalog
	Authorizer

	// Name identifies the backend ("sck", "x11", "pattern").
	Name() string

	// NewEngine creates a capture engine for the given configuration. The
	// engine is not started.
	NewEngine(cfg EngineConfig, sink EngineSink) (Engine, error)
}

// backendRegistry holds registered backends in priority order.
type backendRegistry struct {
	backends  []Backend
	fallbacks []Backend
	mu        sync.RWMutex
}

var globalBackendRegistry = &backendRegistry{}

// RegisterBackend registers a platform backend. The most recently
// registered backend wins DefaultBackend.
func RegisterBackend(b Backend) {
	globalBackendRegistry.mu.Lock()
	defer globalBackendRegistry.mu.Unlock()
	globalBackendRegistry.backends = append([]Backend{b}, globalBackendRegistry.backends...)
}

// registerFallbackBackend registers a backend used only when no platform
// backend is available.
func registerFallbackBackend(b Backend) {
	globalBackendRegistry.mu.Lock()
	defer globalBackendRegistry.mu.Unlock()
	globalBackendRegistry.fallbacks = append(globalBackendRegistry.fallbacks, b)
}

// DefaultBackend returns the preferred backend for this platform, or nil if
// none is registered.
func DefaultBackend() Backend {
	globalBackendRegistry.mu.RLock()
	defer globalBackendRegistry.mu.RUnlock()
	if len(globalBackendRegistry.backends) > 0 {
		return globalBackendRegistry.backends[0]
	}
	if len(globalBackendRegistry.fallbacks) > 0 {
		return globalBackendRegistry.fallbacks[0]
	}
	return nil
}

// Backends returns all registered backends, platform backends first.
func Backends() []Backend {
	globalBackendRegistry.mu.RLock()
	defer globalBackendRegistry.mu.RUnlock()
	out := make([]Backend, 0, len(globalBackendRegistry.backends)+len(globalBackendRegistry.fallbacks))
	out = append(out, globalBackendRegistry.backends...)
	out = append(out, globalBackendRegistry.fallbacks...)
	return out
}

// Displays enumerates displays via the default backend.
func Displays(ctx context.Context) ([]Display, error) {
	b := DefaultBackend()
	if b == nil {
		return nil, captureFailed("no capture backend registered", nil)
	}
	return b.Displays(ctx)
}

// Windows enumerates windows via the default backend.
func Windows(ctx context.Context) ([]Window, error) {
	b := DefaultBackend()
	if b == nil {
		return nil, captureFailed("no capture backend registered", nil)
	}
	return b.Windows(ctx)
}

// AuthorizationStatus queries the current screen-recording authorization
// without prompting.
func AuthorizationStatus(ctx context.Context) (AuthStatus, error) {
	b := DefaultBackend()
	if b == nil {
		return AuthNotDetermined, captureFailed("no capture backend registered", nil)
	}
	return b.AuthStatus(ctx)
}

// RequestAuthorization asks the OS for screen-recording authorization,
// prompting the user when the status is not yet determined.
func RequestAuthorization(ctx context.Context) (AuthStatus, error) {
	b := DefaultBackend()
	if b == nil {
		return AuthNotDetermined, captureFailed("no capture backend registered", nil)
	}
	return b.RequestAuth(ctx)
}
