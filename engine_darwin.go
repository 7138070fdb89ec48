//go:build darwin && !noscreen

package screencap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Darwin backend: ScreenCaptureKit via the libscreencap_sck shim library,
// loaded with purego so the package builds with CGO_ENABLED=0. The shim
// wraps SCShareableContent (catalog), CGPreflight/CGRequestScreenCaptureAccess
// (authorization) and SCStream (engine) behind a flat C ABI.

// Shim authorization status values.
const (
	sckAuthNotDetermined = 0
	sckAuthDenied        = 1
	sckAuthAuthorized    = 2
)

// Shim frame status values, mirroring SCFrameStatus.
const (
	sckFrameComplete  = 0
	sckFrameIdle      = 1
	sckFrameBlank     = 2
	sckFrameSuspended = 3
)

var (
	sckOnce    sync.Once
	sckHandle  uintptr
	sckInitErr error
	sckLoaded  bool
)

// libscreencap_sck function pointers
var (
	sckAuthStatus     func() int32
	sckAuthRequest    func() int32
	sckRefreshContent func() int32
	sckDisplayCount   func() int32
	sckDisplayInfo    func(index int32, id, width, height uintptr, rect uintptr) int32
	sckWindowCount    func() int32
	sckWindowInfo     func(index int32, id uintptr, rect uintptr, layer, onScreen, active, ownerPID uintptr) int32
	sckWindowTitle    func(index int32) uintptr
	sckWindowOwner    func(index int32) uintptr
	sckFreeString     func(ptr uintptr)
	sckCaptureCreate  func(cfg uintptr, frameCB, errorCB, userData uintptr) uint64
	sckCaptureStart   func(handle uint64) int32
	sckCaptureStop    func(handle uint64) int32
	sckCaptureDestroy func(handle uint64)
	sckLastError      func() uintptr
)

func initSCK() {
	sckOnce.Do(func() {
		libName := "libscreencap_sck.dylib"
		searchPaths := []string{
			os.Getenv("SCREENCAP_LIB_PATH"),
		}
		if exe, err := os.Executable(); err == nil {
			searchPaths = append(searchPaths, filepath.Dir(exe))
		}
		searchPaths = append(searchPaths,
			"build",
			"../build",
			"/usr/local/lib",
		)

		var libPath string
		for _, p := range searchPaths {
			if p == "" {
				continue
			}
			candidate := filepath.Join(p, libName)
			if _, err := os.Stat(candidate); err == nil {
				libPath = candidate
				break
			}
		}

		if libPath == "" {
			sckInitErr = fmt.Errorf("%s not found", libName)
			return
		}

		var err error
		sckHandle, err = purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			sckInitErr = fmt.Errorf("failed to load %s: %w", libPath, err)
			return
		}

		purego.RegisterLibFunc(&sckAuthStatus, sckHandle, "screencap_sck_auth_status")
		purego.RegisterLibFunc(&sckAuthRequest, sckHandle, "screencap_sck_auth_request")
		purego.RegisterLibFunc(&sckRefreshContent, sckHandle, "screencap_sck_refresh_content")
		purego.RegisterLibFunc(&sckDisplayCount, sckHandle, "screencap_sck_display_count")
		purego.RegisterLibFunc(&sckDisplayInfo, sckHandle, "screencap_sck_display_info")
		purego.RegisterLibFunc(&sckWindowCount, sckHandle, "screencap_sck_window_count")
		purego.RegisterLibFunc(&sckWindowInfo, sckHandle, "screencap_sck_window_info")
		purego.RegisterLibFunc(&sckWindowTitle, sckHandle, "screencap_sck_window_title")
		purego.RegisterLibFunc(&sckWindowOwner, sckHandle, "screencap_sck_window_owner")
		purego.RegisterLibFunc(&sckFreeString, sckHandle, "screencap_sck_free_string")
		purego.RegisterLibFunc(&sckCaptureCreate, sckHandle, "screencap_sck_capture_create")
		purego.RegisterLibFunc(&sckCaptureStart, sckHandle, "screencap_sck_capture_start")
		purego.RegisterLibFunc(&sckCaptureStop, sckHandle, "screencap_sck_capture_stop")
		purego.RegisterLibFunc(&sckCaptureDestroy, sckHandle, "screencap_sck_capture_destroy")
		purego.RegisterLibFunc(&sckLastError, sckHandle, "screencap_sck_last_error")

		sckLoaded = true
	})
}

// IsSCKAvailable returns true if the ScreenCaptureKit shim library is
// available.
func IsSCKAvailable() bool {
	initSCK()
	return sckLoaded
}

func sckError(op string) error {
	msg := "unknown error"
	if ptr := sckLastError(); ptr != 0 {
		msg = goStringFromPtr(ptr)
	}
	return fmt.Errorf("%s: %s", op, msg)
}

// SCKBackend implements Backend on macOS via ScreenCaptureKit.
type SCKBackend struct {
	mu sync.Mutex // serializes shim catalog refresh + iteration
}

// NewSCKBackend creates the ScreenCaptureKit backend.
func NewSCKBackend() *SCKBackend {
	initSCK()
	return &SCKBackend{}
}

// Name implements Backend.
func (b *SCKBackend) Name() string { return "sck" }

// AuthStatus implements Authorizer.
func (b *SCKBackend) AuthStatus(ctx context.Context) (AuthStatus, error) {
	if !sckLoaded {
		return AuthNotDetermined, fmt.Errorf("ScreenCaptureKit shim not available: %v", sckInitErr)
	}
	return sckToAuthStatus(sckAuthStatus()), nil
}

// RequestAuth implements Authorizer. When the status is not determined the
// OS shows its permission dialog.
func (b *SCKBackend) RequestAuth(ctx context.Context) (AuthStatus, error) {
	if !sckLoaded {
		return AuthNotDetermined, fmt.Errorf("ScreenCaptureKit shim not available: %v", sckInitErr)
	}
	return sckToAuthStatus(sckAuthRequest()), nil
}

func sckToAuthStatus(v int32) AuthStatus {
	switch v {
	case sckAuthAuthorized:
		return AuthAuthorized
	case sckAuthDenied:
		return AuthDenied
	default:
		return AuthNotDetermined
	}
}

// Displays implements Catalog.
func (b *SCKBackend) Displays(ctx context.Context) ([]Display, error) {
	if !sckLoaded {
		return nil, fmt.Errorf("ScreenCaptureKit shim not available: %v", sckInitErr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if sckRefreshContent() != 0 {
		return nil, sckError("shareable content query failed")
	}

	count := sckDisplayCount()
	displays := make([]Display, 0, count)
	for i := int32(0); i < count; i++ {
		var (
			id            uint32
			width, height int32
			rect          [4]float64 // x, y, w, h
		)
		if sckDisplayInfo(i,
			uintptr(unsafe.Pointer(&id)),
			uintptr(unsafe.Pointer(&width)),
			uintptr(unsafe.Pointer(&height)),
			uintptr(unsafe.Pointer(&rect[0])),
		) != 0 {
			continue
		}
		displays = append(displays, Display{
			ID:     DisplayID(id),
			Width:  int(width),
			Height: int(height),
			Rect:   Rect{X: rect[0], Y: rect[1], Width: rect[2], Height: rect[3]},
		})
	}
	return displays, nil
}

// Windows implements Catalog.
func (b *SCKBackend) Windows(ctx context.Context) ([]Window, error) {
	if !sckLoaded {
		return nil, fmt.Errorf("ScreenCaptureKit shim not available: %v", sckInitErr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if sckRefreshContent() != 0 {
		return nil, sckError("shareable content query failed")
	}

	count := sckWindowCount()
	windows := make([]Window, 0, count)
	for i := int32(0); i < count; i++ {
		var (
			id       uint32
			rect     [4]float64
			layer    int32
			onScreen int32
			active   int32
			ownerPID int32
		)
		if sckWindowInfo(i,
			uintptr(unsafe.Pointer(&id)),
			uintptr(unsafe.Pointer(&rect[0])),
			uintptr(unsafe.Pointer(&layer)),
			uintptr(unsafe.Pointer(&onScreen)),
			uintptr(unsafe.Pointer(&active)),
			uintptr(unsafe.Pointer(&ownerPID)),
		) != 0 {
			continue
		}

		w := Window{
			ID:       WindowID(id),
			Rect:     Rect{X: rect[0], Y: rect[1], Width: rect[2], Height: rect[3]},
			Layer:    int(layer),
			OnScreen: onScreen != 0,
			Active:   active != 0,
			OwnerPID: int(ownerPID),
		}
		if ptr := sckWindowTitle(i); ptr != 0 {
			w.Title = goStringFromPtr(ptr)
			sckFreeString(ptr)
		}
		if ptr := sckWindowOwner(i); ptr != 0 {
			w.OwnerName = goStringFromPtr(ptr)
			sckFreeString(ptr)
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// Callback routing state for purego. The shim calls back with the capture
// id we registered; the map resolves it to the live engine.
var (
	sckCapturesMu     sync.RWMutex
	sckCaptures       = make(map[uintptr]*sckEngine)
	sckCaptureCounter uintptr

	sckFrameCallback uintptr
	sckErrorCallback uintptr
	sckCallbackOnce  sync.Once
)

func initSCKCallbacks() {
	sckCallbackOnce.Do(func() {
		sckFrameCallback = purego.NewCallback(sckFrameHandler)
		sckErrorCallback = purego.NewCallback(sckErrorHandler)
	})
}

// sckFrameHandler is called by the shim once per frame on the stream's
// dispatch queue. rectPtr points at 4 float64 content-rect values, or is 0.
func sckFrameHandler(base uintptr, stride, width, height int32, ptsNs int64, status int32, rectPtr, userData uintptr) uintptr {
	sckCapturesMu.RLock()
	engine, ok := sckCaptures[userData]
	sckCapturesMu.RUnlock()
	if !ok || engine == nil {
		return 0
	}
	engine.handleFrame(base, stride, width, height, ptsNs, status, rectPtr)
	return 0
}

func sckErrorHandler(msg uintptr, userData uintptr) uintptr {
	sckCapturesMu.RLock()
	engine, ok := sckCaptures[userData]
	sckCapturesMu.RUnlock()
	if !ok || engine == nil {
		return 0
	}
	engine.sink.HandleError(fmt.Errorf("SCStream error: %s", goStringFromPtr(msg)))
	return 0
}

// sckCaptureConfig mirrors the shim's screencap_sck_config struct. Field
// order and sizes must match the C layout exactly.
type sckCaptureConfig struct {
	displayID   uint32
	windowID    uint32
	width       int32
	height      int32
	intervalNs  int64
	queueDepth  int32
	showsCursor int32
	scalesToFit int32
	hasSrcRect  int32
	srcRect     [4]float64
}

// NewEngine implements Backend.
func (b *SCKBackend) NewEngine(cfg EngineConfig, sink EngineSink) (Engine, error) {
	if !sckLoaded {
		return nil, fmt.Errorf("ScreenCaptureKit shim not available: %v", sckInitErr)
	}
	initSCKCallbacks()

	sckCapturesMu.Lock()
	sckCaptureCounter++
	captureID := sckCaptureCounter
	sckCapturesMu.Unlock()

	ccfg := sckCaptureConfig{
		displayID:   uint32(cfg.Filter.Display),
		windowID:    uint32(cfg.Filter.Window),
		width:       int32(cfg.Width),
		height:      int32(cfg.Height),
		intervalNs:  cfg.MinFrameInterval.Nanoseconds(),
		queueDepth:  int32(cfg.QueueDepth),
		showsCursor: boolToInt32(cfg.ShowsCursor),
		scalesToFit: boolToInt32(cfg.ScalesToFit),
	}
	if cfg.SourceRect != nil {
		ccfg.hasSrcRect = 1
		ccfg.srcRect = [4]float64{cfg.SourceRect.X, cfg.SourceRect.Y, cfg.SourceRect.Width, cfg.SourceRect.Height}
	}

	handle := sckCaptureCreate(
		uintptr(unsafe.Pointer(&ccfg)),
		sckFrameCallback,
		sckErrorCallback,
		captureID,
	)
	if handle == 0 {
		return nil, sckError("SCStream creation failed")
	}

	engine := &sckEngine{
		handle:    handle,
		captureID: captureID,
		sink:      sink,
	}

	sckCapturesMu.Lock()
	sckCaptures[captureID] = engine
	sckCapturesMu.Unlock()

	return engine, nil
}

// sckEngine is one SCStream capture session.
type sckEngine struct {
	handle    uint64
	captureID uintptr
	sink      EngineSink

	mu      sync.Mutex
	started bool
	stopped bool
}

func (e *sckEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("SCStream already started")
	}
	if rc := sckCaptureStart(e.handle); rc != 0 {
		return sckError("SCStream start failed")
	}
	e.started = true
	return nil
}

func (e *sckEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	e.stopped = true

	// Detach the output handler first so no further callbacks route here,
	// then stop and destroy; both tolerate an already-inactive stream.
	sckCapturesMu.Lock()
	delete(sckCaptures, e.captureID)
	sckCapturesMu.Unlock()

	sckCaptureStop(e.handle)
	sckCaptureDestroy(e.handle)
	e.handle = 0
	return nil
}

func (e *sckEngine) handleFrame(base uintptr, stride, width, height int32, ptsNs int64, status int32, rectPtr uintptr) {
	var fs FrameStatus
	switch status {
	case sckFrameComplete:
		fs = FrameComplete
	case sckFrameIdle:
		fs = FrameIdle
	case sckFrameBlank:
		fs = FrameBlank
	default:
		fs = FrameSuspended
	}
	if fs != FrameComplete {
		e.sink.HandleFrame(nil, ptsNs, fs, nil)
		return
	}

	size := int(stride) * int(height)
	// The buffer aliases IOSurface memory owned by the shim; the sink's
	// normalization step copies before this callback returns.
	img := &ImageBuffer{
		Data:   unsafe.Slice((*byte)(unsafe.Pointer(base)), size),
		Format: PixelFormatBGRA32,
		Width:  int(width),
		Height: int(height),
		Stride: int(stride),
	}

	var contentRect *Rect
	if rectPtr != 0 {
		vals := unsafe.Slice((*float64)(unsafe.Pointer(rectPtr)), 4)
		contentRect = &Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	}

	e.sink.HandleFrame(img, ptsNs, fs, contentRect)
}

func boolToInt32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func init() {
	initSCK()
	if sckLoaded {
		RegisterBackend(NewSCKBackend())
	}
}
