//go:build linux && !noscreen

package screencap

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Linux backend: X11 capture through GStreamer's ximagesrc. Frames flow
// through a fixed pipeline
//
//	ximagesrc -> videoconvert -> videoscale -> videorate -> capsfilter -> appsink
//
// with the capsfilter locking BGRA output at the requested size and rate.
// X11 has no screen-recording permission model, so authorization is
// granted whenever a display connection exists.

// x11DisplayID is the catalog id of the X display named by $DISPLAY.
// Multi-screen setups appear as one large virtual screen under Xinerama,
// so a single catalog entry covers the whole capturable area.
const x11DisplayID DisplayID = 1

// X11Backend implements Backend for X11 via GStreamer.
type X11Backend struct {
	displayName string

	mu       sync.Mutex
	geometry *Rect // probed lazily, cached
}

// NewX11Backend creates the X11 capture backend for $DISPLAY.
func NewX11Backend() *X11Backend {
	gst.Init(nil)
	return &X11Backend{displayName: os.Getenv("DISPLAY")}
}

// Name implements Backend.
func (b *X11Backend) Name() string { return "x11" }

// AuthStatus implements Authorizer. X11 grants capture to any client with
// a display connection.
func (b *X11Backend) AuthStatus(ctx context.Context) (AuthStatus, error) {
	if b.displayName == "" {
		return AuthDenied, nil
	}
	return AuthAuthorized, nil
}

// RequestAuth implements Authorizer.
func (b *X11Backend) RequestAuth(ctx context.Context) (AuthStatus, error) {
	return b.AuthStatus(ctx)
}

// Displays implements Catalog. Screen geometry is probed by bringing a
// bare ximagesrc to PAUSED and reading the negotiated caps.
func (b *X11Backend) Displays(ctx context.Context) ([]Display, error) {
	if b.displayName == "" {
		return nil, fmt.Errorf("DISPLAY is not set")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.geometry == nil {
		rect, err := probeScreenGeometry(b.displayName)
		if err != nil {
			return nil, err
		}
		b.geometry = rect
	}

	return []Display{{
		ID:     x11DisplayID,
		Width:  int(b.geometry.Width),
		Height: int(b.geometry.Height),
		Rect:   *b.geometry,
	}}, nil
}

// Windows implements Catalog. Window enumeration is not wired on X11;
// capture targets are displays (optionally cropped).
func (b *X11Backend) Windows(ctx context.Context) ([]Window, error) {
	return []Window{}, nil
}

// probeScreenGeometry negotiates ximagesrc caps to learn the screen size.
func probeScreenGeometry(displayName string) (*Rect, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create probe pipeline: %w", err)
	}
	defer pipeline.SetState(gst.StateNull)

	src, err := gst.NewElement("ximagesrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create ximagesrc: %w", err)
	}
	src.SetProperty("display-name", displayName)

	fakesink, err := gst.NewElement("fakesink")
	if err != nil {
		return nil, fmt.Errorf("failed to create fakesink: %w", err)
	}

	pipeline.AddMany(src, fakesink)
	if err := gst.ElementLinkMany(src, fakesink); err != nil {
		return nil, fmt.Errorf("failed to link probe pipeline: %w", err)
	}

	if err := pipeline.SetState(gst.StatePaused); err != nil {
		return nil, fmt.Errorf("X display %q is not reachable: %w", displayName, err)
	}

	// Caps negotiation happens on the transition to PAUSED; poll briefly
	// for the pad to carry them.
	pad := src.GetStaticPad("src")
	if pad == nil {
		return nil, fmt.Errorf("ximagesrc has no src pad")
	}

	var caps *gst.Caps
	deadline := time.Now().Add(2 * time.Second)
	for {
		caps = pad.GetCurrentCaps()
		if caps != nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if caps == nil || caps.GetSize() == 0 {
		return nil, fmt.Errorf("ximagesrc caps were not negotiated")
	}

	structure := caps.GetStructureAt(0)
	wv, err := structure.GetValue("width")
	if err != nil {
		return nil, fmt.Errorf("screen width missing from caps: %w", err)
	}
	hv, err := structure.GetValue("height")
	if err != nil {
		return nil, fmt.Errorf("screen height missing from caps: %w", err)
	}
	width, _ := wv.(int)
	height, _ := hv.(int)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid screen geometry %dx%d", width, height)
	}

	return &Rect{Width: float64(width), Height: float64(height)}, nil
}

// NewEngine implements Backend. The pipeline is built here but stays NULL
// until Start.
func (b *X11Backend) NewEngine(cfg EngineConfig, sink EngineSink) (Engine, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("ximagesrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create ximagesrc: %w", err)
	}
	src.SetProperty("display-name", b.displayName)
	src.SetProperty("show-pointer", cfg.ShowsCursor)
	// Damage events deliver partial updates; full frames are required here.
	src.SetProperty("use-damage", false)
	if cfg.SourceRect != nil {
		src.SetProperty("startx", uint(cfg.SourceRect.X))
		src.SetProperty("starty", uint(cfg.SourceRect.Y))
		src.SetProperty("endx", uint(cfg.SourceRect.MaxX())-1)
		src.SetProperty("endy", uint(cfg.SourceRect.MaxY())-1)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}
	if cfg.ScalesToFit {
		scaler.SetProperty("add-borders", true)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	fps := 30
	if cfg.MinFrameInterval > 0 {
		fps = int(time.Second / cfg.MinFrameInterval)
	}
	if fps < 1 {
		fps = 1
	}
	capsStr := fmt.Sprintf("video/x-raw,format=BGRA,width=%d,height=%d,framerate=%d/1",
		cfg.Width, cfg.Height, fps)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", cfg.QueueDepth)
	appsink.SetProperty("drop", true)

	pipeline.AddMany(src, converter, scaler, videorate, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(src, converter, scaler, videorate, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	engine := &x11Engine{
		pipeline: pipeline,
		appsink:  appsink,
		sink:     sink,
		width:    cfg.Width,
		height:   cfg.Height,
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: engine.onNewSample,
	})

	return engine, nil
}

// x11Engine is one running ximagesrc pipeline.
type x11Engine struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink
	sink     EngineSink
	width    int
	height   int

	mu        sync.Mutex
	started   bool
	stopped   bool
	startTime time.Time
	busDone   chan struct{}
	busStop   chan struct{}
}

func (e *x11Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("pipeline already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.pipeline.SetState(gst.StatePlaying); err != nil {
		e.pipeline.SetState(gst.StateNull)
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	e.started = true
	e.startTime = time.Now()
	e.busStop = make(chan struct{})
	e.busDone = make(chan struct{})
	go e.watchBus()
	return nil
}

func (e *x11Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	started := e.started
	e.mu.Unlock()

	if started {
		close(e.busStop)
		<-e.busDone
	}
	if err := e.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to stop pipeline: %w", err)
	}
	return nil
}

// watchBus polls the pipeline bus and escalates errors and unexpected EOS
// to the sink. It exits on Stop.
func (e *x11Engine) watchBus() {
	defer close(e.busDone)

	bus := e.pipeline.GetPipelineBus()
	for {
		select {
		case <-e.busStop:
			return
		default:
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}
			switch msg.Type() {
			case gst.MessageError:
				e.sink.HandleError(fmt.Errorf("pipeline error: %s", msg.ParseError().Error()))
				return
			case gst.MessageEOS:
				e.sink.HandleError(fmt.Errorf("pipeline reached end of stream"))
				return
			}
		}
	}
}

// onNewSample runs on the streaming thread for every negotiated frame.
func (e *x11Engine) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		// One bad pull should not tear the stream down.
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < BGRASize(e.width, e.height) {
		buffer.Unmap()
		return gst.FlowOK
	}

	e.mu.Lock()
	stopped := e.stopped
	start := e.startTime
	e.mu.Unlock()
	if stopped {
		buffer.Unmap()
		return gst.FlowOK
	}

	// The sink's normalization step copies before this callback returns;
	// the mapping stays valid until Unmap.
	e.sink.HandleFrame(&ImageBuffer{
		Data:   data[:BGRASize(e.width, e.height)],
		Format: PixelFormatBGRA32,
		Width:  e.width,
		Height: e.height,
	}, time.Since(start).Nanoseconds(), FrameComplete, nil)
	buffer.Unmap()

	return gst.FlowOK
}

func init() {
	if os.Getenv("DISPLAY") != "" {
		RegisterBackend(NewX11Backend())
	}
}
