// Command screencap lists capture sources and records frames to disk.
//
// Usage:
//
//	screencap --list-displays
//	screencap --list-windows
//	screencap --display 1 --frames 30 --out ./frames
//	screencap --window 42 --fps 10 --policy newest --frames 5
package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/thesyncim/screencap"
)

var (
	listDisplays = flag.Bool("list-displays", false, "list capturable displays and exit")
	listWindows  = flag.Bool("list-windows", false, "list capturable windows and exit")
	displayID    = flag.Uint32("display", 0, "display id to capture")
	windowID     = flag.Uint32("window", 0, "window id to capture (takes precedence)")
	crop         = flag.Float64Slice("crop", nil, "crop rectangle as x,y,width,height")
	fps          = flag.Int("fps", 30, "target frame rate")
	depth        = flag.Int("depth", 3, "delivery queue depth (1..8)")
	policy       = flag.String("policy", "oldest", "overflow policy: oldest or newest")
	noCursor     = flag.Bool("no-cursor", false, "exclude the cursor from capture")
	width        = flag.Int("width", 0, "output width (0 = native)")
	height       = flag.Int("height", 0, "output height (0 = native)")
	frames       = flag.Int("frames", 10, "number of frames to record")
	outDir       = flag.String("out", ".", "output directory for PNG frames")
	backendName  = flag.String("backend", "", "force a specific backend (e.g. pattern)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := selectBackend(*backendName)
	if err != nil {
		return err
	}

	switch {
	case *listDisplays:
		return printDisplays(ctx, backend)
	case *listWindows:
		return printWindows(ctx, backend)
	}

	if *displayID == 0 && *windowID == 0 {
		flag.Usage()
		return errors.New("one of --display or --window is required")
	}

	return record(ctx, backend)
}

func selectBackend(name string) (screencap.Backend, error) {
	if name == "" {
		b := screencap.DefaultBackend()
		if b == nil {
			return nil, errors.New("no capture backend available on this platform")
		}
		return b, nil
	}
	for _, b := range screencap.Backends() {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, errors.Errorf("unknown backend %q", name)
}

func printDisplays(ctx context.Context, backend screencap.Backend) error {
	displays, err := backend.Displays(ctx)
	if err != nil {
		return errors.Wrap(err, "display enumeration failed")
	}
	bold := color.New(color.Bold)
	bold.Printf("%-8s %-12s %s\n", "ID", "SIZE", "BOUNDS")
	for _, d := range displays {
		fmt.Printf("%-8d %-12s %s\n", d.ID, fmt.Sprintf("%dx%d", d.Width, d.Height), d.Rect)
	}
	return nil
}

func printWindows(ctx context.Context, backend screencap.Backend) error {
	windows, err := backend.Windows(ctx)
	if err != nil {
		return errors.Wrap(err, "window enumeration failed")
	}
	bold := color.New(color.Bold)
	bold.Printf("%-8s %-24s %-24s %s\n", "ID", "OWNER", "TITLE", "BOUNDS")
	for _, w := range windows {
		if !w.OnScreen {
			continue
		}
		fmt.Printf("%-8d %-24.24s %-24.24s %s\n", w.ID, w.OwnerName, w.Title, w.Rect)
	}
	return nil
}

func record(ctx context.Context, backend screencap.Backend) error {
	cfg := screencap.DefaultConfig()
	cfg.FPS = *fps
	cfg.Depth = *depth
	cfg.ShowsCursor = !*noCursor
	cfg.OutputWidth = *width
	cfg.OutputHeight = *height

	switch *policy {
	case "oldest":
		cfg.Policy = screencap.DropOldest
	case "newest":
		cfg.Policy = screencap.DropNewest
	default:
		return errors.Errorf("invalid policy %q: want oldest or newest", *policy)
	}

	var target screencap.Target
	if *windowID != 0 {
		target = screencap.WindowTarget(screencap.WindowID(*windowID))
	} else {
		target = screencap.DisplayTarget(screencap.DisplayID(*displayID))
	}
	if len(*crop) > 0 {
		if len(*crop) != 4 {
			return errors.New("--crop needs exactly 4 values: x,y,width,height")
		}
		target = target.Cropped(screencap.Rect{
			X: (*crop)[0], Y: (*crop)[1], Width: (*crop)[2], Height: (*crop)[3],
		})
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return errors.Wrap(err, "output directory")
	}

	stream := screencap.NewStream(target, cfg, screencap.WithBackend(backend))
	if err := stream.Start(ctx); err != nil {
		return errors.Wrap(err, "start capture")
	}
	defer stream.Stop(context.Background())

	color.Green("recording %s via %s backend", target, backend.Name())

	for i := 0; i < *frames; i++ {
		frame, err := stream.ReadFrame(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read frame")
		}

		name := filepath.Join(*outDir, fmt.Sprintf("frame-%04d.png", frame.Seq))
		if err := writePNG(name, frame); err != nil {
			return err
		}
		fmt.Printf("wrote %s (seq %d, pts %dms)\n", name, frame.Seq, frame.Timestamp/1e6)
	}
	return nil
}

// writePNG converts a BGRA frame to RGBA and encodes it.
func writePNG(name string, frame *screencap.Frame) error {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 0; i+3 < len(frame.Data); i += 4 {
		img.Pix[i+0] = frame.Data[i+2]
		img.Pix[i+1] = frame.Data[i+1]
		img.Pix[i+2] = frame.Data[i+0]
		img.Pix[i+3] = frame.Data[i+3]
	}

	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create output file")
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	return nil
}
