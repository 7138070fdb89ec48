package screencap

import (
	"context"
	"fmt"
)

// DisplayID identifies a physical display in the catalog.
type DisplayID uint32

// WindowID identifies a window in the catalog.
type WindowID uint32

// Display describes a capturable display.
type Display struct {
	ID     DisplayID
	Width  int  // native width in pixels
	Height int  // native height in pixels
	Rect   Rect // bounds in global display space
}

// Window describes a capturable window.
type Window struct {
	ID        WindowID
	Rect      Rect // bounds in global display space
	Title     string
	Layer     int
	OnScreen  bool
	Active    bool
	OwnerPID  int
	OwnerName string
}

// Target is a logical capture source: a display or a window, with an
// optional crop in the source's coordinate space. Targets are immutable
// for the lifetime of a Stream.
type Target struct {
	Display DisplayID
	Window  WindowID // takes precedence over Display when non-zero
	Crop    *Rect
}

// DisplayTarget targets an entire display.
func DisplayTarget(id DisplayID) Target { return Target{Display: id} }

// WindowTarget targets a single window.
func WindowTarget(id WindowID) Target { return Target{Window: id} }

// Cropped returns a copy of the target restricted to the given rectangle.
// The rectangle is intersected with the source bounds at start time.
func (t Target) Cropped(r Rect) Target {
	t.Crop = &r
	return t
}

func (t Target) String() string {
	var s string
	if t.Window != 0 {
		s = fmt.Sprintf("window %d", t.Window)
	} else {
		s = fmt.Sprintf("display %d", t.Display)
	}
	if t.Crop != nil {
		s += " crop " + t.Crop.String()
	}
	return s
}

// resolvedTarget is the validated capture geometry produced from a Target
// at start time and destroyed at stop/failure.
type resolvedTarget struct {
	filter      Filter
	contentRect Rect  // captured region after crop intersection
	sourceRect  *Rect // engine sub-rectangle; nil when no crop requested
	width       int   // output width in pixels
	height      int   // output height in pixels
}

// resolveTarget looks up the target in the catalog and turns it into
// concrete capture geometry. Unknown ids yield SourceNotFound; a crop with
// an empty intersection yields InvalidConfiguration.
func resolveTarget(ctx context.Context, cat Catalog, t Target, cfg Config) (*resolvedTarget, error) {
	var (
		full   Rect
		filter Filter
	)

	if t.Window != 0 {
		windows, err := cat.Windows(ctx)
		if err != nil {
			return nil, captureFailed("window enumeration failed", err)
		}
		found := false
		for _, w := range windows {
			if w.ID == t.Window {
				full = w.Rect
				found = true
				break
			}
		}
		if !found {
			return nil, sourceNotFound(fmt.Sprintf("window %d", t.Window))
		}
		filter = Filter{Window: t.Window}
	} else {
		displays, err := cat.Displays(ctx)
		if err != nil {
			return nil, captureFailed("display enumeration failed", err)
		}
		found := false
		for _, d := range displays {
			if d.ID == t.Display {
				full = d.Rect
				found = true
				break
			}
		}
		if !found {
			return nil, sourceNotFound(fmt.Sprintf("display %d", t.Display))
		}
		filter = Filter{Display: t.Display}
	}

	content := full
	var sourceRect *Rect
	if t.Crop != nil {
		content = full.Intersect(*t.Crop)
		if content.Empty() {
			return nil, invalidConfigf("crop %v does not intersect source bounds %v", *t.Crop, full)
		}
		// The engine captures only the cropped region; without a crop the
		// full native output is requested.
		rect := content
		sourceRect = &rect
	}

	width, height := cfg.OutputWidth, cfg.OutputHeight
	if width == 0 && height == 0 {
		width = int(content.Width)
		height = int(content.Height)
	}
	if width <= 0 || height <= 0 {
		return nil, invalidConfigf("resolved output size %dx%d is not positive", width, height)
	}

	return &resolvedTarget{
		filter:      filter,
		contentRect: content,
		sourceRect:  sourceRect,
		width:       width,
		height:      height,
	}, nil
}
