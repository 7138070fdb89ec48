// Core frame types for the screencap package.
package screencap

// PixelFormat represents pixel formats a capture engine may emit.
// Delivered frames are always normalized to BGRA32.
type PixelFormat int

const (
	PixelFormatBGRA32 PixelFormat = iota // Packed BGRA, 4 bytes per pixel
	PixelFormatRGBA32                    // Packed RGBA, 4 bytes per pixel
	PixelFormatRGB24                     // Packed RGB, 3 bytes per pixel
	PixelFormatNV12                      // YUV 4:2:0 semi-planar (not normalizable)
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatBGRA32:
		return "BGRA32"
	case PixelFormatRGBA32:
		return "RGBA32"
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatNV12:
		return "NV12"
	default:
		return "Unknown"
	}
}

// BytesPerPixel returns the packed pixel size, or 0 for planar formats.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelFormatBGRA32, PixelFormatRGBA32:
		return 4
	case PixelFormatRGB24:
		return 3
	default:
		return 0
	}
}

// Frame is one captured image plus its timing, geometry and ordering
// metadata. The Data buffer is owned by the receiver once delivered.
type Frame struct {
	Data        []byte // BGRA, 4 bytes per pixel, Width*Height*4 bytes
	Width       int    // Frame width in pixels
	Height      int    // Frame height in pixels
	ContentRect Rect   // Captured region within the source
	Timestamp   int64  // Presentation timestamp in nanoseconds (capture clock)
	Seq         uint64 // Production order; gaps signal dropped frames
}

// Clone creates a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	clone := *f
	if f.Data != nil {
		clone.Data = make([]byte, len(f.Data))
		copy(clone.Data, f.Data)
	}
	return &clone
}

// BGRASize returns the buffer size of a BGRA frame.
func BGRASize(width, height int) int { return width * height * 4 }
