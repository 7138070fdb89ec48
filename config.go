package screencap

import "time"

// DropPolicy governs which frame is discarded when the bounded delivery
// queue is full.
type DropPolicy int

const (
	// DropOldest evicts the oldest buffered frame to make room for the new
	// one. The consumer always sees the most recent frames.
	DropOldest DropPolicy = iota

	// DropNewest discards the incoming frame and leaves the buffer
	// unchanged. The consumer sees the earliest frames.
	DropNewest
)

func (p DropPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// Queue depth bounds. The delivery queue never buffers more than
// MaxQueueDepth undelivered frames.
const (
	MinQueueDepth = 1
	MaxQueueDepth = 8
)

// Config configures a capture Stream. It is immutable for the lifetime of
// the stream; validation happens in Start before any engine interaction.
type Config struct {
	FPS         int        // Target frames per second (> 0)
	Depth       int        // Delivery queue depth, 1..8
	Policy      DropPolicy // Overflow policy when the queue is full
	ShowsCursor bool       // Include the cursor in captured frames

	// OutputWidth/OutputHeight pin the output size in pixels. Set both or
	// neither; when unset the resolved content rectangle's dimensions are
	// used.
	OutputWidth  int
	OutputHeight int

	ScalesToFit bool // Scale source content to the output size
}

// DefaultConfig returns a default capture configuration.
func DefaultConfig() Config {
	return Config{
		FPS:         30,
		Depth:       3,
		Policy:      DropOldest,
		ShowsCursor: true,
	}
}

func (c Config) validate() *Error {
	if c.FPS <= 0 {
		return invalidConfigf("frames per second must be positive, got %d", c.FPS)
	}
	if c.Depth < MinQueueDepth || c.Depth > MaxQueueDepth {
		return invalidConfigf("queue depth must be between %d and %d, got %d", MinQueueDepth, MaxQueueDepth, c.Depth)
	}
	if (c.OutputWidth == 0) != (c.OutputHeight == 0) {
		return invalidConfigf("output width and height must be set together")
	}
	if c.OutputWidth < 0 || c.OutputHeight < 0 {
		return invalidConfigf("output size must be positive, got %dx%d", c.OutputWidth, c.OutputHeight)
	}
	return nil
}

// minFrameInterval returns the engine frame pacing interval for the
// configured FPS.
func (c Config) minFrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}
