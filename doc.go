// Package screencap captures screen and window content as an ordered,
// time-stamped, bounded sequence of BGRA frames.
//
// Key pieces include:
//   - Stream: a one-shot capture session with explicit start/stop lifecycle
//   - Frame delivery with a bounded queue and a configurable drop policy
//   - Display/window enumeration and capture authorization queries
//   - An RTP packetizer for raw captured frames (RFC 4175)
//
// # Architecture
//
//	Catalog/Authorizer -> Stream.Start -> Engine (OS capture) -> bounded sink -> Stream.ReadFrame
//
// A Stream is usable for exactly one start/stop cycle. Once it has stopped
// or failed it permanently rejects further Start calls; capturing again
// means constructing a new Stream.
//
// The capture engine pushes frames from its own goroutine at its own
// cadence. The consumer pulls with ReadFrame, which suspends until a frame
// is available or the sequence terminates. When the bounded queue is full,
// the configured DropPolicy decides which frame is discarded; a gap in
// delivered sequence numbers is the only signal of a drop.
//
// # Backends
//
// Platform backends self-register:
//   - darwin: ScreenCaptureKit via the libscreencap_sck shim, loaded with
//     purego (CGO_ENABLED=0). Set SCREENCAP_LIB_PATH to the directory
//     containing the shim library.
//   - linux: GStreamer ximagesrc (X11).
//
// A synthetic pattern backend is always available as a fallback and is
// useful for tests and demos.
//
// # Build Tags
//
// The noscreen tag disables the platform capture backends.
package screencap
