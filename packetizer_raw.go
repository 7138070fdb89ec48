package screencap

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/pion/rtp"
)

// RTP packetization of uncompressed BGRA frames per RFC 4175. Each packet
// carries the 2-byte extended sequence number followed by a single line
// segment header (length, line number, pixel offset) and its pixel data,
// so frames of any size survive MTU-bounded transports.

// DefaultMTU is the assumed path MTU when none is configured.
const DefaultMTU = 1200

// rtpVideoClockRate is the RTP timestamp clock for video payloads.
const rtpVideoClockRate = 90000

// rawHeaderSize is the RFC 4175 payload header: extended sequence number
// plus one segment header.
const rawHeaderSize = 2 + 6

// rawMarkerBitF marks a segment header field's top bit.
const rawMarkerBitF = 0x8000

// RawPacketizer splits BGRA frames into RFC 4175 RTP packets.
type RawPacketizer struct {
	ssrc        uint32
	payloadType uint8
	mtu         int
	width       int
	height      int
	sequencer   rtp.Sequencer
	mu          sync.Mutex
}

// NewRawPacketizer creates a packetizer for frames of the given geometry.
func NewRawPacketizer(ssrc uint32, pt uint8, mtu, width, height int) (*RawPacketizer, error) {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	if mtu < 12+rawHeaderSize+BGRABytesPerPixel {
		return nil, fmt.Errorf("mtu %d cannot fit a single pixel", mtu)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d", width, height)
	}
	return &RawPacketizer{
		ssrc:        ssrc,
		payloadType: pt,
		mtu:         mtu,
		width:       width,
		height:      height,
		sequencer:   rtp.NewRandomSequencer(),
	}, nil
}

// BGRABytesPerPixel is the pgroup size for 8-bit BGRA sampling.
const BGRABytesPerPixel = 4

// rtpTimestamp converts a nanosecond presentation timestamp to 90 kHz
// RTP clock ticks.
func rtpTimestamp(ptsNs int64) uint32 {
	return uint32(uint64(ptsNs) * rtpVideoClockRate / 1e9)
}

// Packetize converts one frame to RTP packets. The marker bit is set on
// the final packet of the frame.
func (p *RawPacketizer) Packetize(f *Frame) ([]*rtp.Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f.Width != p.width || f.Height != p.height {
		return nil, fmt.Errorf("frame geometry %dx%d does not match packetizer %dx%d",
			f.Width, f.Height, p.width, p.height)
	}
	if len(f.Data) < BGRASize(p.width, p.height) {
		return nil, fmt.Errorf("frame data truncated: %d bytes for %dx%d", len(f.Data), p.width, p.height)
	}

	maxPixels := (p.mtu - 12 - rawHeaderSize) / BGRABytesPerPixel
	ts := rtpTimestamp(f.Timestamp)

	var packets []*rtp.Packet
	rowBytes := p.width * BGRABytesPerPixel

	for line := 0; line < p.height; line++ {
		row := f.Data[line*rowBytes : (line+1)*rowBytes]
		for offset := 0; offset < p.width; offset += maxPixels {
			pixels := min(maxPixels, p.width-offset)
			segment := row[offset*BGRABytesPerPixel : (offset+pixels)*BGRABytesPerPixel]

			payload := make([]byte, rawHeaderSize+len(segment))
			// Extended sequence number stays zero; streams short enough to
			// wrap 16 bits within one frame are out of scope.
			binary.BigEndian.PutUint16(payload[2:], uint16(len(segment)))
			binary.BigEndian.PutUint16(payload[4:], uint16(line))
			cont := uint16(0)
			if offset+pixels < p.width {
				cont = rawMarkerBitF
			}
			binary.BigEndian.PutUint16(payload[6:], cont|uint16(offset))
			copy(payload[rawHeaderSize:], segment)

			last := line == p.height-1 && offset+pixels >= p.width
			packets = append(packets, &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					Marker:         last,
					PayloadType:    p.payloadType,
					SequenceNumber: p.sequencer.NextSequenceNumber(),
					Timestamp:      ts,
					SSRC:           p.ssrc,
				},
				Payload: payload,
			})
		}
	}
	return packets, nil
}

// PacketizeToBytes converts one frame to marshaled RTP packet bytes.
func (p *RawPacketizer) PacketizeToBytes(f *Frame) ([][]byte, error) {
	packets, err := p.Packetize(f)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(packets))
	for i, pkt := range packets {
		out[i], err = pkt.Marshal()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *RawPacketizer) SSRC() uint32       { p.mu.Lock(); defer p.mu.Unlock(); return p.ssrc }
func (p *RawPacketizer) PayloadType() uint8 { p.mu.Lock(); defer p.mu.Unlock(); return p.payloadType }
func (p *RawPacketizer) MTU() int           { p.mu.Lock(); defer p.mu.Unlock(); return p.mtu }
func (p *RawPacketizer) SetMTU(mtu int)     { p.mu.Lock(); p.mtu = mtu; p.mu.Unlock() }

// FrameRTPWriter packetizes frames and writes the marshaled packets to a
// byte stream, typically a UDP connection.
type FrameRTPWriter struct {
	packetizer *RawPacketizer
	w          io.Writer
}

// NewFrameRTPWriter wraps a packetizer around a packet-oriented writer.
func NewFrameRTPWriter(p *RawPacketizer, w io.Writer) *FrameRTPWriter {
	return &FrameRTPWriter{packetizer: p, w: w}
}

// WriteFrame sends one frame as a burst of RTP packets.
func (fw *FrameRTPWriter) WriteFrame(f *Frame) error {
	packets, err := fw.packetizer.PacketizeToBytes(f)
	if err != nil {
		return err
	}
	for _, pkt := range packets {
		if _, err := fw.w.Write(pkt); err != nil {
			return err
		}
	}
	return nil
}

// RawDepacketizer reassembles RFC 4175 packets back into BGRA frames.
type RawDepacketizer struct {
	width     int
	height    int
	buffer    []byte
	timestamp uint32
	started   bool
	mu        sync.Mutex
}

// NewRawDepacketizer creates a depacketizer for the given frame geometry.
func NewRawDepacketizer(width, height int) (*RawDepacketizer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d", width, height)
	}
	return &RawDepacketizer{
		width:  width,
		height: height,
		buffer: make([]byte, BGRASize(width, height)),
	}, nil
}

// Depacketize processes one RTP packet and returns the completed BGRA
// frame when the marker packet arrives, nil otherwise.
func (d *RawDepacketizer) Depacketize(pkt *rtp.Packet) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pkt.Payload) < rawHeaderSize {
		return nil, fmt.Errorf("payload too short for line header: %d bytes", len(pkt.Payload))
	}

	// A timestamp change starts a new frame; stale partial data is dropped.
	if d.started && pkt.Header.Timestamp != d.timestamp {
		d.started = false
	}
	if !d.started {
		d.timestamp = pkt.Header.Timestamp
		d.started = true
	}

	length := int(binary.BigEndian.Uint16(pkt.Payload[2:]))
	line := int(binary.BigEndian.Uint16(pkt.Payload[4:]) &^ rawMarkerBitF)
	offset := int(binary.BigEndian.Uint16(pkt.Payload[6:]) &^ rawMarkerBitF)

	if len(pkt.Payload) < rawHeaderSize+length {
		return nil, fmt.Errorf("segment truncated: header says %d bytes, have %d",
			length, len(pkt.Payload)-rawHeaderSize)
	}
	if line >= d.height {
		return nil, fmt.Errorf("line %d out of range for height %d", line, d.height)
	}
	end := offset*BGRABytesPerPixel + length
	if end > d.width*BGRABytesPerPixel {
		return nil, fmt.Errorf("segment exceeds line width: offset %d length %d", offset, length)
	}

	dst := d.buffer[line*d.width*BGRABytesPerPixel:]
	copy(dst[offset*BGRABytesPerPixel:end], pkt.Payload[rawHeaderSize:rawHeaderSize+length])

	if pkt.Header.Marker {
		frame := make([]byte, len(d.buffer))
		copy(frame, d.buffer)
		d.started = false
		return frame, nil
	}
	return nil, nil
}

// DepacketizeBytes processes raw RTP packet bytes.
func (d *RawDepacketizer) DepacketizeBytes(data []byte) ([]byte, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return nil, err
	}
	return d.Depacketize(&pkt)
}
