package screencap

import (
	"bytes"
	"testing"
)

func rawTestFrame(w, h int) *Frame {
	f := &Frame{
		Data:      make([]byte, BGRASize(w, h)),
		Width:     w,
		Height:    h,
		Timestamp: 1_000_000_000, // 1s -> 90000 ticks
	}
	for i := range f.Data {
		f.Data[i] = byte(i)
	}
	return f
}

func TestRawPacketizerSplitsLines(t *testing.T) {
	// MTU fits 8 pixels per packet; a 20-pixel line needs 3 packets.
	mtu := 12 + rawHeaderSize + 8*BGRABytesPerPixel
	p, err := NewRawPacketizer(0x1234, 96, mtu, 20, 2)
	if err != nil {
		t.Fatalf("NewRawPacketizer: %v", err)
	}

	packets, err := p.Packetize(rawTestFrame(20, 2))
	if err != nil {
		t.Fatalf("Packetize: %v", err)
	}
	if len(packets) != 6 {
		t.Fatalf("packet count = %d, want 6", len(packets))
	}

	// Only the final packet of the frame carries the marker.
	for i, pkt := range packets {
		want := i == len(packets)-1
		if pkt.Header.Marker != want {
			t.Errorf("packet %d marker = %v, want %v", i, pkt.Header.Marker, want)
		}
		if pkt.Header.Timestamp != 90000 {
			t.Errorf("packet %d timestamp = %d, want 90000", i, pkt.Header.Timestamp)
		}
		if pkt.Header.SSRC != 0x1234 {
			t.Errorf("packet %d ssrc = %x, want 0x1234", i, pkt.Header.SSRC)
		}
	}

	// Sequence numbers are consecutive.
	for i := 1; i < len(packets); i++ {
		if packets[i].Header.SequenceNumber != packets[i-1].Header.SequenceNumber+1 {
			t.Fatalf("sequence gap between packet %d and %d", i-1, i)
		}
	}
}

func TestRawPacketizerGeometryMismatch(t *testing.T) {
	p, err := NewRawPacketizer(1, 96, DefaultMTU, 8, 8)
	if err != nil {
		t.Fatalf("NewRawPacketizer: %v", err)
	}
	if _, err := p.Packetize(rawTestFrame(4, 4)); err == nil {
		t.Fatal("Packetize accepted mismatched geometry")
	}
}

func TestRawRoundTrip(t *testing.T) {
	const w, h = 13, 5 // odd width forces partial-line segments
	mtu := 12 + rawHeaderSize + 4*BGRABytesPerPixel

	p, err := NewRawPacketizer(7, 96, mtu, w, h)
	if err != nil {
		t.Fatalf("NewRawPacketizer: %v", err)
	}
	d, err := NewRawDepacketizer(w, h)
	if err != nil {
		t.Fatalf("NewRawDepacketizer: %v", err)
	}

	frame := rawTestFrame(w, h)
	wire, err := p.PacketizeToBytes(frame)
	if err != nil {
		t.Fatalf("PacketizeToBytes: %v", err)
	}

	var got []byte
	for i, pkt := range wire {
		out, err := d.DepacketizeBytes(pkt)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if out != nil && i != len(wire)-1 {
			t.Fatalf("frame completed early at packet %d", i)
		}
		if out != nil {
			got = out
		}
	}
	if got == nil {
		t.Fatal("marker packet did not complete the frame")
	}
	if !bytes.Equal(got, frame.Data) {
		t.Fatal("reassembled frame differs from original")
	}
}
