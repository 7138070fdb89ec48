package screencap

import (
	"bytes"
	"testing"
)

func TestToBGRAPassthrough(t *testing.T) {
	src := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	out, err := ToBGRA(&ImageBuffer{Data: src, Format: PixelFormatBGRA32, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("ToBGRA: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("out = %v, want %v", out, src)
	}
	// The output never aliases engine memory.
	src[0] = 0xee
	if out[0] == 0xee {
		t.Fatal("output aliases the input buffer")
	}
}

func TestToBGRASwapsRGBA(t *testing.T) {
	// One red pixel, one green pixel in RGBA.
	src := []byte{
		255, 0, 0, 255,
		0, 255, 0, 128,
	}
	out, err := ToBGRA(&ImageBuffer{Data: src, Format: PixelFormatRGBA32, Width: 2, Height: 1})
	if err != nil {
		t.Fatalf("ToBGRA: %v", err)
	}
	want := []byte{
		0, 0, 255, 255,
		0, 255, 0, 128,
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("out = %v, want %v", out, want)
	}
}

func TestToBGRAExpandsRGB24(t *testing.T) {
	src := []byte{255, 0, 0, 0, 0, 255}
	out, err := ToBGRA(&ImageBuffer{Data: src, Format: PixelFormatRGB24, Width: 2, Height: 1})
	if err != nil {
		t.Fatalf("ToBGRA: %v", err)
	}
	want := []byte{
		0, 0, 255, 255,
		255, 0, 0, 255,
	}
	if !bytes.Equal(out, want) {
		t.Fatalf("out = %v, want %v", out, want)
	}
}

func TestToBGRAHonorsStride(t *testing.T) {
	// 1 pixel wide, 2 rows, 8-byte stride with padding garbage.
	src := []byte{
		1, 2, 3, 4, 0xde, 0xad, 0xbe, 0xef,
		5, 6, 7, 8, 0xde, 0xad, 0xbe, 0xef,
	}
	out, err := ToBGRA(&ImageBuffer{Data: src, Format: PixelFormatBGRA32, Width: 1, Height: 2, Stride: 8})
	if err != nil {
		t.Fatalf("ToBGRA: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(out, want) {
		t.Fatalf("out = %v, want %v", out, want)
	}
}

func TestToBGRARejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		img  *ImageBuffer
	}{
		{"planar format", &ImageBuffer{Data: make([]byte, 64), Format: PixelFormatNV12, Width: 4, Height: 4}},
		{"zero width", &ImageBuffer{Data: make([]byte, 64), Format: PixelFormatBGRA32, Width: 0, Height: 4}},
		{"short buffer", &ImageBuffer{Data: make([]byte, 8), Format: PixelFormatBGRA32, Width: 4, Height: 4}},
		{"stride under width", &ImageBuffer{Data: make([]byte, 64), Format: PixelFormatBGRA32, Width: 4, Height: 2, Stride: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToBGRA(tt.img); err == nil {
				t.Fatal("ToBGRA succeeded, want error")
			}
		})
	}
}
