package screencap

import "fmt"

// ImageBuffer is the raw pixel payload handed over by a capture engine.
// Data may alias engine-owned memory; ToBGRA always copies.
type ImageBuffer struct {
	Data   []byte
	Format PixelFormat
	Width  int
	Height int
	Stride int // bytes per row; 0 means tightly packed
}

// ToBGRA normalizes an engine buffer into a tightly packed BGRA buffer,
// 4 bytes per pixel. This is the single conversion step between the engine
// and frame delivery; a failure here terminates the stream.
func ToBGRA(img *ImageBuffer) ([]byte, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", img.Width, img.Height)
	}
	bpp := img.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("cannot normalize planar format %v", img.Format)
	}

	stride := img.Stride
	if stride == 0 {
		stride = img.Width * bpp
	}
	if stride < img.Width*bpp {
		return nil, fmt.Errorf("stride %d too small for width %d (%v)", stride, img.Width, img.Format)
	}
	if len(img.Data) < stride*(img.Height-1)+img.Width*bpp {
		return nil, fmt.Errorf("buffer too small: %d bytes for %dx%d %v", len(img.Data), img.Width, img.Height, img.Format)
	}

	out := make([]byte, BGRASize(img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		src := img.Data[y*stride:]
		dst := out[y*img.Width*4:]
		switch img.Format {
		case PixelFormatBGRA32:
			copy(dst[:img.Width*4], src[:img.Width*4])
		case PixelFormatRGBA32:
			for x := 0; x < img.Width; x++ {
				si, di := x*4, x*4
				dst[di+0] = src[si+2]
				dst[di+1] = src[si+1]
				dst[di+2] = src[si+0]
				dst[di+3] = src[si+3]
			}
		case PixelFormatRGB24:
			for x := 0; x < img.Width; x++ {
				si, di := x*3, x*4
				dst[di+0] = src[si+2]
				dst[di+1] = src[si+1]
				dst[di+2] = src[si+0]
				dst[di+3] = 0xff
			}
		}
	}
	return out, nil
}
