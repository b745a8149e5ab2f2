package realtime

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
)

// Frame is one decoded video frame with its capture timestamp. Decoding and
// resizing stay in this package (plain stdlib image handling); the heavier
// per-frame vision work (flow estimation, subject detection) lives in
// sibling files so each concern stays testable on its own.
type Frame struct {
	Img        image.Image
	TimestampS float64
}

// DecodeBase64JPEG decodes one Base64-encoded JPEG frame. A malformed
// frame is reported to the caller rather than silently dropped here —
// DecodeFrameBuffer is what implements the buffer's skip-failures policy.
func DecodeBase64JPEG(b64 string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return img, nil
}

// DecodeFrameBuffer decodes a list of Base64 JPEG frames, silently
// skipping any that fail to decode, matching the original's tolerance for
// a corrupt frame within an otherwise-usable buffer.
func DecodeFrameBuffer(b64Frames []string, fps float64, startTimestampS float64) []Frame {
	interval := 1.0 / 30.0
	if fps > 0 {
		interval = 1.0 / fps
	}
	frames := make([]Frame, 0, len(b64Frames))
	for i, b64 := range b64Frames {
		img, err := DecodeBase64JPEG(b64)
		if err != nil {
			continue
		}
		frames = append(frames, Frame{Img: img, TimestampS: startTimestampS + float64(i)*interval})
	}
	return frames
}

// resizeNearest resamples img to w x h using nearest-neighbor, matching
// the original's cv2.INTER_LINEAR call only in intent (fast downscale for
// a low-resolution analysis path), not in interpolation kernel.
func resizeNearest(img image.Image, w, h int) *image.RGBA {
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}
	for y := 0; y < h; y++ {
		sy := src.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			sx := src.Min.X + x*sw/w
			dst.Set(x, y, img.At(sx, sy))
		}
	}
	return dst
}

// resizeToTarget resizes img to (w, h) only when its bounds differ,
// mirroring the original's conditional resize.
func resizeToTarget(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return resizeNearest(img, w, h)
}

// grayFrame is a single-channel luminance buffer used by the flow and
// subject-detection algorithms.
type grayFrame struct {
	W, H int
	Pix  []float64 // row-major, 0-255 range
}

func toGray(img image.Image) *grayFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pix[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return &grayFrame{W: w, H: h, Pix: pix}
}

func (g *grayFrame) at(x, y int) float64 {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return -1 // sentinel: out of bounds
	}
	return g.Pix[y*g.W+x]
}
