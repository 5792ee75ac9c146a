// Package preprocess normalizes photographed statement pages before they are
// sent to the extraction model. A raw photo is decoded, rotated according to
// its EXIF orientation, converted to grayscale and binarized with a locally
// windowed threshold so uneven lighting and shadows do not confuse the model.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Register decoders for the formats a phone camera produces.
	_ "image/gif"
	_ "image/png"
)

var (
	// ErrDecode indicates the input bytes could not be decoded as an image.
	ErrDecode = errors.New("preprocess: cannot decode image")

	// ErrEncode indicates the processed image could not be re-encoded.
	ErrEncode = errors.New("preprocess: cannot encode image")
)

const (
	// thresholdWindow is the side length of the local neighborhood each pixel
	// is compared against.
	thresholdWindow = 11

	// thresholdOffset is subtracted from the local mean before comparison.
	thresholdOffset = 2

	// jpegQuality is fixed so repeated runs on identical input produce
	// identical output bytes.
	jpegQuality = 90
)

// Process converts a raw photograph into a high-contrast binary JPEG suitable
// for extraction. It is a pure transform: identical input yields identical
// output.
func Process(imageBytes []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// Phone cameras record the intended rotation in EXIF metadata rather
	// than rotating the pixel buffer.
	img = applyOrientation(img, readOrientation(imageBytes))

	gray := toGray(img)
	binary := adaptiveThreshold(gray, thresholdWindow, thresholdOffset)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, binary, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrEncode)
	}

	return buf.Bytes(), nil
}

// toGray converts any decoded image to single-channel grayscale. The channel
// layout of the source is detected from its concrete type; a source that is
// already grayscale is copied without conversion.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	switch src := img.(type) {
	case *image.NRGBA:
		// 4-channel source; alpha is ignored.
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				i := src.PixOffset(x, y)
				gray.SetGray(x, y, luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
			}
		}
	case *image.RGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				i := src.PixOffset(x, y)
				gray.SetGray(x, y, luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
			}
		}
	default:
		// 3-channel and exotic layouts (YCbCr from JPEG decoding lands here).
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				gray.SetGray(x, y, luminance(uint8(r>>8), uint8(g>>8), uint8(b>>8)))
			}
		}
	}

	return gray
}

// luminance computes the ITU-R BT.601 weighted grayscale value.
func luminance(r, g, b uint8) color.Gray {
	y := (299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000
	return color.Gray{Y: uint8(y)}
}

// adaptiveThreshold binarizes a grayscale image by comparing every pixel
// against the mean of its window×window neighborhood minus offset. An
// integral image keeps the neighborhood sums O(1) per pixel. Windows are
// clamped at the borders, matching the behavior of replicated-border
// thresholding closely enough for photographed documents.
func adaptiveThreshold(src *image.Gray, window, offset int) *image.Gray {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	out := image.NewGray(bounds)
	if w == 0 || h == 0 {
		return out
	}

	// integral[y][x] holds the sum of all pixels above and left of (x, y).
	integral := make([]uint64, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(src.Pix[src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	radius := window / 2
	for y := 0; y < h; y++ {
		y0 := max(0, y-radius)
		y1 := min(h-1, y+radius)
		for x := 0; x < w; x++ {
			x0 := max(0, x-radius)
			x1 := min(w-1, x+radius)

			sum := integral[(y1+1)*stride+x1+1] -
				integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] +
				integral[y0*stride+x0]
			count := uint64((y1 - y0 + 1) * (x1 - x0 + 1))
			mean := int(sum / count)

			v := uint8(0)
			if int(src.Pix[src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)]) > mean-offset {
				v = 255
			}
			out.Pix[out.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)] = v
		}
	}

	return out
}
