package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
)

// gradientPage builds a synthetic photographed page: background brightness
// falls from left to right (simulating a shadow) with a dark block of "text"
// in the middle.
func gradientPage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bg := uint8(230 - 100*x/w)
			img.Set(x, y, color.NRGBA{R: bg, G: bg, B: bg, A: 255})
		}
	}
	for y := h / 3; y < h/3+4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.Set(x, y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestProcess_BinarizesUnevenLighting(t *testing.T) {
	input := encodePNG(t, gradientPage(120, 60))

	out, err := Process(input)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a decodable JPEG: %v", err)
	}

	// The dark text block must come out near-black and the shadowed
	// background near-white, despite the brightness gradient. JPEG
	// compression softens exact 0/255 values, so use loose bands.
	textR, _, _, _ := decoded.At(60, 22).RGBA()
	if textR>>8 > 80 {
		t.Errorf("text pixel not binarized dark: got %d", textR>>8)
	}
	bgR, _, _, _ := decoded.At(100, 50).RGBA()
	if bgR>>8 < 180 {
		t.Errorf("shadowed background not binarized light: got %d", bgR>>8)
	}
}

func TestProcess_Deterministic(t *testing.T) {
	input := encodePNG(t, gradientPage(80, 40))

	first, err := Process(input)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Process(input)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated runs on identical input produced different bytes")
	}
}

func TestProcess_DecodeError(t *testing.T) {
	_, err := Process([]byte("not an image at all"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestToGray_ChannelDetection(t *testing.T) {
	bounds := image.Rect(0, 0, 4, 4)

	tests := []struct {
		name string
		img  image.Image
	}{
		{"gray passthrough", image.NewGray(bounds)},
		{"four channel NRGBA", image.NewNRGBA(bounds)},
		{"four channel RGBA", image.NewRGBA(bounds)},
		{"three channel YCbCr", image.NewYCbCr(bounds, image.YCbCrSubsampleRatio420)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gray := toGray(tt.img)
			if gray.Bounds() != bounds {
				t.Errorf("bounds changed: got %v, want %v", gray.Bounds(), bounds)
			}
		})
	}
}

func TestToGray_Luminance(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	gray := toGray(img)
	if got := gray.GrayAt(0, 0).Y; got != 255 {
		t.Errorf("white pixel converted to %d, want 255", got)
	}
}

func TestAdaptiveThreshold_LocalNotGlobal(t *testing.T) {
	// Left half bright with a slightly darker dot; right half dim with a
	// slightly brighter dot. A global threshold could not keep both dots
	// separated from their surroundings.
	src := image.NewGray(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(220)
			if x >= 20 {
				v = 80
			}
			src.SetGray(x, y, color.Gray{Y: v})
		}
	}
	src.SetGray(10, 10, color.Gray{Y: 150}) // darker than bright surroundings
	src.SetGray(30, 10, color.Gray{Y: 150}) // brighter than dim surroundings

	out := adaptiveThreshold(src, 11, 2)

	if got := out.GrayAt(10, 10).Y; got != 0 {
		t.Errorf("dark dot on bright background: got %d, want 0", got)
	}
	if got := out.GrayAt(30, 10).Y; got != 255 {
		t.Errorf("bright dot on dim background: got %d, want 255", got)
	}
}

func TestApplyOrientation(t *testing.T) {
	// A 2x1 image rotated 90° either way must become 1x2.
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))

	for _, orientation := range []int{5, 6, 7, 8} {
		out := applyOrientation(src, orientation)
		if out.Bounds().Dx() != 1 || out.Bounds().Dy() != 2 {
			t.Errorf("orientation %d: got %v, want 1x2", orientation, out.Bounds())
		}
	}

	for _, orientation := range []int{1, 2, 3, 4} {
		out := applyOrientation(src, orientation)
		if out.Bounds().Dx() != 2 || out.Bounds().Dy() != 1 {
			t.Errorf("orientation %d: got %v, want 2x1", orientation, out.Bounds())
		}
	}

	// Mirroring must actually move pixels.
	colored := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	colored.Set(0, 0, color.NRGBA{R: 255, A: 255})
	flipped := imaging.FlipH(colored)
	if flipped.NRGBAAt(1, 0).R != 255 {
		t.Error("FlipH did not mirror horizontally")
	}
}
