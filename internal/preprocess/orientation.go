package preprocess

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// orientationNone is the EXIF value for "pixels already upright".
const orientationNone = 1

// readOrientation extracts the EXIF orientation tag from the raw file bytes.
// Images without EXIF data (PNGs, stripped JPEGs) report orientationNone.
func readOrientation(imageBytes []byte) int {
	x, err := exif.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return orientationNone
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return orientationNone
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return orientationNone
	}
	return orientation
}

// applyOrientation rotates/flips the pixel buffer so it matches the intended
// visual orientation. The eight EXIF orientation values map onto the standard
// transform set; imaging rotations are counter-clockwise.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
