// Package imaging turns arbitrary uploaded photos into bounded JPEG output.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // GIF decode support
	"image/jpeg"
	_ "image/png" // PNG decode support

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decode support
)

// ContentType is the output type of every normalized image.
const ContentType = "image/jpeg"

// Normalizer re-encodes images so the longer side stays within MaxDimension
// and the payload stays within MaxEncodedBytes. Decode or encode failures are
// returned to the caller; the normalizer never falls back to the raw bytes.
type Normalizer struct {
	MaxDimension    int
	Quality         int
	FallbackQuality int
	MaxEncodedBytes int64
}

// Normalize decodes the image, applies EXIF orientation, downsizes it to fit
// within MaxDimension (aspect preserved, never upscaled) and re-encodes as
// JPEG at Quality. If the result still exceeds MaxEncodedBytes, the original
// bytes are re-encoded once more at FallbackQuality; that second result is
// returned as-is.
func (n Normalizer) Normalize(data []byte) ([]byte, error) {
	out, err := n.encode(data, n.Quality)
	if err != nil {
		return nil, err
	}
	if n.MaxEncodedBytes > 0 && int64(len(out)) > n.MaxEncodedBytes {
		out, err = n.encode(data, n.FallbackQuality)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (n Normalizer) encode(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = applyOrientation(img, readOrientation(data))
	img = n.fitWithin(img)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales the image down so its longer side does not exceed
// MaxDimension. Images already inside the bound pass through untouched.
func (n Normalizer) fitWithin(img image.Image) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	longest := width
	if height > longest {
		longest = height
	}
	if n.MaxDimension <= 0 || longest <= n.MaxDimension {
		return img
	}
	scale := float64(n.MaxDimension) / float64(longest)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// readOrientation extracts the EXIF orientation tag. Images without readable
// EXIF data (PNG, GIF, stripped JPEG) report the identity orientation.
func readOrientation(data []byte) int {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

// applyOrientation rotates/flips the decoded pixels so the stored JPEG is
// upright without carrying the EXIF tag forward.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return flipHorizontal(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipVertical(img)
	case 5:
		return flipHorizontal(rotate270(img))
	case 6:
		return rotate90(img)
	case 7:
		return flipHorizontal(rotate90(img))
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func flipHorizontal(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(bounds.Max.X-1-x, y-bounds.Min.Y, img.At(x, y))
		}
	}
	return dst
}

func flipVertical(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x-bounds.Min.X, bounds.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func rotate90(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dy(), bounds.Dx()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(bounds.Max.Y-1-y, x-bounds.Min.X, img.At(x, y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(bounds.Max.X-1-x, bounds.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dy(), bounds.Dx()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(y-bounds.Min.Y, bounds.Max.X-1-x, img.At(x, y))
		}
	}
	return dst
}
