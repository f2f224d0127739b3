package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"

	"pichost/internal/logging"

	// Image format decoders
	_ "image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// MaxImagePixels caps the decoded size of an original. A 60MP image decodes
// to ~240MB in RGBA.
const MaxImagePixels = 60_000_000

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions reads the image header without decoding pixel data.
func GetImageDimensions(data []byte) (*ImageDimensions, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// renderThumbnail decodes data and returns a JPEG that fits inside size,
// with alpha flattened onto white. Images already inside the box keep their
// dimensions.
func renderThumbnail(data []byte, size Size) ([]byte, error) {
	dims, err := GetImageDimensions(data)
	if err != nil {
		return nil, fmt.Errorf("unrecognized image: %w", err)
	}
	if dims.Width*dims.Height > MaxImagePixels {
		return nil, fmt.Errorf("image too large: %dx%d", dims.Width, dims.Height)
	}

	if IsVipsAvailable() {
		thumb, err := thumbnailWithVips(data, size)
		if err == nil {
			return thumb, nil
		}
		logging.Debug("vips thumbnail failed, falling back to imaging: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	thumb := flatten(imaging.Fit(img, size.Width, size.Height, imaging.Lanczos))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// DefaultPlaceholder renders the built-in placeholder: a light gray PNG tile
// with a darker frame.
func DefaultPlaceholder() []byte {
	const side = 120

	img := imaging.New(side, side, color.NRGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff})
	frame := color.NRGBA{R: 0xa0, G: 0xa0, B: 0xa0, A: 0xff}
	for i := 0; i < side; i++ {
		for _, j := range []int{0, 1, side - 2, side - 1} {
			img.Set(i, j, frame)
			img.Set(j, i, frame)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logging.Error("Failed to encode placeholder: %v", err)
		return nil
	}
	return buf.Bytes()
}

// LoadPlaceholder reads a placeholder image from path. An empty path
// selects DefaultPlaceholder. The file must be a PNG.
func LoadPlaceholder(path string) ([]byte, error) {
	if path == "" {
		return DefaultPlaceholder(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read placeholder: %w", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil || format != "png" {
		return nil, fmt.Errorf("placeholder %s is not a PNG image", path)
	}
	return data, nil
}
