// Package codec decodes uploaded images and re-encodes them to WebP.
//
// Re-encoding goes through raw pixels only, so nothing from the source
// container (EXIF, GPS, XMP, ICC) survives into the output.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "github.com/gen2brain/heic"
	"github.com/gen2brain/webp"
	"github.com/rwcarlsen/goexif/exif"

	"photovault/internal/media/sniffer"
)

const (
	MIMEType  = "image/webp"
	Extension = "webp"

	// maxPixels bounds decoded canvas size; larger inputs are refused
	// before any pixel buffer is allocated.
	maxPixels = 100_000_000

	// MaxDimension is the longest side a WebP canvas can carry.
	MaxDimension = 16383
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrCorruptData       = errors.New("corrupt image data")
)

// Image is a decoded upload. Pixels never leave this package.
type Image struct {
	pixels      image.Image
	Width       int
	Height      int
	Format      sniffer.MediaType
	Orientation int
}

// Encoded is a WebP buffer with its final dimensions.
type Encoded struct {
	Data   []byte
	Width  int
	Height int
}

// Decode parses an arbitrary upload. Input that is not recognisable as an
// image fails with ErrCorruptData; a recognised container with no
// registered decoder fails with ErrUnsupportedFormat.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCorruptData)
	}

	sniffed, err := sniffer.DetectHead(head(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, classify(sniffed.Type, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorruptData)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrUnsupportedFormat, cfg.Width, cfg.Height)
	}

	pixels, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, classify(sniffed.Type, err)
	}

	bounds := pixels.Bounds()
	img := &Image{
		pixels:      pixels,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Format:      sniffed.Type,
		Orientation: 1,
	}
	if payload := exifPayload(sniffed.Type, data); payload != nil {
		img.Orientation = readOrientation(payload)
	}
	return img, nil
}

func classify(format sniffer.MediaType, err error) error {
	if errors.Is(err, image.ErrFormat) {
		return fmt.Errorf("%w: no decoder for %s", ErrUnsupportedFormat, format)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorruptData, format, err)
}

func head(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}

// exifPayload locates the EXIF block for containers that carry one. JPEG
// is handed to the EXIF reader whole; PNG eXIf and WebP EXIF chunks are
// cut out first.
func exifPayload(format sniffer.MediaType, data []byte) []byte {
	switch format {
	case sniffer.TypeJPEG:
		return data
	case sniffer.TypePNG:
		return pngChunk(data, "eXIf")
	case sniffer.TypeWEBP:
		return riffChunk(data, "EXIF")
	default:
		return nil
	}
}

func pngChunk(data []byte, id string) []byte {
	const signature = 8
	for off := signature; off+12 <= len(data); {
		size := int(binary.BigEndian.Uint32(data[off : off+4]))
		kind := string(data[off+4 : off+8])
		end := off + 8 + size
		if size < 0 || end+4 > len(data) {
			return nil
		}
		if kind == id {
			return data[off+8 : end]
		}
		if kind == "IDAT" || kind == "IEND" {
			// eXIf must precede image data.
			return nil
		}
		off = end + 4
	}
	return nil
}

func riffChunk(data []byte, id string) []byte {
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil
	}
	for off := 12; off+8 <= len(data); {
		kind := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		end := off + 8 + size
		if size < 0 || end > len(data) {
			return nil
		}
		if kind == id {
			return data[off+8 : end]
		}
		off = end + size%2
	}
	return nil
}

func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// NormalizeOrientation bakes the EXIF orientation into the pixel data and
// resets the tag, so the encoder has nothing to carry forward.
func (img *Image) NormalizeOrientation() {
	switch img.Orientation {
	case 2:
		img.pixels = imaging.FlipH(img.pixels)
	case 3:
		img.pixels = imaging.Rotate180(img.pixels)
	case 4:
		img.pixels = imaging.FlipV(img.pixels)
	case 5:
		img.pixels = imaging.Transpose(img.pixels)
	case 6:
		img.pixels = imaging.Rotate270(img.pixels)
	case 7:
		img.pixels = imaging.Transverse(img.pixels)
	case 8:
		img.pixels = imaging.Rotate90(img.pixels)
	}
	img.Orientation = 1

	bounds := img.pixels.Bounds()
	img.Width = bounds.Dx()
	img.Height = bounds.Dy()
}

// FitWidth caps width at maxWidth without enlarging and derives the height
// that preserves the aspect ratio. Neither side ends up longer than
// MaxDimension.
func FitWidth(width, height, maxWidth int) (int, int) {
	maxWidth = min(maxWidth, MaxDimension)
	if width > maxWidth {
		height = scaleSide(height, maxWidth, width)
		width = maxWidth
	}
	if height > MaxDimension {
		width = scaleSide(width, MaxDimension, height)
		height = MaxDimension
	}
	return width, height
}

// scaleSide returns side scaled by target/reference, at least 1.
func scaleSide(side, target, reference int) int {
	scaled := int(math.Round(float64(target) / float64(reference) * float64(side)))
	return max(scaled, 1)
}

// Encode resizes to fit maxWidth and writes lossy WebP. effort follows the
// libwebp method scale: 0 is fastest, 6 compresses hardest.
func Encode(img *Image, maxWidth, quality, effort int) (Encoded, error) {
	if maxWidth <= 0 {
		return Encoded{}, fmt.Errorf("invalid target width %d", maxWidth)
	}

	width, height := FitWidth(img.Width, img.Height, maxWidth)
	src := img.pixels
	if width != img.Width || height != img.Height {
		src = imaging.Resize(src, width, height, imaging.Lanczos)
	}

	// Quality 100 switches the encoder to lossless.
	quality = min(max(quality, 0), 99)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, src, webp.Options{Quality: quality, Method: effort}); err != nil {
		return Encoded{}, fmt.Errorf("encode webp: %w", err)
	}

	return Encoded{
		Data:   buf.Bytes(),
		Width:  width,
		Height: height,
	}, nil
}
