// Package mediatest builds synthetic images for tests.
package mediatest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// SensitiveMarker is embedded in EXIF payloads so tests can assert it never
// reaches a derivative.
const SensitiveMarker = "GPSLatitude=52.5200N;Owner=alice"

// Gradient returns an RGBA image whose left half is red and right half blue.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, color.RGBA{220, 20, 20, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{20, 20, 220, 255})
			}
		}
	}
	return img
}

func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// EXIF returns a big-endian TIFF block holding one Orientation entry,
// followed by SensitiveMarker.
func EXIF(orientation uint16) []byte {
	var tiff bytes.Buffer
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x002a))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	_ = binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, orientation)
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0))
	tiff.WriteString(SensitiveMarker)
	return tiff.Bytes()
}

// JPEGWithEXIF returns a JPEG carrying an APP1 EXIF segment with the given
// orientation tag.
func JPEGWithEXIF(t testing.TB, w, h int, orientation uint16) []byte {
	t.Helper()
	plain := JPEG(t, w, h)
	payload := append([]byte("Exif\x00\x00"), EXIF(orientation)...)

	var out bytes.Buffer
	out.Write(plain[:2])
	out.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(plain[2:])
	return out.Bytes()
}

// PNGWithEXIF returns a PNG with an eXIf chunk placed right after IHDR.
func PNGWithEXIF(t testing.TB, w, h int, orientation uint16) []byte {
	t.Helper()
	plain := PNG(t, w, h)
	const afterIHDR = 8 + 4 + 4 + 13 + 4

	payload := EXIF(orientation)
	chunk := make([]byte, 0, len(payload)+12)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(payload)))
	chunk = append(chunk, "eXIf"...)
	chunk = append(chunk, payload...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	var out bytes.Buffer
	out.Write(plain[:afterIHDR])
	out.Write(chunk)
	out.Write(plain[afterIHDR:])
	return out.Bytes()
}

// RIFFChunks lists the top-level chunk ids of a WebP file.
func RIFFChunks(t testing.TB, data []byte) []string {
	t.Helper()
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Fatalf("not a webp container")
	}
	var ids []string
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		ids = append(ids, id)
		off += 8 + size + size%2
	}
	return ids
}
