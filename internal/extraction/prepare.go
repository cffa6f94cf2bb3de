package extraction

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"golang.org/x/image/draw"
)

// maxDimension bounds the longer image axis to keep payloads small and
// model input cost predictable.
const maxDimension = 1024

const jpegQuality = 85

// PreparedPayload is a transport-ready image: JPEG bytes in standard
// base64, consumed exactly once by a model call.
type PreparedPayload struct {
	Data     string
	MIMEType string
}

// Prepare decodes a source image (JPEG, PNG, GIF, HEIC/HEIF, or the first
// page of a PDF), downscales it so the longer axis is at most 1024px, and
// re-encodes it as base64 JPEG.
func Prepare(data []byte, contentType string) (PreparedPayload, error) {
	img, err := decodeSource(data, contentType)
	if err != nil {
		return PreparedPayload{}, err
	}

	img = downscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return PreparedPayload{}, fmt.Errorf("encoding JPEG: %w", err)
	}

	return PreparedPayload{
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		MIMEType: "image/jpeg",
	}, nil
}

func decodeSource(data []byte, contentType string) (image.Image, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	if mimeType == "application/pdf" {
		return pdfFirstPage(data)
	}

	// HEIC/HEIF (common on iPhones) is not supported by Go's standard
	// image package.
	if isHEICData(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// pdfFirstPage renders the first page of a PDF. Most receipts are single
// page.
func pdfFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// downscale bounds the longer axis to maxDimension, preserving aspect
// ratio. Images already within bounds pass through untouched; nothing is
// ever upscaled.
func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	var dw, dh int
	if w >= h {
		dw = maxDimension
		dh = h * maxDimension / w
	} else {
		dh = maxDimension
		dw = w * maxDimension / h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// isHEICData sniffs the ftyp box brands iPhones write.
func isHEICData(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
