package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const (
	pdfMimeType  = "application/pdf"
	pngMimeType  = "image/png"
	heicMimeType = "image/heic"
)

// geminiNativeTypes are the mime types Gemini accepts without conversion
var geminiNativeTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// normalizeMimeType lowercases and strips parameters from a content type
func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// payloadType works out what data really is. Phones often label HEIC photos
// as JPEG or PNG, so the content wins for HEIC/HEIF.
func payloadType(data []byte, contentType string) string {
	detected := mimetype.Detect(data)
	if detected.Is("image/heic") || detected.Is("image/heif") ||
		detected.Is("image/heic-sequence") || detected.Is("image/heif-sequence") {
		return heicMimeType
	}

	mimeType := normalizeMimeType(contentType)
	if mimeType == "image/heif" {
		return heicMimeType
	}
	return mimeType
}

// decodeFirstImage decodes an image payload, or the first page of a PDF
func decodeFirstImage(data []byte, mimeType string) (image.Image, error) {
	switch mimeType {
	case pdfMimeType:
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

	case heicMimeType:
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil

	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unsupported image format %q, use JPEG, PNG, GIF, HEIC or PDF: %w", mimeType, err)
		}
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		return img, nil
	}
}

// toPNG re-encodes a payload as PNG
func toPNG(data []byte, mimeType string) ([]byte, error) {
	img, err := decodeFirstImage(data, mimeType)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// prepareForGemini passes natively supported payloads through and converts the rest to PNG
func prepareForGemini(data []byte, contentType string) ([]byte, string, error) {
	mimeType := payloadType(data, contentType)
	if geminiNativeTypes[mimeType] {
		return data, mimeType, nil
	}

	pngData, err := toPNG(data, mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("converting image to PNG: %w", err)
	}
	return pngData, pngMimeType, nil
}

// prepareImageData converts any payload to PNG for image-only models.
// PDFs are rendered from their first page.
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	mimeType := payloadType(data, contentType)
	if mimeType == pngMimeType {
		return data, nil
	}

	pngData, err := toPNG(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("converting %s to PNG: %w", mimeType, err)
	}
	return pngData, nil
}

// RenderPreview returns bytes suitable for display together with their mime type.
// JPEG and PNG are returned as-is; PDFs show their first page.
func RenderPreview(data []byte, contentType string) ([]byte, string, error) {
	mimeType := payloadType(data, contentType)
	if mimeType == "image/jpeg" || mimeType == pngMimeType {
		return data, mimeType, nil
	}

	pngData, err := prepareImageData(data, mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("rendering preview: %w", err)
	}
	return pngData, pngMimeType, nil
}
