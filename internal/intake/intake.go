package intake

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MaxFileSize is the largest document accepted (high-resolution phone photos fit)
const MaxFileSize = 50 << 20

var (
	// ErrUnsupportedType is returned for anything that is not an image or a PDF
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrInvalidPDF is returned when a PDF cannot be parsed
	ErrInvalidPDF = errors.New("invalid PDF")

	// ErrEmptyFile is returned for zero-length files
	ErrEmptyFile = errors.New("file is empty")

	// ErrTooLarge is returned for files over MaxFileSize
	ErrTooLarge = errors.New("file is too large")
)

func init() {
	// pdfcpu would otherwise create a config directory in the user's home
	api.DisableConfigDir()
}

// Document is a selected file that passed intake checks
type Document struct {
	Name     string
	MimeType string
	Data     []byte
	// Pages is the PDF page count, 0 for images
	Pages int
}

// IsPDF reports whether the document is a PDF
func (d *Document) IsPDF() bool {
	return d.MimeType == "application/pdf"
}

// ReadFile reads and checks the document at path
func ReadFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("reading file: %s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, ErrTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Accept(filepath.Base(path), data, "")
}

// Accept checks an in-memory document. declaredType may be empty, in which case the
// type is sniffed from the content and then the file extension.
func Accept(name string, data []byte, declaredType string) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}

	mimeType := DetectType(name, data, declaredType)
	if !Supported(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	doc := &Document{
		Name:     name,
		MimeType: mimeType,
		Data:     data,
	}

	if doc.IsPDF() {
		pages, err := validatePDF(data)
		if err != nil {
			return nil, err
		}
		doc.Pages = pages
	}

	return doc, nil
}

// Supported reports whether a mime type can be scanned
func Supported(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf"
}

// DetectType works out the mime type of a document
func DetectType(name string, data []byte, declaredType string) string {
	if t := normalize(declaredType); t != "" && t != "application/octet-stream" {
		return t
	}

	if t := normalize(mimetype.Detect(data).String()); t != "application/octet-stream" && t != "" {
		return t
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// validatePDF parses the PDF and returns its page count
func validatePDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: counting pages: %v", ErrInvalidPDF, err)
	}
	return pages, nil
}

func normalize(contentType string) string {
	t := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(t, ";"); i != -1 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "image/jpg" {
		t = "image/jpeg"
	}
	return t
}

// Notice returns the user-facing text for an intake rejection
func Notice(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "Please upload an image file (JPG, PNG) or PDF."
	case errors.Is(err, ErrInvalidPDF):
		return "The PDF could not be read. Please check the file and try again."
	case errors.Is(err, ErrEmptyFile):
		return "The selected file is empty."
	case errors.Is(err, ErrTooLarge):
		return "File is too large. Maximum size is 50MB. Please compress or resize your image."
	default:
		return err.Error()
	}
}
