// Package image loads chart images from raster files and PDF pages.
package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultDPI is the resolution PDF pages are rendered at when none is given.
const DefaultDPI = 150

// Chart is a loaded chart image and where it came from.
type Chart struct {
	Path   string      // Original file path
	Image  image.Image // Decoded pixels
	Format string      // Decoder name, or "pdf"
	Page   int         // Zero-based PDF page, 0 for raster files
	DPI    float64     // Render resolution for PDF pages, 0 for raster files
}

// Width returns the image width in pixels.
func (c *Chart) Width() int {
	if c.Image == nil {
		return 0
	}
	return c.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (c *Chart) Height() int {
	if c.Image == nil {
		return 0
	}
	return c.Image.Bounds().Dy()
}

// Options select the page and resolution for PDF input.
type Options struct {
	Page int
	DPI  float64
}

// Load reads a chart from path. PDF files are rendered; everything else is
// decoded, honouring EXIF orientation for photographed charts.
func Load(path string, opts Options) (*Chart, error) {
	if IsPDF(path) {
		return LoadPDFPage(path, opts.Page, opts.DPI)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &Chart{Path: path, Image: img, Format: format}, nil
}

// LoadPDFPage renders one zero-based page of a PDF at dpi.
func LoadPDFPage(path string, page int, dpi float64) (*Chart, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if n := doc.NumPage(); page < 0 || page >= n {
		return nil, fmt.Errorf("page %d out of range, %s has %d pages", page, filepath.Base(path), n)
	}
	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	return &Chart{Path: path, Image: img, Format: "pdf", Page: page, DPI: dpi}, nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// IsPDF reports whether path names a PDF file.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// SupportedFormats returns the list of supported file extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".pdf"}
}

// IsSupportedFormat checks if the given path has a supported extension.
func IsSupportedFormat(path string) bool {
	return slices.Contains(SupportedFormats(), strings.ToLower(filepath.Ext(path)))
}
