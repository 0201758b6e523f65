// Package document reads page counts, page images and embedded text from
// PDF scores and writes per-part PDFs.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/image/draw"

	"github.com/dgallion1/scoreslice/internal/recognize"
)

// ErrPageRange is returned for a page index outside the document.
var ErrPageRange = errors.New("page index out of range")

// RenderOptions bounds page rasterization.
type RenderOptions struct {
	DPI       int
	MaxPixels int    // longest side after downscaling; 0 keeps the rendered size
	Pdftoppm  string // binary path
}

// PDF is an opened source document. Methods are safe for concurrent use.
type PDF struct {
	path   string
	opts   RenderOptions
	mu     sync.Mutex
	file   *os.File
	reader *pdflib.Reader
	pages  int
}

// Open opens a PDF for page counting, rendering and text extraction.
func Open(path string, opts RenderOptions) (*PDF, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	if opts.DPI <= 0 {
		opts.DPI = 200
	}
	if opts.Pdftoppm == "" {
		opts.Pdftoppm = "pdftoppm"
	}
	return &PDF{
		path:   path,
		opts:   opts,
		file:   f,
		reader: reader,
		pages:  reader.NumPage(),
	}, nil
}

func (d *PDF) Path() string { return d.path }

func (d *PDF) PageCount() int { return d.pages }

func (d *PDF) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Render rasterizes page index (0-based) to a grayscale PNG.
func (d *PDF) Render(ctx context.Context, index int) (recognize.Image, error) {
	if index < 0 || index >= d.pages {
		return recognize.Image{}, fmt.Errorf("%w: %d", ErrPageRange, index)
	}

	dir, err := os.MkdirTemp("", "scoreslice-render-*")
	if err != nil {
		return recognize.Image{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	n := strconv.Itoa(index + 1)
	cmd := exec.CommandContext(ctx, d.opts.Pdftoppm,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(d.opts.DPI),
		"-gray", "-png", "-singlefile",
		d.path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return recognize.Image{}, &recognize.RetryableError{
			Err: fmt.Errorf("pdftoppm page %d: %w: %s", index, err, bytes.TrimSpace(stderr.Bytes())),
		}
	}

	raw, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return recognize.Image{}, fmt.Errorf("read rendered page %d: %w", index, err)
	}
	return Downscale(index, raw, d.opts.MaxPixels)
}

// Downscale converts a PNG to grayscale and shrinks it so its longest side
// is at most maxPixels.
func Downscale(page int, data []byte, maxPixels int) (recognize.Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return recognize.Image{}, fmt.Errorf("decode page %d: %w", page, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if longest := max(w, h); maxPixels > 0 && longest > maxPixels {
		w = w * maxPixels / longest
		h = h * maxPixels / longest
	}
	w, h = max(w, 1), max(h, 1)

	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return recognize.Image{}, fmt.Errorf("encode page %d: %w", page, err)
	}
	return recognize.Image{Page: page, Data: buf.Bytes(), Width: w, Height: h}, nil
}
