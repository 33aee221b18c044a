package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const pdfSignatureWindow = 1024

// decoder format name -> canonical media kind
var imageFormats = map[string]string{
	"jpeg": domain.MediaKindJPEG,
	"png":  domain.MediaKindPNG,
	"webp": domain.MediaKindWebP,
	"gif":  domain.MediaKindGIF,
	"bmp":  domain.MediaKindBMP,
	"tiff": domain.MediaKindTIFF,
}

// Formats every extraction backend accepts as-is. Others are re-encoded to JPEG.
var passthroughKinds = map[string]bool{
	domain.MediaKindJPEG: true,
	domain.MediaKindPNG:  true,
	domain.MediaKindWebP: true,
}

// RasterOptions controls PDF rendering and re-encoding.
type RasterOptions struct {
	Scale   float64
	Quality int
	Timeout time.Duration
}

// DefaultRasterOptions renders at 2x (144 DPI), JPEG quality 90, 30s per render.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{Scale: 2.0, Quality: 90, Timeout: 30 * time.Second}
}

// RasterNormalizer converts PDFs and images into the canonical image of a run
type RasterNormalizer struct {
	opts   RasterOptions
	logger domain.Logger
}

// NewRasterNormalizer creates a new normalizer
func NewRasterNormalizer(opts RasterOptions, logger domain.Logger) *RasterNormalizer {
	def := DefaultRasterOptions()
	if opts.Scale <= 0 {
		opts.Scale = def.Scale
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	return &RasterNormalizer{opts: opts, logger: logger}
}

// Normalize returns exactly one canonical image for the document.
func (n *RasterNormalizer) Normalize(ctx context.Context, doc *domain.InputDocument) (*domain.CanonicalImage, error) {
	kind := domain.NormalizeMediaKind(doc.MediaKind)

	switch {
	case kind == domain.MediaKindPDF:
		if len(doc.Data) == 0 {
			return nil, domain.NewPipelineError(domain.KindDecodeError, "document is empty", nil)
		}
		return n.rasterizePDF(ctx, doc.Data)
	case isSupportedImageKind(kind):
		if len(doc.Data) == 0 {
			return nil, domain.NewPipelineError(domain.KindDecodeError, "image is empty", nil)
		}
		return n.normalizeImage(kind, doc.Data)
	default:
		return nil, domain.NewPipelineError(domain.KindUnsupportedFormat,
			fmt.Sprintf("media kind %q is not supported", doc.MediaKind), nil)
	}
}

func isSupportedImageKind(kind string) bool {
	for _, k := range imageFormats {
		if k == kind {
			return true
		}
	}
	return false
}

// normalizeImage checks the declared kind against the real signature and passes
// the bytes through, re-encoding formats not every backend accepts.
func (n *RasterNormalizer) normalizeImage(declared string, data []byte) (*domain.CanonicalImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindDecodeError, "image content could not be decoded", err)
	}
	actual, ok := imageFormats[format]
	if !ok {
		return nil, domain.NewPipelineError(domain.KindDecodeError,
			fmt.Sprintf("image format %q is not supported", format), nil)
	}
	if actual != declared {
		return nil, domain.NewPipelineError(domain.KindDecodeError,
			fmt.Sprintf("declared %s but content is %s", declared, actual), nil)
	}

	if passthroughKinds[actual] {
		return &domain.CanonicalImage{
			Data:     data,
			MIMEType: actual,
			Width:    cfg.Width,
			Height:   cfg.Height,
		}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindDecodeError, "image content could not be decoded", err)
	}
	encoded, err := n.encodeJPEG(img)
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindDecodeError, "image could not be re-encoded", err)
	}
	n.logger.Debug("Re-encoded image to JPEG", "from", actual, "bytes_in", len(data), "bytes_out", len(encoded))

	b := img.Bounds()
	return &domain.CanonicalImage{
		Data:     encoded,
		MIMEType: domain.MediaKindJPEG,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

type renderResult struct {
	image *domain.CanonicalImage
	err   error
}

// rasterizePDF renders page 1. The render goroutine owns the document and closes
// it when done, so an abandoned render still releases MuPDF memory.
func (n *RasterNormalizer) rasterizePDF(ctx context.Context, data []byte) (*domain.CanonicalImage, error) {
	if !hasPDFSignature(data) {
		return nil, domain.NewPipelineError(domain.KindDecodeError, "content is not a PDF document", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPipelineError(domain.KindRasterizationError, "page render cancelled", err)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindDecodeError, "failed to open PDF", err)
	}

	pages := doc.NumPage()
	if pages == 0 {
		doc.Close()
		return nil, domain.NewPipelineError(domain.KindDecodeError, "PDF has no pages", nil)
	}
	if pages > 1 {
		n.logger.Debug("PDF has multiple pages; rendering first page only", "pages", pages)
	}
	// A page tree pointing at a missing or truncated page object opens fine but
	// cannot be loaded.
	if _, err := doc.Bound(0); err != nil {
		doc.Close()
		return nil, domain.NewPipelineError(domain.KindDecodeError, "failed to read page 1", err)
	}

	resultCh := make(chan renderResult, 1)
	go func() {
		defer doc.Close()
		img, err := n.renderFirstPage(doc)
		resultCh <- renderResult{image: img, err: err}
	}()

	timer := time.NewTimer(n.opts.Timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		return res.image, res.err
	case <-timer.C:
		n.logger.Warn("PDF render timeout", "timeout", n.opts.Timeout.String())
		return nil, domain.NewPipelineError(domain.KindRasterizationError,
			fmt.Sprintf("page render did not finish within %v", n.opts.Timeout), nil)
	case <-ctx.Done():
		return nil, domain.NewPipelineError(domain.KindRasterizationError, "page render cancelled", ctx.Err())
	}
}

func (n *RasterNormalizer) renderFirstPage(doc *fitz.Document) (*domain.CanonicalImage, error) {
	dpi := 72 * n.opts.Scale
	rgba, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindRasterizationError, "failed to render page 1", err)
	}
	b := rgba.Bounds()
	if b.Empty() {
		return nil, domain.NewPipelineError(domain.KindRasterizationError, "page 1 rendered empty", nil)
	}

	encoded, err := n.encodeJPEG(rgba)
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindRasterizationError, "failed to encode page 1", err)
	}
	n.logger.Debug("Rendered PDF page", "dpi", dpi, "width", b.Dx(), "height", b.Dy(), "bytes", len(encoded))

	return &domain.CanonicalImage{
		Data:     encoded,
		MIMEType: domain.MediaKindJPEG,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

func (n *RasterNormalizer) encodeJPEG(img image.Image) ([]byte, error) {
	// JPEG has no alpha channel; flatten paletted and transparent sources onto white.
	if o, ok := img.(interface{ Opaque() bool }); !ok || !o.Opaque() {
		flat := image.NewRGBA(img.Bounds())
		draw.Draw(flat, flat.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)
		img = flat
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.opts.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hasPDFSignature(data []byte) bool {
	window := data
	if len(window) > pdfSignatureWindow {
		window = window[:pdfSignatureWindow]
	}
	return bytes.Contains(window, []byte("%PDF-"))
}
