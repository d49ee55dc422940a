package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/toricodesthings/document-verification-service/internal/extractor"
	"github.com/toricodesthings/document-verification-service/internal/layout"
)

// ErrNoPageImages is returned when the renderer produced no page images.
var ErrNoPageImages = errors.New("CRITICAL: PDF to image conversion failed. Check 'poppler' installation.")

const (
	SourceTextLayer = "text-layer"
	SourcePdftotext = "pdftotext"
	SourceNone      = "none"
)

// Renderer is the poppler surface the loader needs.
type Renderer interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
	TextForPage(ctx context.Context, pdfPath string, page int) (string, error)
	RenderPages(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

// TextLayerFunc decodes positioned tokens from a PDF.
type TextLayerFunc func(ctx context.Context, pdfPath string) ([]layout.Page, error)

// Document is everything decoded from one uploaded PDF.
type Document struct {
	Pages      []layout.Page
	Images     []string
	TextSource string
}

type Options struct {
	RenderImages bool
}

type Loader struct {
	renderer  Renderer
	textLayer TextLayerFunc
	logger    *slog.Logger
}

func NewLoader(renderer Renderer, textLayer TextLayerFunc, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if textLayer == nil {
		textLayer = extractor.ReadTextLayer
	}
	return &Loader{renderer: renderer, textLayer: textLayer, logger: logger}
}

// Load renders page images into workDir and decodes the text layer in
// parallel. A render failure fails the load; a text layer that cannot be read
// by either decoder yields pages without tokens.
func (l *Loader) Load(ctx context.Context, pdfPath, workDir string, opts Options) (Document, error) {
	var (
		images []string
		pages  []layout.Page
		source string
	)

	g, gctx := errgroup.WithContext(ctx)
	if opts.RenderImages {
		g.Go(func() error {
			imgs, err := l.renderer.RenderPages(gctx, pdfPath, workDir)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				l.logger.Error("ingest.render.failed", "error", err)
				return fmt.Errorf("%w: %v", ErrNoPageImages, err)
			}
			if len(imgs) == 0 {
				l.logger.Error("ingest.render.empty")
				return ErrNoPageImages
			}
			images = imgs
			return nil
		})
	}
	g.Go(func() error {
		var err error
		pages, source, err = l.readText(gctx, pdfPath)
		return err
	})

	if err := g.Wait(); err != nil {
		return Document{}, err
	}
	l.logger.Debug("ingest.done", "pages", len(pages), "images", len(images), "text_source", source)
	return Document{Pages: pages, Images: images, TextSource: source}, nil
}

func (l *Loader) readText(ctx context.Context, pdfPath string) ([]layout.Page, string, error) {
	pages, err := l.textLayer(ctx, pdfPath)
	if err == nil && hasTokens(pages) {
		return pages, SourceTextLayer, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", ctxErr
	}
	if err != nil {
		l.logger.Warn("ingest.textlayer.failed", "error", err)
	}

	fallback, ferr := l.pdftotextPages(ctx, pdfPath)
	if ferr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		l.logger.Warn("ingest.pdftotext.failed", "error", ferr)
		return pages, SourceNone, nil
	}
	if hasTokens(fallback) {
		return fallback, SourcePdftotext, nil
	}
	if len(pages) == 0 {
		pages = fallback
	}
	return pages, SourceNone, nil
}

func (l *Loader) pdftotextPages(ctx context.Context, pdfPath string) ([]layout.Page, error) {
	n, err := l.renderer.PageCount(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("page count %d", n)
	}

	pages := make([]layout.Page, 0, n)
	for p := 1; p <= n; p++ {
		raw, err := l.renderer.TextForPage(ctx, pdfPath, p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.logger.Warn("ingest.pdftotext.page_failed", "page", p, "error", err)
			raw = ""
		}
		raw = strings.ReplaceAll(raw, "\r\n", "\n")
		pages = append(pages, layout.Page{Number: p, Tokens: extractor.TokensFromLayoutText(raw, p)})
	}
	return pages, nil
}

func hasTokens(pages []layout.Page) bool {
	for _, p := range pages {
		if len(p.Tokens) > 0 {
			return true
		}
	}
	return false
}
