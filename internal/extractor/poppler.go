package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	pagesLine    = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)
	renderedPage = regexp.MustCompile(`-(\d+)\.png$`)
)

// Poppler drives the poppler-utils binaries: pdfinfo for page counts,
// pdftotext for per-page layout text and pdftoppm for page images.
type Poppler struct {
	runner Runner
	logger *slog.Logger

	DPI              int
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration
	RenderTimeout    time.Duration
}

type PopplerOption func(*Poppler)

func WithRunner(r Runner) PopplerOption {
	return func(p *Poppler) { p.runner = r }
}

func WithDPI(dpi int) PopplerOption {
	return func(p *Poppler) {
		if dpi > 0 {
			p.DPI = dpi
		}
	}
}

func WithTimeouts(pdfinfo, pdftotext, render time.Duration) PopplerOption {
	return func(p *Poppler) {
		p.PDFInfoTimeout = pdfinfo
		p.PDFToTextTimeout = pdftotext
		p.RenderTimeout = render
	}
}

func NewPoppler(logger *slog.Logger, opts ...PopplerOption) *Poppler {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poppler{
		logger:           logger,
		runner:           execRunner{logger: logger},
		DPI:              150,
		PDFInfoTimeout:   10 * time.Second,
		PDFToTextTimeout: 20 * time.Second,
		RenderTimeout:    60 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (p *Poppler) PageCount(ctx context.Context, pdfPath string) (int, error) {
	ctx, cancel := withTimeout(ctx, p.PDFInfoTimeout)
	defer cancel()

	out, _, err := p.runner.Run(ctx, "pdfinfo", pdfPath)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	m := pagesLine.FindSubmatch(out)
	if len(m) != 2 {
		return 0, errors.New("pdfinfo: pages not found")
	}
	return strconv.Atoi(string(m[1]))
}

func (p *Poppler) TextForPage(ctx context.Context, pdfPath string, page int) (string, error) {
	ctx, cancel := withTimeout(ctx, p.PDFToTextTimeout)
	defer cancel()

	out, _, err := p.runner.Run(ctx,
		"pdftotext",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-layout",
		"-enc", "UTF-8",
		"-eol", "unix",
		pdfPath,
		"-",
	)
	if err != nil {
		return "", fmt.Errorf("pdftotext page %d: %w", page, err)
	}
	return strings.TrimRight(string(out), "\f\n "), nil
}

// RenderPages rasterizes every page to PNG inside outDir and returns the
// image paths in page order.
func (p *Poppler) RenderPages(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, p.RenderTimeout)
	defer cancel()

	prefix := filepath.Join(outDir, "page")
	_, errb, err := p.runner.Run(ctx, "pdftoppm", "-r", strconv.Itoa(p.DPI), "-png", pdfPath, prefix)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(msg, 256))
		}
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageIndex(matches[i]) < pageIndex(matches[j])
	})
	for _, m := range matches {
		if fi, err := os.Stat(m); err != nil || fi.Size() == 0 {
			return nil, fmt.Errorf("pdftoppm: unreadable output %s", filepath.Base(m))
		}
	}
	p.logger.Debug("extractor.render.done", "pages", len(matches), "dpi", p.DPI)
	return matches, nil
}

func pageIndex(path string) int {
	m := renderedPage.FindStringSubmatch(path)
	if len(m) != 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
