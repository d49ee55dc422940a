package extractor

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/toricodesthings/document-verification-service/internal/layout"
)

const (
	// A horizontal gap wider than this fraction of the font size starts a new word.
	wordGapFactor = 0.3
	// Baselines closer than this are treated as the same line while merging.
	baselineTolerance = 1.0
	defaultFontSize   = 10.0
)

// ReadTextLayer decodes the embedded text layer of every page into positioned
// word tokens. Pages without content yield an empty token slice.
func ReadTextLayer(ctx context.Context, pdfPath string) (pages []layout.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("text layer: malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("text layer: open: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]layout.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := layout.Page{Number: i}
		if p := r.Page(i); !p.V.IsNull() {
			page.Tokens = mergeGlyphs(p.Content().Text, i)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// mergeGlyphs joins the per-glyph runs the parser emits into word tokens.
func mergeGlyphs(glyphs []pdf.Text, page int) []layout.Token {
	var (
		out  []layout.Token
		word strings.Builder
		x, y float64
		end  float64
	)
	flush := func() {
		if word.Len() > 0 {
			out = append(out, layout.Token{Text: word.String(), X: x, Y: y, Page: page})
			word.Reset()
		}
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		size := g.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if word.Len() > 0 {
			gap := g.X - end
			if math.Abs(g.Y-y) > baselineTolerance || gap > wordGapFactor*size || gap < -size {
				flush()
			}
		}
		if word.Len() == 0 {
			x, y = g.X, g.Y
		}
		word.WriteString(g.S)

		w := g.W
		if w <= 0 {
			w = 0.5 * size * float64(utf8.RuneCountInString(g.S))
		}
		end = g.X + w
	}
	flush()
	return out
}

var nonSpaceRun = regexp.MustCompile(`\S+`)

// TokensFromLayoutText turns pdftotext -layout output into tokens: x is the
// rune column and y the negated line index, so earlier lines sort first.
func TokensFromLayoutText(text string, page int) []layout.Token {
	var out []layout.Token
	for lineNo, line := range strings.Split(text, "\n") {
		for _, loc := range nonSpaceRun.FindAllStringIndex(line, -1) {
			out = append(out, layout.Token{
				Text: line[loc[0]:loc[1]],
				X:    float64(utf8.RuneCountInString(line[:loc[0]])),
				Y:    -float64(lineNo),
				Page: page,
			})
		}
	}
	return out
}
