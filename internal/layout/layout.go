package layout

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/toricodesthings/document-verification-service/internal/format"
)

// Token is one positioned fragment of a page's text layer. Y grows upward.
type Token struct {
	Text string
	X    float64
	Y    float64
	Page int
}

type Page struct {
	Number int
	Tokens []Token
}

// PageText is the reading-order text of one page plus its display HTML.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
	HTML string `json:"html"`
}

var invisibleChars = regexp.MustCompile("[\u200B-\u200D\uFEFF\u00AD\u2060]")

// Reconstruct rebuilds visual lines from positioned tokens. Tokens sharing a
// rounded y form a line; lines run top to bottom and tokens left to right.
func Reconstruct(p Page) PageText {
	lines := make(map[int][]Token)
	for _, t := range p.Tokens {
		s := strings.TrimSpace(invisibleChars.ReplaceAllString(t.Text, ""))
		if s == "" {
			continue
		}
		t.Text = s
		key := int(math.Round(t.Y))
		lines[key] = append(lines[key], t)
	}
	if len(lines) == 0 {
		return PageText{Page: p.Number}
	}

	keys := make([]int, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	var b strings.Builder
	for i, k := range keys {
		row := lines[k]
		sort.SliceStable(row, func(a, c int) bool { return row[a].X < row[c].X })
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, t := range row {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t.Text)
		}
	}

	text := b.String()
	return PageText{Page: p.Number, Text: text, HTML: format.PageHTML(text)}
}

// ReconstructAll reconstructs pages concurrently, at most workers at a time
// (unbounded when workers <= 0). The result is ordered by page number.
func ReconstructAll(ctx context.Context, pages []Page, workers int) ([]PageText, error) {
	out := make([]PageText, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = Reconstruct(pages[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(a, c int) bool { return out[a].Page < out[c].Page })
	return out, nil
}

// FullText joins page texts in page order with line breaks.
func FullText(pages []PageText) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return format.Combine(texts, "\n")
}
