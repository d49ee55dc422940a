package format

import (
	"html"
	"strings"
)

const pageStyle = "background:#1a2036;color:#ffffff;padding:20px;border-radius:10px;" +
	"font-family:monospace;white-space:pre-wrap;line-height:1.6;margin-bottom:16px"

// PageHTML wraps reconstructed page text in the styled container the client
// renders as-is. Empty text yields an empty string.
func PageHTML(text string) string {
	if text == "" {
		return ""
	}
	return `<div style="` + pageStyle + `">` + html.EscapeString(text) + `</div>`
}

// Combine joins page texts in order, skipping pages with no text.
func Combine(texts []string, sep string) string {
	var b strings.Builder
	first := true
	for _, txt := range texts {
		txt = strings.TrimSpace(txt)
		if txt == "" {
			continue
		}
		if !first {
			b.WriteString(sep)
		}
		first = false
		b.WriteString(txt)
	}
	return b.String()
}
