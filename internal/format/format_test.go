package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageHTML(t *testing.T) {
	assert.Equal(t, "", PageHTML(""))

	out := PageHTML("Rent <Rs> 15000\nTenant & Co")
	assert.True(t, strings.HasPrefix(out, `<div style="background:#1a2036;`))
	assert.True(t, strings.HasSuffix(out, "</div>"))
	assert.Contains(t, out, "Rent &lt;Rs&gt; 15000\nTenant &amp; Co")
}

func TestCombine(t *testing.T) {
	assert.Equal(t, "a\nb", Combine([]string{" a ", "", "  ", "b"}, "\n"))
	assert.Equal(t, "", Combine(nil, "\n"))
}
