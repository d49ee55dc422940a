package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	c := Load()

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 0.7, c.MatchThreshold)
	assert.Equal(t, 0.5, c.CandidateThreshold)
	assert.Equal(t, int64(25<<20), c.MaxUploadBytes)
	assert.Equal(t, 120*time.Second, c.VerifyTimeout)
	require.NoError(t, c.Validate())
}

func TestLoadFromEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("RENDER_DPI=200\nMATCH_THRESHOLD=0.8\nPORT=9999\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("RENDER_DPI")
		os.Unsetenv("MATCH_THRESHOLD")
	})
	t.Setenv("PORT", "7000")
	t.Setenv("VERIFY_TIMEOUT", "45s")
	t.Setenv("MAX_PAGE_WORKERS", "-3")

	c := Load()
	assert.Equal(t, "7000", c.Port, "environment wins over .env")
	assert.Equal(t, 200, c.RenderDPI)
	assert.Equal(t, 0.8, c.MatchThreshold)
	assert.Equal(t, 45*time.Second, c.VerifyTimeout)
	assert.Equal(t, 8, c.MaxPageWorkers, "invalid values fall back")
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base := Load()

	c := base
	c.InternalSharedSecret = "short"
	assert.Error(t, c.Validate())

	c = base
	c.InternalSharedSecret = strings.Repeat("s", 32)
	assert.NoError(t, c.Validate())

	c = base
	c.LogFormat = "xml"
	assert.Error(t, c.Validate())

	c = base
	c.LogLevel = "loud"
	assert.Error(t, c.Validate())

	c = base
	c.MatchThreshold = 1.5
	assert.Error(t, c.Validate())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := Config{LogLevel: "warn", LogFormat: "json"}
	l := c.Logger(&buf)

	l.Info("dropped")
	l.Warn("kept", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
}
