package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/document-verification-service/internal/config"
	"github.com/toricodesthings/document-verification-service/internal/verify"
)

func TestFieldFlags(t *testing.T) {
	f := fieldFlags{}
	require.NoError(t, f.Set("tenantName=Priya Sharma"))
	require.NoError(t, f.Set(" rentAmount =15,000"))
	require.NoError(t, f.Set("propertyLocation=Flat 4B, a=b"))

	assert.Equal(t, fieldFlags{
		"tenantName":       "Priya Sharma",
		"rentAmount":       "15,000",
		"propertyLocation": "Flat 4B, a=b",
	}, f)

	assert.Error(t, f.Set("tenantName"))
	assert.Error(t, f.Set("=value"))
}

func TestRunMissingFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, _, err := run(context.Background(), config.Config{}, logger,
		filepath.Join(t.TempDir(), "absent.pdf"), "", verify.Request{DocumentType: "rental"})
	assert.Error(t, err)
}
