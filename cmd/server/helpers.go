package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/toricodesthings/document-verification-service/internal/types"
)

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func validatePresignedURL(raw string) error {
	url := strings.TrimSpace(raw)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return errors.New("presignedUrl must be http/https")
	}
	maxLen := cfg.MaxURLLen
	if maxLen <= 0 {
		maxLen = 2048
	}
	if len(url) > maxLen {
		return errors.New("presignedUrl too long")
	}
	return nil
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// newWorkDir creates the per-request scratch directory. cleanup removes it
// with everything written inside.
func newWorkDir() (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", "doc-verifier-*")
	if err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// saveUpload copies an uploaded document into workDir and checks it is a PDF.
func saveUpload(src io.Reader, workDir string) (string, error) {
	outPath := filepath.Join(workDir, "doc.pdf")
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if err := validatePDFMagic(outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// validatePDFMagic checks that a file starts with %PDF. Storage providers
// answer expired links with XML or HTML bodies that would otherwise reach the
// PDF tools.
func validatePDFMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer f.Close()

	header := make([]byte, 5)
	n, err := io.ReadFull(f, header)
	if err != nil || n < 5 {
		return errors.New("file is too small to be a valid PDF")
	}
	if string(header[:4]) != "%PDF" {
		return fmt.Errorf("file is not a PDF (starts with %q)", string(header[:n]))
	}
	return nil
}

func downloadPDF(ctx context.Context, url, workDir string, maxBytes int64, timeout time.Duration) (string, error) {
	outPath := filepath.Join(workDir, "doc.pdf")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	req.Header.Set("User-Agent", "doc-verifier/1.0")

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "pdf") && !strings.Contains(ct, "octet-stream") {
		return "", fmt.Errorf("invalid content-type: %s", ct)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	lr := &io.LimitedReader{R: resp.Body, N: maxBytes + 1}
	n, err := io.Copy(f, lr)
	if err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if n > maxBytes {
		return "", fmt.Errorf("PDF exceeds %dMB limit", maxBytes/(1<<20))
	}

	if err := validatePDFMagic(outPath); err != nil {
		return "", err
	}
	return outPath, nil
}
