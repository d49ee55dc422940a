package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toricodesthings/document-verification-service/internal/export"
	"github.com/toricodesthings/document-verification-service/internal/fields"
	"github.com/toricodesthings/document-verification-service/internal/ingest"
	"github.com/toricodesthings/document-verification-service/internal/quality"
	"github.com/toricodesthings/document-verification-service/internal/types"
	"github.com/toricodesthings/document-verification-service/internal/verify"
)

const (
	multipartMemory = 8 << 20
	failedMessage   = "Failed to verify document."
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// pipeline runs one stored PDF through decoding, verification and response
// assembly.
type pipeline struct {
	loader   *ingest.Loader
	verifier *verify.Service
	registry *fields.Registry
	logger   *slog.Logger
	minWords int
}

func (p *pipeline) run(ctx context.Context, pdfPath, workDir string, req verify.Request, withImages bool) (types.VerifyResponse, error) {
	id := uuid.NewString()
	log := p.logger.With("verification_id", id)
	log.Info("verify.start", "document_type", req.DocumentType)

	if err := renderSem.Acquire(ctx, 1); err != nil {
		return types.VerifyResponse{}, fmt.Errorf("waiting for renderer: %w", err)
	}
	doc, err := p.loader.Load(ctx, pdfPath, workDir, ingest.Options{RenderImages: withImages})
	renderSem.Release(1)
	if err != nil {
		return types.VerifyResponse{}, err
	}

	res, err := p.verifier.Verify(ctx, req, doc.Pages)
	if err != nil {
		return types.VerifyResponse{}, err
	}

	images, err := encodeImages(doc.Images)
	if err != nil {
		return types.VerifyResponse{}, err
	}

	pages := make([]types.PageResult, len(res.Pages))
	for i, pt := range res.Pages {
		d := quality.Score(pt.Text, p.minWords)
		if d.LowQuality && pt.Text != "" {
			log.Warn("verify.page.low_quality", "page", pt.Page, "quality", d.Quality, "reasons", d.Reasons)
		}
		pages[i] = types.PageResult{
			Page:       pt.Page,
			Text:       pt.Text,
			HTML:       pt.HTML,
			WordCount:  d.WordCount,
			Quality:    d.Quality,
			LowQuality: d.LowQuality,
			Reasons:    d.Reasons,
		}
	}

	log.Info("verify.complete", "status", res.Report.Status, "text_source", doc.TextSource)
	return types.VerifyResponse{
		Status:         res.Report.Status,
		VerificationID: id,
		DocumentType:   res.DocumentType,
		Details:        res.Report.Details,
		Analysis:       res.Report.Analysis,
		Images:         images,
		ExtractedText:  pages,
		TextSource:     doc.TextSource,
	}, nil
}

func encodeImages(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read page image: %w", err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(b))
	}
	return out, nil
}

// ---------- Handlers ----------

func handleHealth(w http.ResponseWriter, r *http.Request, p *pipeline) {
	_, active := metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":              status,
		"active":              active,
		"version":             "1.0.0",
		"documentTypes":       p.registry.Types(),
		"defaultDocumentType": p.registry.DefaultType(),
	})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active := metrics.get()
	verified, failed := metrics.outcomes()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"verified":       verified,
		"failed":         failed,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

func handleVerifyDocument(w http.ResponseWriter, r *http.Request, p *pipeline) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeErr(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("Document exceeds %dMB limit", cfg.MaxUploadBytes/(1<<20)))
		case errors.Is(err, http.ErrNotMultipart):
			writeErr(w, http.StatusBadRequest, "no_document", "No document uploaded.")
		default:
			writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("document")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "no_document", "No document uploaded.")
		return
	}
	defer file.Close()

	docType, userFields := formFields(r.MultipartForm)
	if err := types.ValidateForm(docType, userFields); err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cfg.VerifyTimeout)
	defer cancel()

	workDir, cleanup, err := newWorkDir()
	if err != nil {
		writeFailure(w, err)
		return
	}
	defer cleanup()

	pdfPath, err := saveUpload(file, workDir)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_document", sanitizeError(err))
		return
	}

	xlsx := wantsXLSX(r)
	resp, err := p.run(ctx, pdfPath, workDir, verify.Request{DocumentType: docType, Fields: userFields}, !xlsx)
	if err != nil {
		writeFailure(w, err)
		return
	}
	respond(w, resp, xlsx)
}

func handleVerifyURL(w http.ResponseWriter, r *http.Request, p *pipeline) {
	body, err := io.ReadAll(io.LimitReader(r.Body, cfg.MaxJSONBodyBytes+1))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	if int64(len(body)) > cfg.MaxJSONBodyBytes {
		writeErr(w, http.StatusRequestEntityTooLarge, "too_large", "Request body too large")
		return
	}

	req, err := types.DecodeVerifyURLRequest(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}
	if err := validatePresignedURL(req.PresignedURL); err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cfg.VerifyTimeout)
	defer cancel()

	workDir, cleanup, err := newWorkDir()
	if err != nil {
		writeFailure(w, err)
		return
	}
	defer cleanup()

	pdfPath, err := downloadPDF(ctx, req.PresignedURL, workDir, cfg.MaxUploadBytes, cfg.DownloadTimeout)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "download_failed", sanitizeError(err))
		return
	}

	xlsx := wantsXLSX(r)
	resp, err := p.run(ctx, pdfPath, workDir, verify.Request{DocumentType: req.DocumentType, Fields: req.Fields}, !xlsx)
	if err != nil {
		writeFailure(w, err)
		return
	}
	respond(w, resp, xlsx)
}

// formFields splits multipart values into the document type and the user's
// field values. The first value of each key wins.
func formFields(form *multipart.Form) (string, map[string]string) {
	docType := ""
	out := make(map[string]string)
	for k, vs := range form.Value {
		if len(vs) == 0 {
			continue
		}
		switch k {
		case "docType", "documentType":
			if docType == "" {
				docType = strings.TrimSpace(vs[0])
			}
		default:
			out[k] = vs[0]
		}
	}
	return docType, out
}

func wantsXLSX(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "xlsx")
}

func respond(w http.ResponseWriter, resp types.VerifyResponse, xlsx bool) {
	if !xlsx {
		metrics.recordOutcome(true)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	report := verify.Report{Status: resp.Status, Details: resp.Details, Analysis: resp.Analysis}
	data, err := export.ReportXLSX(report, export.Meta{
		VerificationID: resp.VerificationID,
		DocumentType:   resp.DocumentType,
		GeneratedAt:    time.Now(),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	metrics.recordOutcome(true)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="verification-%s.xlsx"`, resp.VerificationID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeFailure maps a pipeline error to the failure response.
func writeFailure(w http.ResponseWriter, err error) {
	metrics.recordOutcome(false)

	status, code := http.StatusInternalServerError, "verification_failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		status, code = 499, "cancelled"
	case errors.Is(err, verify.ErrNoTextLayer):
		code = "no_text_layer"
	case errors.Is(err, ingest.ErrNoPageImages):
		code = "render_failed"
	}
	logger.Error("verify.failed", "code", code, "error", sanitizeError(err))

	writeJSON(w, status, types.ErrorResponse{
		Success: false,
		Error:   failedMessage,
		Code:    code,
		Details: sanitizeError(err),
	})
}
