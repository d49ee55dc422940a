package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toricodesthings/document-verification-service/internal/config"
	"github.com/toricodesthings/document-verification-service/internal/export"
	"github.com/toricodesthings/document-verification-service/internal/extractor"
	"github.com/toricodesthings/document-verification-service/internal/fields"
	"github.com/toricodesthings/document-verification-service/internal/ingest"
	"github.com/toricodesthings/document-verification-service/internal/layout"
	"github.com/toricodesthings/document-verification-service/internal/similarity"
	"github.com/toricodesthings/document-verification-service/internal/verify"
)

// fieldFlags collects repeated -field key=value pairs.
type fieldFlags map[string]string

func (f fieldFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f fieldFlags) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	f[strings.TrimSpace(k)] = v
	return nil
}

type output struct {
	VerificationID string                    `json:"verificationId"`
	DocumentType   string                    `json:"documentType"`
	Status         string                    `json:"status"`
	Details        []verify.ExtractionResult `json:"details"`
	Analysis       string                    `json:"analysis"`
	TextSource     string                    `json:"textSource"`
	Images         []string                  `json:"images,omitempty"`
	ExtractedText  []layout.PageText         `json:"extractedText,omitempty"`
}

func main() {
	userFields := fieldFlags{}
	var (
		pdfPath  = flag.String("pdf", "", "path to the PDF to verify")
		docType  = flag.String("type", "rental", "document type")
		xlsxPath = flag.String("xlsx", "", "also write the report as XLSX to this path")
		keepDir  = flag.String("images", "", "render page images into this directory")
		withText = flag.Bool("text", false, "include reconstructed page text in the output")
	)
	flag.Var(userFields, "field", "user value as key=value (repeatable), e.g. -field tenantName='Priya Sharma'")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	if *pdfPath == "" {
		fmt.Fprintln(os.Stderr, "usage: verify -pdf lease.pdf [-type rental] [-field key=value ...] [-xlsx out.xlsx] [-images dir]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.VerifyTimeout)
	defer cancel()

	out, report, err := run(ctx, cfg, logger, *pdfPath, *keepDir, verify.Request{DocumentType: *docType, Fields: userFields})
	if err != nil {
		logger.Error("verify.failed", "error", err)
		os.Exit(1)
	}
	if !*withText {
		out.ExtractedText = nil
	}

	if *xlsxPath != "" {
		data, err := export.ReportXLSX(report, export.Meta{
			VerificationID: out.VerificationID,
			DocumentType:   out.DocumentType,
			GeneratedAt:    time.Now(),
		})
		if err == nil {
			err = os.WriteFile(*xlsxPath, data, 0o644)
		}
		if err != nil {
			logger.Error("export.xlsx.failed", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
		logger.Info("export.xlsx.ok", "path", *xlsxPath)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
	if report.Status == verify.StatusFake {
		os.Exit(3)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, pdfPath, imageDir string, req verify.Request) (output, verify.Report, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return output{}, verify.Report{}, err
	}

	opts := fields.Options{CandidateThreshold: cfg.CandidateThreshold}
	var (
		registry *fields.Registry
		err      error
	)
	if cfg.SchemaFile != "" {
		registry, err = fields.LoadRegistryFile(cfg.SchemaFile, opts)
	} else {
		registry, err = fields.DefaultRegistry(opts)
	}
	if err != nil {
		return output{}, verify.Report{}, err
	}

	poppler := extractor.NewPoppler(logger,
		extractor.WithDPI(cfg.RenderDPI),
		extractor.WithTimeouts(cfg.PDFInfoTimeout, cfg.PDFToTextTimeout, cfg.RenderTimeout),
	)
	loader := ingest.NewLoader(poppler, extractor.ReadTextLayer, logger)

	renderImages := imageDir != ""
	if renderImages {
		if err := os.MkdirAll(imageDir, 0o755); err != nil {
			return output{}, verify.Report{}, err
		}
	}
	doc, err := loader.Load(ctx, pdfPath, imageDir, ingest.Options{RenderImages: renderImages})
	if err != nil {
		return output{}, verify.Report{}, err
	}

	svc := verify.NewService(registry,
		verify.WithScorer(similarity.NewScorer(cfg.MatchThreshold)),
		verify.WithPageWorkers(cfg.MaxPageWorkers),
		verify.WithLogger(logger),
	)
	res, err := svc.Verify(ctx, req, doc.Pages)
	if errors.Is(err, verify.ErrNoTextLayer) {
		return output{}, verify.Report{}, fmt.Errorf("%s: %w", pdfPath, err)
	}
	if err != nil {
		return output{}, verify.Report{}, err
	}

	return output{
		VerificationID: uuid.NewString(),
		DocumentType:   res.DocumentType,
		Status:         res.Report.Status,
		Details:        res.Report.Details,
		Analysis:       res.Report.Analysis,
		TextSource:     doc.TextSource,
		Images:         doc.Images,
		ExtractedText:  res.Pages,
	}, res.Report, nil
}
