package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/toricodesthings/document-verification-service/internal/fields"
	"github.com/toricodesthings/document-verification-service/internal/layout"
	"github.com/toricodesthings/document-verification-service/internal/similarity"
)

// ErrNoTextLayer is returned when no page of the document yields any text.
var ErrNoTextLayer = errors.New("CRITICAL: Direct text extraction failed. The PDF likely has no text layer.")

const (
	StatusOriginal = "Original"
	StatusFake     = "Fake"

	// Missing is shown in place of absent user data or document values.
	Missing = "-"
)

type State int

const (
	Received State = iota
	TextReconstructed
	FieldsExtracted
	Scored
	Reported
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case TextReconstructed:
		return "text_reconstructed"
	case FieldsExtracted:
		return "fields_extracted"
	case Scored:
		return "scored"
	case Reported:
		return "reported"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Request carries the claimed document type and the user's values keyed by
// field input key (rentAmount, tenantName, ...).
type Request struct {
	DocumentType string
	Fields       map[string]string
}

type ExtractionResult struct {
	Field            string             `json:"field"`
	UserData         string             `json:"userData"`
	DataFromDocument string             `json:"dataFromDocument"`
	Status           similarity.Verdict `json:"status"`
}

type Report struct {
	Status   string             `json:"status"`
	Details  []ExtractionResult `json:"details"`
	Analysis string             `json:"analysis"`
}

type Result struct {
	Report Report
	// DocumentType is the schema actually applied after fallback.
	DocumentType string
	Pages        []layout.PageText
}

type Service struct {
	registry *fields.Registry
	scorer   similarity.Scorer
	workers  int
	logger   *slog.Logger
}

type Option func(*Service)

func WithScorer(s similarity.Scorer) Option {
	return func(svc *Service) { svc.scorer = s }
}

// WithPageWorkers bounds concurrent page reconstruction.
func WithPageWorkers(n int) Option {
	return func(svc *Service) { svc.workers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

func NewService(registry *fields.Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		scorer:   similarity.NewScorer(similarity.DefaultMatchThreshold),
		workers:  4,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Verify reconstructs page text, extracts the schema's fields, scores them
// against the user's values and builds the report.
func (s *Service) Verify(ctx context.Context, req Request, pages []layout.Page) (Result, error) {
	start := time.Now()
	state := Received
	advance := func(next State) {
		s.logger.Debug("verify.state", "from", state.String(), "to", next.String())
		state = next
	}

	texts, err := layout.ReconstructAll(ctx, pages, s.workers)
	if err != nil {
		return Result{}, err
	}
	fullText := layout.FullText(texts)
	if strings.TrimSpace(fullText) == "" {
		s.logger.Warn("verify.no_text_layer", "pages", len(pages))
		return Result{}, ErrNoTextLayer
	}
	advance(TextReconstructed)

	schema, known := s.registry.Lookup(req.DocumentType)
	if !known {
		s.logger.Info("verify.schema.fallback", "requested", req.DocumentType, "using", schema.Type)
	}

	extracted := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		v, _ := f.Extract(fullText, userValue(req, f.InputKey))
		extracted[i] = v
	}
	advance(FieldsExtracted)

	details := make([]ExtractionResult, len(schema.Fields))
	failed := false
	for i, f := range schema.Fields {
		user := userValue(req, f.InputKey)
		verdict := s.scorer.Score(user, extracted[i])
		if verdict.Fails(user != "") {
			failed = true
		}
		details[i] = ExtractionResult{
			Field:            f.Name,
			UserData:         orMissing(user),
			DataFromDocument: orMissing(extracted[i]),
			Status:           verdict,
		}
	}
	advance(Scored)

	status := StatusOriginal
	if failed {
		status = StatusFake
	}
	report := Report{
		Status:   status,
		Details:  details,
		Analysis: Narrative(req.DocumentType, details),
	}
	advance(Reported)

	s.logger.Info("verify.done",
		"document_type", schema.Type,
		"status", status,
		"fields", len(details),
		"pages", len(texts),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Result{Report: report, DocumentType: schema.Type, Pages: texts}, nil
}

func userValue(req Request, key string) string {
	return strings.TrimSpace(req.Fields[key])
}

func orMissing(s string) string {
	if s == "" {
		return Missing
	}
	return s
}
