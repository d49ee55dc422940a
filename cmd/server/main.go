package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/document-verification-service/internal/config"
	"github.com/toricodesthings/document-verification-service/internal/extractor"
	"github.com/toricodesthings/document-verification-service/internal/fields"
	"github.com/toricodesthings/document-verification-service/internal/ingest"
	"github.com/toricodesthings/document-verification-service/internal/similarity"
	"github.com/toricodesthings/document-verification-service/internal/verify"
)

var (
	cfg    config.Config
	logger = slog.Default()

	requestSem *semaphore.Weighted
	renderSem  *semaphore.Weighted

	// Per-IP rate limiters
	limiters sync.Map

	metrics = &serverMetrics{}
)

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
	verified      int64
	failed        int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}

func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}

func (m *serverMetrics) recordOutcome(ok bool) {
	m.mu.Lock()
	if ok {
		m.verified++
	} else {
		m.failed++
	}
	m.mu.Unlock()
}

func (m *serverMetrics) get() (total, active int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs
}

func (m *serverMetrics) outcomes() (verified, failed int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verified, m.failed
}

func main() {
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger = cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	requestSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	renderSem = semaphore.NewWeighted(cfg.MaxRenderConcurrent)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		logger.Error("server.init.failed", "error", err)
		os.Exit(1)
	}

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(p),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	if cfg.InternalSharedSecret == "" {
		logger.Warn("server.auth.disabled", "reason", "INTERNAL_SHARED_SECRET not set")
	}

	go cleanupRateLimiters()

	logger.Info("server.listening",
		"addr", srv.Addr,
		"max_concurrent", cfg.MaxConcurrentRequests,
		"max_render", cfg.MaxRenderConcurrent,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server.listen.failed", "error", err)
		os.Exit(1)
	}
}

func newPipeline(c config.Config, l *slog.Logger) (*pipeline, error) {
	opts := fields.Options{CandidateThreshold: c.CandidateThreshold}
	var (
		registry *fields.Registry
		err      error
	)
	if c.SchemaFile != "" {
		registry, err = fields.LoadRegistryFile(c.SchemaFile, opts)
	} else {
		registry, err = fields.DefaultRegistry(opts)
	}
	if err != nil {
		return nil, err
	}

	poppler := extractor.NewPoppler(l,
		extractor.WithDPI(c.RenderDPI),
		extractor.WithTimeouts(c.PDFInfoTimeout, c.PDFToTextTimeout, c.RenderTimeout),
	)
	return &pipeline{
		loader: ingest.NewLoader(poppler, extractor.ReadTextLayer, l),
		verifier: verify.NewService(registry,
			verify.WithScorer(similarity.NewScorer(c.MatchThreshold)),
			verify.WithPageWorkers(c.MaxPageWorkers),
			verify.WithLogger(l),
		),
		registry: registry,
		logger:   l,
		minWords: c.MinPageWords,
	}, nil
}

func newHandler(p *pipeline) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(w, r, p)
	})
	mux.HandleFunc("/metrics", withInternalAuth(handleMetrics))

	mux.HandleFunc("/api/verify-document",
		withInternalAuth(
			withRateLimit(
				withMethod("POST",
					withConcurrencyLimit(func(w http.ResponseWriter, r *http.Request) {
						handleVerifyDocument(w, r, p)
					})))))

	mux.HandleFunc("/api/verify-url",
		withInternalAuth(
			withRateLimit(
				withMethod("POST",
					withConcurrencyLimit(func(w http.ResponseWriter, r *http.Request) {
						handleVerifyURL(w, r, p)
					})))))

	return withLogging(withRecovery(withCORS(mux)))
}

func cleanupRateLimiters() {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active := metrics.get()
		logger.Info("server.stats",
			"active", active,
			"total", total,
			"goroutines", runtime.NumGoroutine(),
			"mem_mb", m.Alloc/(1<<20),
		)

		limiters.Range(func(k, _ any) bool {
			limiters.Delete(k)
			return true
		})
	}
}
