// Package api exposes the HTTP interface for the favicon harvester service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/batch"
	"github.com/mchale/favicon-harvester/internal/config"
	"github.com/mchale/favicon-harvester/internal/favicon"
	"github.com/mchale/favicon-harvester/internal/input"
	"github.com/mchale/favicon-harvester/internal/output"
)

const enqueueTimeout = 5 * time.Second

// Enqueuer submits batch work items for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, item batch.Item) error
}

// Server wires HTTP handlers to the batch store and queue.
type Server struct {
	router   chi.Router
	store    batch.Store
	enqueuer Enqueuer
	idGen    batch.IDGenerator
	clock    favicon.Clock
	broker   *EventBroker
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The gatherer
// backs /metrics; broker may be nil to disable the SSE event stream.
func NewServer(
	store batch.Store,
	enqueuer Enqueuer,
	idGen batch.IDGenerator,
	clock favicon.Clock,
	broker *EventBroker,
	gatherer prometheus.Gatherer,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		enqueuer: enqueuer,
		idGen:    idGen,
		clock:    clock,
		broker:   broker,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.submitBatch)
			r.Route("/{batch_id}", func(r chi.Router) {
				r.Get("/", s.getBatch)
				r.Get("/result", s.getBatchResult)
				r.Get("/events", s.streamBatchEvents)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitBatchRequest struct {
	Domains []string `json:"domains"`
}

// submitBatch accepts either a JSON body {"domains": [...]} or a raw
// domain list (text/plain or text/csv) and queues it for resolution.
func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	records, err := s.decodeRecords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "at least one domain required")
		return
	}

	batchID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate batch id failed")
		return
	}
	now := s.clock.Now()
	b := batch.Batch{
		ID:        batchID,
		Status:    batch.StatusQueued,
		Total:     len(records),
		Submitted: now,
	}
	if err := s.store.CreateBatch(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "create batch failed")
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	item := batch.Item{
		BatchID:   batchID,
		Records:   records,
		Submitted: now.Unix(),
	}
	if err := s.enqueuer.Enqueue(queueCtx, item); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "enqueue batch failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batchID,
		"total":    len(records),
	})
}

func (s *Server) decodeRecords(r *http.Request) ([]favicon.DomainRecord, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || ct == "application/json" || ct == "application/json; charset=utf-8" {
		var req submitBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		records := make([]favicon.DomainRecord, 0, len(req.Domains))
		for i, raw := range req.Domains {
			domain, err := input.CleanDomain(raw)
			if err != nil {
				return nil, fmt.Errorf("domain %d: %w", i+1, err)
			}
			records = append(records, favicon.DomainRecord{Rank: i + 1, Domain: domain})
		}
		return records, nil
	}
	records, err := input.ParseDomains(r.Body)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	b, err := s.store.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		s.logger.Error("get batch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": b})
}

func (s *Server) getBatchResult(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	b, err := s.store.GetBatch(r.Context(), batchID)
	if err != nil {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	if b.Status != batch.StatusSucceeded && b.Status != batch.StatusFailed {
		writeError(w, http.StatusConflict, "batch still running")
		return
	}
	results, err := s.store.ListResults(r.Context(), batchID)
	if err != nil {
		s.logger.Error("list results failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", batchID+".csv"))
	if err := output.WriteCSV(w, results); err != nil {
		s.logger.Error("write result csv failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
