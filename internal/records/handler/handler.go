// Package handler is the thin HTTP layer over the records service. It
// delegates to the service without embedding engine logic so transport
// concerns stay isolated.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cohere/internal/domain"
	"cohere/internal/lifecycle"
	"cohere/internal/platform/metrics"
	"cohere/internal/platform/middleware"
	"cohere/internal/records"
	"cohere/internal/storage"
	domainerrors "cohere/pkg/domain-errors"
)

// Service is the operations surface the handler needs.
type Service interface {
	Merge(ctx context.Context, req records.MergeRequest) (*records.MergeResult, error)
	FindExisting(ctx context.Context, collection string, candidate *domain.Record) (*domain.Record, error)
	SoftDelete(ctx context.Context, collection, id string) (lifecycle.Receipt, error)
	Undo(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string, opts storage.ReadOptions) (*domain.Record, error)
	List(ctx context.Context, collection string, opts storage.ReadOptions) ([]*domain.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: m}
}

// Register mounts the record routes with their middleware stack.
func (h *Handler) Register(r chi.Router) {
	recordRouter := chi.NewRouter()
	recordRouter.Use(middleware.Recovery(h.logger))
	recordRouter.Use(middleware.RequestID)
	recordRouter.Use(middleware.Logger(h.logger))
	recordRouter.Use(middleware.Timeout(30 * time.Second))
	recordRouter.Use(middleware.ContentTypeJSON)
	recordRouter.Use(middleware.LatencyMiddleware(h.metrics))

	recordRouter.Post("/records/{collection}/merge", h.handleMerge)
	recordRouter.Post("/records/{collection}/dedupe", h.handleDedupe)
	recordRouter.Post("/records/{collection}/{id}/soft-delete", h.handleSoftDelete)
	recordRouter.Post("/records/{collection}/{id}/undo", h.handleUndo)
	recordRouter.Get("/records/{collection}/{id}", h.handleGet)
	recordRouter.Get("/records/{collection}", h.handleList)

	r.Mount("/", recordRouter)
}

type mergeRequestBody struct {
	AID   string         `json:"aId"`
	BID   string         `json:"bId"`
	Picks domain.PickMap `json:"picks,omitempty"`
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var body mergeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	result, err := h.service.Merge(r.Context(), records.MergeRequest{
		Collection: chi.URLParam(r, "collection"),
		AID:        body.AID,
		BID:        body.BID,
		Picks:      body.Picks,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type dedupeRequestBody struct {
	Record *domain.Record `json:"record"`
}

type dedupeResponse struct {
	Duplicate *domain.Record `json:"duplicate"`
}

func (h *Handler) handleDedupe(w http.ResponseWriter, r *http.Request) {
	var body dedupeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Record == nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	existing, err := h.service.FindExisting(r.Context(), chi.URLParam(r, "collection"), body.Record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dedupeResponse{Duplicate: existing})
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.SoftDelete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Undo(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), readOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), chi.URLParam(r, "collection"), readOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func readOptions(r *http.Request) storage.ReadOptions {
	q := r.URL.Query()
	return storage.ReadOptions{
		IncludePending: q.Get("includePending") == "true",
		IncludeDeleted: q.Get("includeDeleted") == "true",
	}
}

type errorResponse struct {
	Error string            `json:"error"`
	Code  domainerrors.Code `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeInternal
	var de *domainerrors.Error
	if errors.As(err, &de) {
		code = de.Code
	}
	writeJSON(w, domainerrors.ToHTTPStatus(err), errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
