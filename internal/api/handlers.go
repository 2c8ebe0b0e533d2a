// Package api exposes the scraper over HTTP: synchronous one-shot scrape
// endpoints plus asynchronous crawl job management.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shopcrawler/internal/database"
	"shopcrawler/internal/fetcher"
	"shopcrawler/internal/jobs"
	"shopcrawler/internal/scrape"
)

type Handlers struct {
	scraper *scrape.Service
	jobs    *jobs.Manager
	store   *database.RecordStore
	logger  *slog.Logger
}

func NewHandlers(scraper *scrape.Service, jobManager *jobs.Manager, store *database.RecordStore, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper: scraper,
		jobs:    jobManager,
		store:   store,
		logger:  logger,
	}
}

// ScrapeRequest asks for a single page scrape, performed inline.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeSearch fetches one listing page and returns its result cards
// without queueing anything.
func (h *Handlers) ScrapeSearch(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	cards, err := h.scraper.Search(r.Context(), req.URL)
	if err != nil {
		h.respondFetchError(w, req.URL, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"url":   req.URL,
		"count": len(cards),
		"cards": cards,
	})
}

// ScrapeProduct fetches one detail page and returns the extracted record.
func (h *Handlers) ScrapeProduct(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	rec, err := h.scraper.Product(r.Context(), req.URL)
	if err != nil {
		h.respondFetchError(w, req.URL, err)
		return
	}

	h.respondJSON(w, http.StatusOK, rec)
}

// CreateJobRequest starts an asynchronous crawl of a listing URL.
type CreateJobRequest struct {
	ListingURL string `json:"listing_url"`
}

type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateJob enqueues a crawl job; the worker fans it out into product
// fetches.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ListingURL == "" {
		h.respondError(w, http.StatusBadRequest, "listing_url is required")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), req.ListingURL)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetJob returns the current state of one job.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs returns all known jobs, newest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListJobs())
}

// GetJobCounts reports how many rows a job has persisted so far.
func (h *Handlers) GetJobCounts(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}
	if _, err := h.jobs.GetJob(jobID); err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	cards, products, err := h.store.CountByJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error("failed to count job results", "error", err, "job_id", jobID)
		h.respondError(w, http.StatusInternalServerError, "failed to count job results")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int64{
		"cards":    cards,
		"products": products,
	})
}

// respondFetchError maps fetch failures onto HTTP statuses: blocks and
// rate limits surface as 502 so callers can tell "they refused us" from
// our own 4xx/5xx.
func (h *Handlers) respondFetchError(w http.ResponseWriter, url string, err error) {
	var botErr *fetcher.BotDetectionError
	var rateErr *fetcher.RateLimitError
	switch {
	case errors.As(err, &botErr):
		h.logger.Warn("scrape blocked by bot check", "url", url)
		h.respondError(w, http.StatusBadGateway, "target served a bot interstitial")
	case errors.As(err, &rateErr):
		h.logger.Warn("scrape rate limited", "url", url, "status", rateErr.StatusCode)
		h.respondError(w, http.StatusBadGateway, "target is rate limiting requests")
	default:
		h.logger.Error("scrape failed", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "scrape failed")
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
