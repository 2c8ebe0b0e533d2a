package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"shopcrawler/internal/fetcher"
	"shopcrawler/internal/models"
	"shopcrawler/internal/queue"
)

// pageScraper is the slice of the scrape service the worker consumes.
type pageScraper interface {
	Search(ctx context.Context, url string) ([]models.SearchCard, error)
	Product(ctx context.Context, url string) (*models.ProductRecord, error)
}

// taskQueue is the queue surface the worker and manager need.
type taskQueue interface {
	Push(ctx context.Context, task *queue.Task) error
	Pop(ctx context.Context, block time.Duration) (*queue.Task, string, error)
	Ack(ctx context.Context, msgID string) error
}

// recordStore persists extraction results.
type recordStore interface {
	SaveCards(ctx context.Context, jobID, listingURL string, cards []models.SearchCard) error
	SaveProduct(ctx context.Context, jobID, productURL string, rec *models.ProductRecord) error
}

// ErrEmptyResult marks a listing fetch that succeeded but produced zero
// cards. That usually means a soft block rather than a markup change, so
// the worker retries it with backoff instead of failing the job.
var ErrEmptyResult = errors.New("listing yielded no result cards")

// WorkerConfig bounds the caller-level retry policy.
type WorkerConfig struct {
	// MaxAttempts caps retries of one task (empty results and transport
	// failures alike).
	MaxAttempts int
	// BackoffStep grows linearly with the attempt number, capped at
	// BackoffMax.
	BackoffStep time.Duration
	BackoffMax  time.Duration
	// SeenCacheLen bounds the recently-crawled product URL cache.
	SeenCacheLen int
	// PopBlock is how long one queue poll blocks before giving the loop a
	// chance to observe ctx cancellation.
	PopBlock time.Duration
}

func (c *WorkerConfig) withDefaults() WorkerConfig {
	out := *c
	if out.MaxAttempts == 0 {
		out.MaxAttempts = 50
	}
	if out.BackoffStep == 0 {
		out.BackoffStep = 3 * time.Second
	}
	if out.BackoffMax == 0 {
		out.BackoffMax = 30 * time.Second
	}
	if out.SeenCacheLen == 0 {
		out.SeenCacheLen = 4096
	}
	if out.PopBlock == 0 {
		out.PopBlock = 5 * time.Second
	}
	return out
}

// Worker drains the task queue: listing tasks fan out into product tasks,
// product tasks become persisted records.
type Worker struct {
	cfg     WorkerConfig
	service pageScraper
	queue   taskQueue
	store   recordStore
	manager *Manager
	seen    *lru.Cache[string, struct{}]
	logger  *slog.Logger
}

func NewWorker(cfg WorkerConfig, service pageScraper, q taskQueue, store recordStore, manager *Manager, logger *slog.Logger) (*Worker, error) {
	cfg = cfg.withDefaults()
	seen, err := lru.New[string, struct{}](cfg.SeenCacheLen)
	if err != nil {
		return nil, err
	}
	return &Worker{
		cfg:     cfg,
		service: service,
		queue:   q,
		store:   store,
		manager: manager,
		seen:    seen,
		logger:  logger.With("component", "worker"),
	}, nil
}

// Run processes tasks until ctx is cancelled. Tasks run strictly in
// sequence; the fetcher's pacing applies between them.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return
		}

		task, msgID, err := w.queue.Pop(ctx, w.cfg.PopBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue pop failed", "error", err)
			continue
		}
		if task == nil {
			continue
		}

		switch task.Kind {
		case queue.KindSearch:
			w.handleSearch(ctx, task)
		case queue.KindProduct:
			w.handleProduct(ctx, task)
		default:
			w.logger.Warn("unknown task kind", "kind", task.Kind)
		}

		if err := w.queue.Ack(ctx, msgID); err != nil {
			w.logger.Error("ack failed", "msg_id", msgID, "error", err)
		}
	}
}

func (w *Worker) handleSearch(ctx context.Context, task *queue.Task) {
	w.manager.update(task.JobID, func(j *Job) { j.Status = StatusRunning })

	cards, err := w.service.Search(ctx, task.URL)
	if err != nil {
		w.handleFetchError(ctx, task, err)
		return
	}

	if len(cards) == 0 {
		w.logger.Warn("empty listing, treating as soft block",
			"url", task.URL, "attempt", task.Attempt, "error", ErrEmptyResult)
		w.retry(ctx, task, ErrEmptyResult)
		return
	}

	if err := w.store.SaveCards(ctx, task.JobID, task.URL, cards); err != nil {
		w.logger.Error("persist cards failed", "job_id", task.JobID, "error", err)
	}

	queued := 0
	for _, card := range cards {
		if card.ProductURL == nil {
			continue
		}
		if _, dup := w.seen.Get(*card.ProductURL); dup {
			continue
		}
		w.seen.Add(*card.ProductURL, struct{}{})

		err := w.queue.Push(ctx, &queue.Task{
			ID:    task.ID + "/" + *card.ProductURL,
			JobID: task.JobID,
			Kind:  queue.KindProduct,
			URL:   *card.ProductURL,
		})
		if err != nil {
			w.logger.Error("enqueue product task failed", "url", *card.ProductURL, "error", err)
			continue
		}
		queued++
	}

	w.manager.update(task.JobID, func(j *Job) {
		j.CardsFound += len(cards)
		j.ProductsQueued += queued
	})
	w.logger.Info("listing processed", "job_id", task.JobID, "cards", len(cards), "queued", queued)
}

func (w *Worker) handleProduct(ctx context.Context, task *queue.Task) {
	rec, err := w.service.Product(ctx, task.URL)
	if err != nil {
		w.handleFetchError(ctx, task, err)
		return
	}

	if err := w.store.SaveProduct(ctx, task.JobID, task.URL, rec); err != nil {
		w.logger.Error("persist product failed", "url", task.URL, "error", err)
		w.finishProduct(task.JobID, false)
		return
	}
	w.finishProduct(task.JobID, true)
}

// handleFetchError applies the propagation policy: bot detection and
// exhausted rate limits are terminal for this identity and surface on the
// job; transport failures retry up to the attempt budget.
func (w *Worker) handleFetchError(ctx context.Context, task *queue.Task, err error) {
	var botErr *fetcher.BotDetectionError
	var rateErr *fetcher.RateLimitError
	if errors.As(err, &botErr) || errors.As(err, &rateErr) {
		w.logger.Error("blocked by target, slow down or rotate identity",
			"url", task.URL, "error", err)
		w.manager.markFailed(task.JobID, err)
		return
	}

	w.logger.Error("fetch failed", "url", task.URL, "attempt", task.Attempt, "error", err)
	w.retry(ctx, task, err)
}

// retry re-enqueues a task after a linear backoff capped at BackoffMax, or
// gives up once the attempt budget is spent.
func (w *Worker) retry(ctx context.Context, task *queue.Task, cause error) {
	if task.Attempt+1 >= w.cfg.MaxAttempts {
		w.logger.Error("attempt budget exhausted", "url", task.URL, "error", cause)
		if task.Kind == queue.KindProduct {
			w.finishProduct(task.JobID, false)
		} else {
			w.manager.markFailed(task.JobID, cause)
		}
		return
	}

	if err := sleep(ctx, w.backoff(task.Attempt+1)); err != nil {
		return
	}

	requeued := *task
	requeued.Attempt = task.Attempt + 1
	if err := w.queue.Push(ctx, &requeued); err != nil {
		w.logger.Error("requeue failed", "url", task.URL, "error", err)
	}
}

func (w *Worker) finishProduct(jobID string, ok bool) {
	now := time.Now()
	w.manager.update(jobID, func(j *Job) {
		if ok {
			j.ProductsDone++
		} else {
			j.Failures++
		}
		if j.Status != StatusFailed && j.ProductsDone+j.Failures >= j.ProductsQueued {
			j.Status = StatusCompleted
			j.CompletedAt = &now
		}
	})
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BackoffStep * time.Duration(attempt)
	if d > w.cfg.BackoffMax {
		d = w.cfg.BackoffMax
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
