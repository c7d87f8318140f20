package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/mediaresolve/models"
	"github.com/use-agent/mediaresolve/webhook"
)

// batchJob tracks an in-progress batch resolution.
type batchJob struct {
	mu        sync.Mutex
	id        string
	status    string // "processing", "completed", "failed", "partial"
	results   []*models.BatchItem
	completed int
	createdAt time.Time
}

// snapshot reports the finished items in input order; unfinished ones are
// left out until they complete.
func (j *batchJob) snapshot() models.BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*models.BatchItem, 0, j.completed)
	for _, item := range j.results {
		if item != nil {
			results = append(results, item)
		}
	}
	return models.BatchStatusResponse{
		ID:        j.id,
		Status:    j.status,
		Completed: j.completed,
		Total:     len(j.results),
		Results:   results,
	}
}

// BatchStore holds in-flight and finished batch jobs. Jobs older than the
// retention period are dropped by a background sweep.
type BatchStore struct {
	jobs      sync.Map // id -> *batchJob
	retention time.Duration
	done      chan struct{}
	stopOnce  sync.Once
}

// NewBatchStore creates a store and starts its sweeper.
func NewBatchStore(retention time.Duration) *BatchStore {
	s := &BatchStore{retention: retention, done: make(chan struct{})}
	go s.sweepLoop()
	return s
}

// Stop ends the sweeper.
func (s *BatchStore) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *BatchStore) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.retention)
			s.jobs.Range(func(key, value any) bool {
				if value.(*batchJob).createdAt.Before(cutoff) {
					s.jobs.Delete(key)
				}
				return true
			})
		}
	}
}

// PostBatch returns a handler for POST /api/v1/batch/resolve.
// It validates every URL up front, creates a job, and resolves the URLs in
// the background with concurrency bounded by the browser pool size.
func PostBatch(res *Resolver, store *BatchStore, maxBatch int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewResolveError(models.ErrCodeInvalidInput, "invalid request body", err))
			return
		}

		if maxBatch > 0 && len(req.URLs) > maxBatch {
			respondError(c, models.NewResolveError(
				models.ErrCodeInvalidInput,
				fmt.Sprintf("maximum %d URLs per batch", maxBatch),
				nil,
			))
			return
		}

		targets := make([]string, len(req.URLs))
		for i, raw := range req.URLs {
			target, verr := res.ValidateURL(raw)
			if verr != nil {
				verr.Message = fmt.Sprintf("urls[%d]: %s", i, verr.Message)
				respondError(c, verr)
				return
			}
			targets[i] = target
		}

		job := &batchJob{
			id:        "batch-" + uuid.NewString(),
			status:    "processing",
			results:   make([]*models.BatchItem, len(targets)),
			createdAt: time.Now(),
		}
		store.jobs.Store(job.id, job)

		go runBatch(res, job, targets, req.WebhookURL, req.WebhookSecret)

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.id,
			Status: "processing",
			Total:  len(targets),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch(store *BatchStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := store.jobs.Load(c.Param("id"))
		if !ok {
			respondError(c, models.NewResolveError(models.ErrCodeNotFound, "batch job not found", nil))
			return
		}
		c.JSON(http.StatusOK, val.(*batchJob).snapshot())
	}
}

// runBatch resolves every target with a semaphore-limited worker per URL and
// fires the completion webhook, if any.
func runBatch(res *Resolver, job *batchJob, targets []string, hookURL, hookSecret string) {
	maxConcurrent := res.Stats().MaxPages
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	failed := 0

	for i, target := range targets {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			item := resolveOne(res, target)

			job.mu.Lock()
			job.results[idx] = item
			job.completed++
			if item.Error != nil {
				failed++
			}
			job.mu.Unlock()
		}(i, target)
	}

	wg.Wait()

	job.mu.Lock()
	switch {
	case failed == len(targets):
		job.status = "failed"
	case failed > 0:
		job.status = "partial"
	default:
		job.status = "completed"
	}
	status := job.status
	job.mu.Unlock()

	slog.Info("batch job finished",
		"id", job.id,
		"status", status,
		"failed", failed,
		"total", len(targets),
	)

	if hookURL != "" {
		webhook.DeliverAsync(hookURL, hookSecret, &webhook.Event{
			Type:      webhook.EventBatchCompleted,
			JobID:     job.id,
			Timestamp: time.Now().Unix(),
			Data:      job.snapshot(),
		})
	}
}

// resolveOne resolves a single batch entry. "No media" is a successful item
// with an empty list; only a load failure sets Error.
func resolveOne(res *Resolver, target string) *models.BatchItem {
	resp, err := res.Resolve(context.Background(), target, 0, false)
	if err != nil {
		var resolveErr *models.ResolveError
		if !errors.As(err, &resolveErr) {
			resolveErr = models.NewResolveError(models.ErrCodeInternal, "Resolver failed", err)
		}
		return &models.BatchItem{URL: target, Media: []models.MediaReference{}, Error: resolveErr.ToDetail()}
	}
	return &models.BatchItem{URL: target, Media: resp.Media}
}
