package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gridsight/config"
	"github.com/use-agent/gridsight/models"
	"github.com/use-agent/gridsight/scraper"
	"github.com/use-agent/gridsight/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				job := value.(*models.BatchJob)
				if job.CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch/extract.
// It validates the request, creates a batch job, and runs each URL's
// extraction in the background. Batches are deliberately small: each
// job holds a browser tab for a full multi-pass sampling run.
func PostBatch(sc *scraper.Scraper, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		if len(req.URLs) > 20 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "maximum 20 URLs per batch",
				},
			})
			return
		}

		jobID := "batch-" + randomID()
		job := &models.BatchJob{
			ID:         jobID,
			Status:     "processing",
			Total:      len(req.URLs),
			Results:    make([]*models.ExtractResponse, len(req.URLs)),
			WebhookURL: req.WebhookURL,
			CreatedAt:  time.Now().Unix(),
		}
		batchStore.Store(jobID, job)

		go runBatch(sc, cfg, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, models.BatchStatusResponse{
			ID:        job.ID,
			Status:    job.Status,
			Completed: job.Completed,
			Total:     job.Total,
			Results:   job.Results,
		})
	}
}

// runBatch processes all URLs in a batch job with concurrency limited
// by a semaphore sized to the page pool.
func runBatch(sc *scraper.Scraper, cfg *config.Config, job *models.BatchJob, req models.BatchRequest) {
	maxConcurrent := sc.Stats().MaxPages
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var completed atomic.Int32
	var failed atomic.Int32

	for i, rawURL := range req.URLs {
		wg.Add(1)
		go func(idx int, targetURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp := extractOne(sc, cfg, targetURL, req.Options)
			job.Results[idx] = resp

			if resp.Success {
				completed.Add(1)
			} else {
				failed.Add(1)
			}
			job.Completed = int(completed.Load()) + int(failed.Load())
		}(i, rawURL)
	}

	wg.Wait()

	failedCount := int(failed.Load())
	completedCount := int(completed.Load())

	switch {
	case failedCount == job.Total:
		job.Status = "failed"
	case failedCount > 0:
		job.Status = "partial"
	default:
		job.Status = "completed"
	}
	job.Completed = completedCount + failedCount

	slog.Info("batch job finished",
		"id", job.ID,
		"status", job.Status,
		"completed", completedCount,
		"failed", failedCount,
		"total", job.Total,
	)

	if job.WebhookURL != "" {
		webhook.DeliverAsync(job.WebhookURL, cfg.Webhook.Secret, &webhook.Event{
			Type:      "extract.batch.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data: models.BatchStatusResponse{
				ID:        job.ID,
				Status:    job.Status,
				Completed: job.Completed,
				Total:     job.Total,
				Results:   job.Results,
			},
		})
	}
}

// extractOne runs a single extraction for one URL using the shared
// batch options template.
func extractOne(sc *scraper.Scraper, cfg *config.Config, targetURL string, template models.ExtractRequest) *models.ExtractResponse {
	totalStart := time.Now()

	ereq := template
	ereq.URL = targetURL
	ereq.Defaults()

	outcome, err := sc.DoExtract(context.Background(), &ereq, BuildOptions(cfg, &ereq))
	if err != nil {
		extractErr, ok := err.(*models.ExtractError)
		if !ok {
			extractErr = models.NewExtractError(models.ErrCodeInternal, err.Error(), err)
		}
		return &models.ExtractResponse{
			Success: false,
			Error:   extractErr.ToDetail(),
			Timing: models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			},
		}
	}

	return &models.ExtractResponse{
		Success:      true,
		Records:      outcome.Records,
		Count:        len(outcome.Records),
		StrategyUsed: outcome.Strategy,
		Passes:       outcome.Passes,
		FinalURL:     outcome.FinalURL,
		Timing: models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			NavigationMs: outcome.NavigationMs,
			SamplingMs:   outcome.SamplingMs,
			EnrichMs:     outcome.EnrichMs,
		},
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
