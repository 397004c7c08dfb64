package syncrunner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"riskwatch/internal/domain"
	"riskwatch/internal/ports"
)

// SyncProcessor runs one vendor's intelligence refresh.
type SyncProcessor interface {
	SyncVendor(ctx context.Context, vendorID string, opts domain.SyncOptions) domain.SyncResult
}

// Run starts worker goroutines that claim queued sync jobs and process them.
// Each job is one vendor; the drivers inside a job already run sequentially,
// so concurrency here only parallelizes across vendors.
func Run(ctx context.Context, repo ports.JobRepository, processor SyncProcessor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.SyncJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						slog.Error("sync job claim failed", "error", err)
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				res := processor.SyncVendor(ctx, job.VendorID, domain.SyncOptions{})
				if !res.Success {
					reason := joinErrors(res.Errors)
					if err := repo.MarkFailed(ctx, job.ID, reason); err != nil {
						slog.Error("mark job failed", "worker", idx, "job_id", job.ID, "error", err)
					}
					slog.Warn("sync job finished with errors",
						"worker", idx, "job_id", job.ID, "vendor_id", job.VendorID, "reason", reason)
					continue
				}
				if err := repo.MarkCompleted(ctx, job.ID, res.AlertsCreated); err != nil {
					slog.Error("mark job completed", "worker", idx, "job_id", job.ID, "error", err)
				}
			}
		}(i)
	}
}

// ProcessInline claims (or creates) the job for a specific vendor and
// processes it synchronously with the same logic the background workers use.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor SyncProcessor, vendorID string, opts domain.SyncOptions) (domain.SyncResult, error) {
	jobID, err := repo.StartJobForVendor(ctx, vendorID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	res := processor.SyncVendor(ctx, vendorID, opts)
	if !res.Success {
		_ = repo.MarkFailed(ctx, jobID, joinErrors(res.Errors))
		return res, nil
	}
	return res, repo.MarkCompleted(ctx, jobID, res.AlertsCreated)
}

func joinErrors(errs []domain.SourceError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Source != "" {
			parts = append(parts, string(e.Source)+": "+e.Message)
			continue
		}
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}
