package ports

import "context"

// SyncJob is one queued vendor intelligence refresh.
type SyncJob struct {
	ID       string
	VendorID string
}

// JobRepository supports enqueueing, claiming and finishing sync jobs.
type JobRepository interface {
	Enqueue(ctx context.Context, vendorID string) (jobID string, err error)
	ClaimNext(ctx context.Context) (job SyncJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string, alertsCreated int) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	StartJobForVendor(ctx context.Context, vendorID string) (jobID string, err error)
}
