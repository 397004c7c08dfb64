package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"riskwatch/internal/ports"
)

// Enqueue queues one vendor refresh. Concurrent enqueues for the same vendor
// are allowed; workers process them in order and the upserts stay idempotent.
func (db *DB) Enqueue(ctx context.Context, vendorID string) (string, error) {
	var jobID string
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO sync_jobs (vendor_id) VALUES ($1) RETURNING id`, vendorID).Scan(&jobID)
	return jobID, err
}

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.SyncJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, vendor_id FROM sync_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.VendorID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE sync_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, alertsCreated int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE sync_jobs SET status='completed', alerts_created=$2, finished_at=now() WHERE id=$1
	`, jobID, alertsCreated)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE sync_jobs SET status='failed', error=$2, finished_at=now() WHERE id=$1
	`, jobID, reason)
	return err
}

// StartJobForVendor claims the queued job for a specific vendor, creating one
// if none is waiting, and marks it running. Used by the blocking sync path.
func (db *DB) StartJobForVendor(ctx context.Context, vendorID string) (string, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var jobID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM sync_jobs
		WHERE vendor_id = $1 AND status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, vendorID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx,
			`INSERT INTO sync_jobs (vendor_id) VALUES ($1) RETURNING id`, vendorID).Scan(&jobID)
	}
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `
		UPDATE sync_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, jobID); err != nil {
		return "", err
	}
	return jobID, nil
}
