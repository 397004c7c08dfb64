package ports

import (
	"context"
	"time"

	"riskwatch/internal/domain"
)

// AlertQuery filters reads of a vendor's alert snapshot.
type AlertQuery struct {
	Since            time.Time
	Source           domain.Source // empty means all sources
	IncludeDismissed bool
	Limit            int
}

// AlertRepository persists normalized alerts keyed by the natural key
// (vendor_id, source, external_id). UpsertBatch ignores duplicates so a
// re-run of the same sync is idempotent.
type AlertRepository interface {
	UpsertBatch(ctx context.Context, alerts []domain.Alert) (created int, err error)
	RecentByVendor(ctx context.Context, vendorID string, q AlertQuery) ([]domain.Alert, error)
	MarkRead(ctx context.Context, alertID string) error
	Dismiss(ctx context.Context, alertID string) error
}

// ScoreRepository stores the current score projection and its append-only
// history. Save writes both in one transaction.
type ScoreRepository interface {
	Save(ctx context.Context, score domain.VendorRiskScore, triggerEvent string) error
	Latest(ctx context.Context, vendorID string) (*domain.VendorRiskScore, error)
}

// VendorRepository reads vendor records and updates the sync bookkeeping the
// drivers maintain regardless of whether new alerts were created.
type VendorRepository interface {
	Get(ctx context.Context, vendorID string) (domain.Vendor, error)
	RecordNewsSync(ctx context.Context, vendorID string, at time.Time) error
	RecordFilingsSync(ctx context.Context, vendorID string, registryID string, at time.Time) error
	RecordBreachCheck(ctx context.Context, vendorID string, count int, severity domain.Severity, at time.Time) error
	RecordCyberRating(ctx context.Context, vendorID string, score float64, grade string, at time.Time) error
}
