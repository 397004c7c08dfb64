package ports

import (
	"context"

	"riskwatch/internal/domain"
)

// Syncer drives intelligence refreshes for one vendor or a batch.
type Syncer interface {
	SyncVendor(ctx context.Context, vendorID string, opts domain.SyncOptions) domain.SyncResult
	SyncBatch(ctx context.Context, vendorIDs []string, opts domain.SyncOptions) domain.BatchSyncResult
}

// IntelligenceReader assembles the read-only per-vendor alert view.
type IntelligenceReader interface {
	GetIntelligence(ctx context.Context, vendorID string) (domain.VendorIntelligence, error)
}
