package domain

import "time"

// SyncOptions narrows a vendor intelligence sync to selected sources and
// carries per-source hints (lookup domain, registry id, extra keywords).
type SyncOptions struct {
	Sources  []Source // nil means all
	Domain   string
	FilingID string
	Keywords []string
}

// WantsSource reports whether a source was selected for this run.
func (o SyncOptions) WantsSource(s Source) bool {
	if len(o.Sources) == 0 {
		return true
	}
	for _, have := range o.Sources {
		if have == s {
			return true
		}
	}
	return false
}

// SourceError attributes one failure to the source that produced it.
// Failures are collected, not thrown: one source failing must not abort
// the others.
type SourceError struct {
	Source  Source `json:"source,omitempty"`
	Stage   string `json:"stage"` // "provider" or "persistence"
	Message string `json:"message"`
}

// SyncResult is the outcome of one vendor's intelligence refresh.
type SyncResult struct {
	VendorID      string        `json:"vendor_id"`
	Success       bool          `json:"success"`
	AlertsCreated int           `json:"alerts_created"`
	Skipped       int           `json:"skipped"` // records dropped by normalization
	Errors        []SourceError `json:"errors,omitempty"`
	Duration      time.Duration `json:"duration"`
	StartedAt     time.Time     `json:"started_at"`
}

// BatchSyncResult aggregates per-vendor outcomes; one vendor's failure is
// independent of the rest of the batch.
type BatchSyncResult struct {
	Results   []SyncResult  `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// VendorIntelligence is the read-only assembly for display: recent alerts
// split by source with rollup counts. OverallSeverity is a qualitative
// ceiling over the visible alerts, simpler than the composite score.
type VendorIntelligence struct {
	VendorID        string    `json:"vendor_id"`
	NewsAlerts      []Alert   `json:"news_alerts"`
	FilingAlerts    []Alert   `json:"filing_alerts"`
	BreachAlerts    []Alert   `json:"breach_alerts"`
	UnreadCount     int       `json:"unread_count"`
	EscalatedCount  int       `json:"escalated_count"` // high or critical severity
	OverallSeverity Severity  `json:"overall_severity"`
	RetrievedAt     time.Time `json:"retrieved_at"`
}
