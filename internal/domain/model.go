package domain

import (
	"strings"
	"time"
)

// Core domain models used internally. The HTTP adapter maps these to response
// shapes; keep these decoupled from any wire format.

// Source identifies where an alert was ingested from.
type Source string

const (
	SourceNews           Source = "news"
	SourceFilingRegistry Source = "filing_registry"
	SourceBreachDatabase Source = "breach_database"

	// SourceCyberRating never appears on alerts; it tags risk factors
	// contributed by the external rating provider.
	SourceCyberRating Source = "cyber_rating"
)

// AlertType classifies what kind of risk signal an alert carries.
type AlertType string

const (
	AlertTypeNews       AlertType = "news"
	AlertTypeRegulatory AlertType = "regulatory"
	AlertTypeFinancial  AlertType = "financial"
	AlertTypeLeadership AlertType = "leadership"
	AlertTypeBreach     AlertType = "breach"
	AlertTypeFiling     AlertType = "filing"
	AlertTypeOther      AlertType = "other"
)

// Severity is ordered: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering position of a severity, with unknown values below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ParseSeverity maps a provider-supplied severity label onto the ordered
// enum, defaulting to low for anything unrecognized.
func ParseSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return sev
	}
	return SeverityLow
}

// Alert is one normalized risk signal about a vendor. (VendorID, Source,
// ExternalID) is the natural key: re-ingesting the same external event must
// not create a second row.
type Alert struct {
	ID             string    `json:"id"`
	VendorID       string    `json:"vendor_id"`
	OrganizationID string    `json:"organization_id"`
	Source         Source    `json:"source"`
	ExternalID     string    `json:"external_id"`
	AlertType      AlertType `json:"alert_type"`
	Severity       Severity  `json:"severity"`
	Headline       string    `json:"headline"`
	Summary        string    `json:"summary,omitempty"`
	URL            string    `json:"url,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	IsRead         bool      `json:"is_read"`
	IsDismissed    bool      `json:"is_dismissed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Vendor carries the per-vendor bookkeeping the sync drivers maintain:
// last-sync timestamps and the best-known provider identifiers.
type Vendor struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organization_id"`
	Name             string     `json:"name"`
	Domain           string     `json:"domain,omitempty"`
	FilingRegistryID string     `json:"filing_registry_id,omitempty"`
	Keywords         []string   `json:"keywords,omitempty"`
	LastNewsSync     *time.Time `json:"last_news_sync,omitempty"`
	LastFilingsSync  *time.Time `json:"last_filings_sync,omitempty"`
	LastBreachCheck  *time.Time `json:"last_breach_check,omitempty"`
	BreachCount      int        `json:"breach_count"`
	BreachSeverity   Severity   `json:"breach_severity,omitempty"`
	CyberScore       *float64   `json:"cyber_score,omitempty"` // external 0-100 rating, higher = safer
	CyberGrade       string     `json:"cyber_grade,omitempty"`
}

// RiskLevel classifies a composite score for display and alerting.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// ScoreTrend compares the current composite against the previous one.
type ScoreTrend string

const (
	TrendImproving ScoreTrend = "improving"
	TrendStable    ScoreTrend = "stable"
	TrendDegrading ScoreTrend = "degrading"
)

// RiskFactor is one ranked contributor to a component or composite score.
type RiskFactor struct {
	Source      Source    `json:"source"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Impact      float64   `json:"impact"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ScoreComponent is the per-source slice of a vendor's risk picture. A
// component with Weight == 0 produced no evidence and is excluded from
// composite weighting rather than read as "risk-free".
type ScoreComponent struct {
	Score           float64      `json:"score"`
	Weight          float64      `json:"weight"`
	AlertCount      int          `json:"alert_count"`
	CriticalCount   int          `json:"critical_count"`
	HighCount       int          `json:"high_count"`
	LatestAlertDate *time.Time   `json:"latest_alert_date,omitempty"`
	Factors         []RiskFactor `json:"factors,omitempty"`
}

// VendorRiskScore is the persisted scoring outcome for one vendor.
type VendorRiskScore struct {
	VendorID             string         `json:"vendor_id"`
	NewsScore            ScoreComponent `json:"news_score"`
	BreachScore          ScoreComponent `json:"breach_score"`
	FilingScore          ScoreComponent `json:"filing_score"`
	CyberScore           ScoreComponent `json:"cyber_score"`
	CompositeScore       float64        `json:"composite_score"`
	RiskLevel            RiskLevel      `json:"risk_level"`
	PreviousScore        *float64       `json:"previous_score,omitempty"`
	ScoreTrend           ScoreTrend     `json:"score_trend"`
	TrendChange          float64        `json:"trend_change"`
	CriticalAlertCount   int            `json:"critical_alert_count"`
	HighAlertCount       int            `json:"high_alert_count"`
	UnresolvedAlertCount int            `json:"unresolved_alert_count"`
	TopRiskFactors       []RiskFactor   `json:"top_risk_factors,omitempty"`
	CalculatedAt         time.Time      `json:"calculated_at"`
	Version              string         `json:"version"`
}
