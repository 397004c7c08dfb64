package ports

import (
	"context"
	"time"
)

// Provider payload shapes. The providers themselves are external
// collaborators; the engine only consumes their already-normalized results.

// NewsArticle is one article-like record from the news search provider.
type NewsArticle struct {
	Title           string
	Description     string
	URL             string
	ImageURL        string
	PublishedAt     time.Time
	SentimentScore  float64 // [-1, 1]
	SentimentLabel  string  // negative | neutral | positive
	MatchedKeywords []string
	AlertType       string
}

// Filing is one registry filing record.
type Filing struct {
	AccessionNumber string
	Form            string
	Description     string
	FiledAt         time.Time
	PrimaryDocURL   string
	FilingURL       string
}

// FilingsResult bundles a page of filings with company-level registry data.
type FilingsResult struct {
	Filings      []Filing
	CIK          string
	Ticker       string
	TotalFilings int
}

// BreachRecord is one breach the lookup attributed to the vendor's domain.
type BreachRecord struct {
	Name        string
	BreachDate  time.Time
	PwnCount    int64
	Severity    string // low | medium | high | critical
	DataClasses []string
}

// BreachExposure is the domain-level breach lookup result.
type BreachExposure struct {
	BreachCount int
	TotalPwned  int64
	Severity    string
	Breaches    []BreachRecord
	CheckedAt   time.Time
}

// CyberRating is an external security rating; Score is 0-100 with higher
// meaning safer.
type CyberRating struct {
	Score float64
	Grade string
}

// NewsProvider searches recent coverage mentioning the vendor.
type NewsProvider interface {
	Search(ctx context.Context, vendorName string, keywords []string) ([]NewsArticle, error)
}

// FilingsProvider lists recent regulatory filings for the vendor. knownID is
// the best registry identifier discovered so far; empty on first sync.
type FilingsProvider interface {
	RecentFilings(ctx context.Context, vendorName, knownID string) (FilingsResult, error)
}

// BreachProvider checks a registrable domain against the breach database.
type BreachProvider interface {
	CheckDomain(ctx context.Context, domain string) (BreachExposure, error)
}

// RatingProvider fetches the external cyber rating, if one exists.
type RatingProvider interface {
	Rating(ctx context.Context, domain string) (*CyberRating, error)
}
