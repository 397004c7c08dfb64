package intel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"riskwatch/internal/domain"
	"riskwatch/internal/ports"
	"riskwatch/internal/scoring"
)

// Service orchestrates the source sync drivers for one vendor and persists
// the recomputed risk score. Drivers run sequentially: this bounds the
// outbound request rate to the external providers and keeps partial-failure
// attribution unambiguous.
type Service struct {
	vendors ports.VendorRepository
	alerts  ports.AlertRepository
	scores  ports.ScoreRepository

	news    ports.NewsProvider
	filings ports.FilingsProvider
	breach  ports.BreachProvider
	rating  ports.RatingProvider

	cfg     scoring.Config
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time
}

// Deps bundles the collaborators a Service needs. Provider fields may be nil;
// a nil provider simply skips its source.
type Deps struct {
	Vendors ports.VendorRepository
	Alerts  ports.AlertRepository
	Scores  ports.ScoreRepository

	News    ports.NewsProvider
	Filings ports.FilingsProvider
	Breach  ports.BreachProvider
	Rating  ports.RatingProvider

	// BatchDelay overrides the default inter-vendor pause; zero keeps it.
	BatchDelay time.Duration
}

// BatchDelay is the courtesy pause between vendors in a batch sync. It is
// provider etiquette, not a correctness requirement.
const BatchDelay = 2 * time.Second

func New(deps Deps, cfg scoring.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	delay := deps.BatchDelay
	if delay <= 0 {
		delay = BatchDelay
	}
	return &Service{
		vendors: deps.Vendors,
		alerts:  deps.Alerts,
		scores:  deps.Scores,
		news:    deps.News,
		filings: deps.Filings,
		breach:  deps.Breach,
		rating:  deps.Rating,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		log:     logger,
		now:     time.Now,
	}
}

// SyncVendor runs the selected source drivers for one vendor, then recomputes
// and persists the risk score against whatever data is available. Driver
// failures land in the error list; they never abort the remaining sources.
func (s *Service) SyncVendor(ctx context.Context, vendorID string, opts domain.SyncOptions) domain.SyncResult {
	start := s.now()
	res := domain.SyncResult{VendorID: vendorID, StartedAt: start}

	vendor, err := s.vendors.Get(ctx, vendorID)
	if err != nil {
		res.Errors = append(res.Errors, domain.SourceError{
			Stage:   "persistence",
			Message: fmt.Sprintf("load vendor: %v", err),
		})
		res.Duration = s.now().Sub(start)
		return res
	}

	if s.news != nil && opts.WantsSource(domain.SourceNews) {
		created, skipped, serr := s.syncNews(ctx, vendor, opts.Keywords)
		res.AlertsCreated += created
		res.Skipped += skipped
		if serr != nil {
			res.Errors = append(res.Errors, *serr)
		}
	}
	if s.filings != nil && opts.WantsSource(domain.SourceFilingRegistry) {
		created, skipped, serr := s.syncFilings(ctx, vendor, opts.FilingID)
		res.AlertsCreated += created
		res.Skipped += skipped
		if serr != nil {
			res.Errors = append(res.Errors, *serr)
		}
	}
	if s.breach != nil && opts.WantsSource(domain.SourceBreachDatabase) {
		created, skipped, serr := s.syncBreach(ctx, vendor, opts.Domain)
		res.AlertsCreated += created
		res.Skipped += skipped
		if serr != nil {
			res.Errors = append(res.Errors, *serr)
		}
	}
	if s.rating != nil {
		if serr := s.refreshRating(ctx, vendor, opts.Domain); serr != nil {
			res.Errors = append(res.Errors, *serr)
		}
	}

	if serr := s.recomputeScore(ctx, vendorID); serr != nil {
		res.Errors = append(res.Errors, *serr)
	}

	res.Success = len(res.Errors) == 0
	res.Duration = s.now().Sub(start)
	s.log.Info("vendor sync finished",
		"vendor_id", vendorID,
		"created", res.AlertsCreated,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"duration", res.Duration)
	return res
}

// SyncBatch refreshes a list of vendors with an inter-vendor courtesy delay.
// Each vendor's outcome is independent: one vendor's provider failure must
// not abort the batch.
func (s *Service) SyncBatch(ctx context.Context, vendorIDs []string, opts domain.SyncOptions) domain.BatchSyncResult {
	start := s.now()
	var out domain.BatchSyncResult
	for _, id := range vendorIDs {
		// first Wait is immediate; later ones space vendors out
		if err := s.limiter.Wait(ctx); err != nil {
			// caller cancelled; remaining vendors are simply not attempted
			break
		}
		res := s.SyncVendor(ctx, id, opts)
		out.Results = append(out.Results, res)
		if res.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	out.Duration = s.now().Sub(start)
	return out
}

// GetIntelligence assembles the read-only alert view for display. The overall
// severity is a qualitative ceiling over the visible alerts, deliberately
// simpler than the composite score.
func (s *Service) GetIntelligence(ctx context.Context, vendorID string) (domain.VendorIntelligence, error) {
	alerts, err := s.alerts.RecentByVendor(ctx, vendorID, ports.AlertQuery{Limit: 50})
	if err != nil {
		return domain.VendorIntelligence{}, fmt.Errorf("recent alerts for %s: %w", vendorID, err)
	}

	out := domain.VendorIntelligence{
		VendorID:        vendorID,
		OverallSeverity: domain.SeverityLow,
		RetrievedAt:     s.now(),
	}
	for _, a := range alerts {
		switch a.Source {
		case domain.SourceNews:
			out.NewsAlerts = append(out.NewsAlerts, a)
		case domain.SourceFilingRegistry:
			out.FilingAlerts = append(out.FilingAlerts, a)
		case domain.SourceBreachDatabase:
			out.BreachAlerts = append(out.BreachAlerts, a)
		}
		if !a.IsRead {
			out.UnreadCount++
		}
		if a.Severity == domain.SeverityHigh || a.Severity == domain.SeverityCritical {
			out.EscalatedCount++
		}
		if a.Severity.Rank() > out.OverallSeverity.Rank() {
			out.OverallSeverity = a.Severity
		}
	}
	return out, nil
}

// recomputeScore reads the fresh alert snapshot plus vendor bookkeeping and
// persists the calculator's outcome with its history row.
func (s *Service) recomputeScore(ctx context.Context, vendorID string) *domain.SourceError {
	now := s.now()
	since := now.AddDate(0, 0, -int(s.cfg.MaxAlertAgeDays))

	alerts, err := s.alerts.RecentByVendor(ctx, vendorID, ports.AlertQuery{Since: since, Limit: 500})
	if err != nil {
		return &domain.SourceError{Stage: "persistence", Message: fmt.Sprintf("read alerts: %v", err)}
	}
	vendor, err := s.vendors.Get(ctx, vendorID)
	if err != nil {
		return &domain.SourceError{Stage: "persistence", Message: fmt.Sprintf("reload vendor: %v", err)}
	}
	prev, err := s.scores.Latest(ctx, vendorID)
	if err != nil {
		return &domain.SourceError{Stage: "persistence", Message: fmt.Sprintf("previous score: %v", err)}
	}

	score := scoring.Calculate(scoring.Inputs{
		Alerts:         alerts,
		BreachCount:    vendor.BreachCount,
		BreachSeverity: vendor.BreachSeverity,
		CyberRating:    vendor.CyberScore,
		CyberGrade:     vendor.CyberGrade,
		Previous:       prev,
		Now:            now,
	}, s.cfg)
	score.VendorID = vendorID

	if err := s.scores.Save(ctx, score, "intelligence_sync"); err != nil {
		return &domain.SourceError{Stage: "persistence", Message: fmt.Sprintf("save score: %v", err)}
	}
	return nil
}
