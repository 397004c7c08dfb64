package intel

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"riskwatch/internal/domain"
	"riskwatch/internal/normalize"
)

// Source sync drivers. Each one fetches a bounded page of provider records,
// normalizes them, batch-upserts on the natural key, and updates the vendor
// bookkeeping regardless of how many alerts were actually created.

func (s *Service) syncNews(ctx context.Context, vendor domain.Vendor, extraKeywords []string) (int, int, *domain.SourceError) {
	keywords := append(append([]string{}, vendor.Keywords...), extraKeywords...)
	articles, err := s.news.Search(ctx, vendor.Name, keywords)
	if err != nil {
		return 0, 0, providerErr(domain.SourceNews, err)
	}
	if err := s.vendors.RecordNewsSync(ctx, vendor.ID, s.now()); err != nil {
		s.log.Warn("news sync bookkeeping failed", "vendor_id", vendor.ID, "error", err)
	}

	now := s.now()
	batch := make([]domain.Alert, 0, len(articles))
	skipped := 0
	for _, rec := range articles {
		a, err := normalize.News(vendor.ID, vendor.OrganizationID, rec, now)
		if err != nil {
			skipped++
			s.log.Warn("dropped news record", "vendor_id", vendor.ID, "error", err)
			continue
		}
		batch = append(batch, a)
	}

	created, err := s.alerts.UpsertBatch(ctx, batch)
	if err != nil {
		return 0, skipped, persistenceErr(domain.SourceNews, err)
	}
	return created, skipped, nil
}

func (s *Service) syncFilings(ctx context.Context, vendor domain.Vendor, filingID string) (int, int, *domain.SourceError) {
	knownID := filingID
	if knownID == "" {
		knownID = vendor.FilingRegistryID
	}
	result, err := s.filings.RecentFilings(ctx, vendor.Name, knownID)
	if err != nil {
		return 0, 0, providerErr(domain.SourceFilingRegistry, err)
	}
	registryID := result.CIK
	if registryID == "" {
		registryID = knownID
	}
	if err := s.vendors.RecordFilingsSync(ctx, vendor.ID, registryID, s.now()); err != nil {
		s.log.Warn("filings sync bookkeeping failed", "vendor_id", vendor.ID, "error", err)
	}

	now := s.now()
	batch := make([]domain.Alert, 0, len(result.Filings))
	skipped := 0
	for _, rec := range result.Filings {
		a, err := normalize.Filing(vendor.ID, vendor.OrganizationID, rec, now)
		if err != nil {
			skipped++
			s.log.Warn("dropped filing record", "vendor_id", vendor.ID, "error", err)
			continue
		}
		batch = append(batch, a)
	}

	created, err := s.alerts.UpsertBatch(ctx, batch)
	if err != nil {
		return 0, skipped, persistenceErr(domain.SourceFilingRegistry, err)
	}
	return created, skipped, nil
}

func (s *Service) syncBreach(ctx context.Context, vendor domain.Vendor, overrideDomain string) (int, int, *domain.SourceError) {
	lookup := overrideDomain
	if lookup == "" {
		lookup = vendor.Domain
	}
	registrable, err := registrableDomain(lookup)
	if err != nil {
		return 0, 0, providerErr(domain.SourceBreachDatabase, err)
	}

	exposure, err := s.breach.CheckDomain(ctx, registrable)
	if err != nil {
		return 0, 0, providerErr(domain.SourceBreachDatabase, err)
	}
	overall := domain.ParseSeverity(exposure.Severity)
	if err := s.vendors.RecordBreachCheck(ctx, vendor.ID, exposure.BreachCount, overall, s.now()); err != nil {
		s.log.Warn("breach check bookkeeping failed", "vendor_id", vendor.ID, "error", err)
	}

	now := s.now()
	batch := make([]domain.Alert, 0, len(exposure.Breaches))
	skipped := 0
	for _, rec := range exposure.Breaches {
		a, err := normalize.Breach(vendor.ID, vendor.OrganizationID, rec, now)
		if err != nil {
			skipped++
			s.log.Warn("dropped breach record", "vendor_id", vendor.ID, "error", err)
			continue
		}
		batch = append(batch, a)
	}

	created, err := s.alerts.UpsertBatch(ctx, batch)
	if err != nil {
		return 0, skipped, persistenceErr(domain.SourceBreachDatabase, err)
	}
	return created, skipped, nil
}

// refreshRating pulls the external cyber rating into the vendor bookkeeping
// so the calculator can use it. A vendor without a rating is not an error.
func (s *Service) refreshRating(ctx context.Context, vendor domain.Vendor, overrideDomain string) *domain.SourceError {
	lookup := overrideDomain
	if lookup == "" {
		lookup = vendor.Domain
	}
	registrable, err := registrableDomain(lookup)
	if err != nil {
		return providerErr(domain.SourceCyberRating, err)
	}
	rating, err := s.rating.Rating(ctx, registrable)
	if err != nil {
		return providerErr(domain.SourceCyberRating, err)
	}
	if rating == nil {
		return nil
	}
	if err := s.vendors.RecordCyberRating(ctx, vendor.ID, rating.Score, rating.Grade, s.now()); err != nil {
		return persistenceErr(domain.SourceCyberRating, err)
	}
	return nil
}

// registrableDomain reduces a website URL or bare host to its eTLD+1 so
// provider lookups key on the same domain the breach database indexes.
func registrableDomain(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("vendor has no domain on record")
	}
	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("unusable domain %q: %w", raw, err)
		}
		host = u.Hostname()
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return registrable, nil
}

func providerErr(src domain.Source, err error) *domain.SourceError {
	return &domain.SourceError{Source: src, Stage: "provider", Message: err.Error()}
}

func persistenceErr(src domain.Source, err error) *domain.SourceError {
	return &domain.SourceError{Source: src, Stage: "persistence", Message: err.Error()}
}
