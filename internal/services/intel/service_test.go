package intel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/domain"
	"riskwatch/internal/ports"
	"riskwatch/internal/scoring"
)

// fakeStore is an in-memory stand-in for the postgres adapter. It enforces
// the same natural-key dedup semantics the real UpsertBatch has.
type fakeStore struct {
	mu      sync.Mutex
	vendors map[string]*domain.Vendor
	alerts  map[string]domain.Alert // natural key -> alert
	scores  map[string]domain.VendorRiskScore
	history []string // "<vendor>:<trigger>"
}

func newFakeStore(vendors ...domain.Vendor) *fakeStore {
	s := &fakeStore{
		vendors: map[string]*domain.Vendor{},
		alerts:  map[string]domain.Alert{},
		scores:  map[string]domain.VendorRiskScore{},
	}
	for i := range vendors {
		v := vendors[i]
		s.vendors[v.ID] = &v
	}
	return s
}

func naturalKey(a domain.Alert) string {
	return a.VendorID + "|" + string(a.Source) + "|" + a.ExternalID
}

func (s *fakeStore) UpsertBatch(_ context.Context, alerts []domain.Alert) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for _, a := range alerts {
		key := naturalKey(a)
		if _, ok := s.alerts[key]; ok {
			continue
		}
		s.alerts[key] = a
		created++
	}
	return created, nil
}

func (s *fakeStore) RecentByVendor(_ context.Context, vendorID string, q ports.AlertQuery) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.VendorID != vendorID {
			continue
		}
		if !q.IncludeDismissed && a.IsDismissed {
			continue
		}
		if q.Source != "" && a.Source != q.Source {
			continue
		}
		if !q.Since.IsZero() && a.PublishedAt.Before(q.Since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeStore) MarkRead(_ context.Context, alertID string) error { return nil }
func (s *fakeStore) Dismiss(_ context.Context, alertID string) error  { return nil }

func (s *fakeStore) Save(_ context.Context, score domain.VendorRiskScore, trigger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.VendorID] = score
	s.history = append(s.history, score.VendorID+":"+trigger)
	return nil
}

func (s *fakeStore) Latest(_ context.Context, vendorID string) (*domain.VendorRiskScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score, ok := s.scores[vendorID]; ok {
		return &score, nil
	}
	return nil, nil
}

func (s *fakeStore) Get(_ context.Context, vendorID string) (domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vendors[vendorID]; ok {
		return *v, nil
	}
	return domain.Vendor{}, fmt.Errorf("vendor %s not found", vendorID)
}

func (s *fakeStore) RecordNewsSync(_ context.Context, vendorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[vendorID].LastNewsSync = &at
	return nil
}

func (s *fakeStore) RecordFilingsSync(_ context.Context, vendorID, registryID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vendors[vendorID]
	v.LastFilingsSync = &at
	if registryID != "" {
		v.FilingRegistryID = registryID
	}
	return nil
}

func (s *fakeStore) RecordBreachCheck(_ context.Context, vendorID string, count int, severity domain.Severity, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vendors[vendorID]
	v.LastBreachCheck = &at
	v.BreachCount = count
	v.BreachSeverity = severity
	return nil
}

func (s *fakeStore) RecordCyberRating(_ context.Context, vendorID string, score float64, grade string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vendors[vendorID]
	v.CyberScore = &score
	v.CyberGrade = grade
	return nil
}

// scripted providers

type fakeNews struct {
	articles []ports.NewsArticle
	err      error
}

func (f fakeNews) Search(context.Context, string, []string) ([]ports.NewsArticle, error) {
	return f.articles, f.err
}

type fakeFilings struct {
	result  ports.FilingsResult
	err     error
	failFor string // vendor name that triggers err
}

func (f fakeFilings) RecentFilings(_ context.Context, vendorName, _ string) (ports.FilingsResult, error) {
	if f.failFor != "" && vendorName == f.failFor {
		return ports.FilingsResult{}, fmt.Errorf("registry unavailable")
	}
	if f.err != nil {
		return ports.FilingsResult{}, f.err
	}
	return f.result, nil
}

type fakeBreach struct {
	exposure ports.BreachExposure
	err      error
}

func (f fakeBreach) CheckDomain(context.Context, string) (ports.BreachExposure, error) {
	return f.exposure, f.err
}

type fakeRating struct {
	rating *ports.CyberRating
	err    error
}

func (f fakeRating) Rating(context.Context, string) (*ports.CyberRating, error) {
	return f.rating, f.err
}

func testVendor(id, name string) domain.Vendor {
	return domain.Vendor{
		ID:             id,
		OrganizationID: "org1",
		Name:           name,
		Domain:         "https://www.example.com",
		Keywords:       []string{"breach"},
	}
}

func testDeps(store *fakeStore) Deps {
	now := time.Now()
	return Deps{
		Vendors: store,
		Alerts:  store,
		Scores:  store,
		News: fakeNews{articles: []ports.NewsArticle{
			{Title: "Vendor breached", URL: "https://news.example.com/a", SentimentLabel: "negative", AlertType: "breach", PublishedAt: now.AddDate(0, 0, -2)},
			{Title: "Quarterly results", URL: "https://news.example.com/b", SentimentLabel: "neutral", AlertType: "financial", PublishedAt: now.AddDate(0, 0, -5)},
		}},
		Filings: fakeFilings{result: ports.FilingsResult{
			CIK: "0000123456",
			Filings: []ports.Filing{
				{AccessionNumber: "acc-1", Form: "8-K", Description: "Material event", FiledAt: now.AddDate(0, 0, -3)},
			},
		}},
		Breach: fakeBreach{exposure: ports.BreachExposure{
			BreachCount: 1,
			Severity:    "critical",
			Breaches: []ports.BreachRecord{
				{Name: "ExampleCo2026", BreachDate: now.AddDate(0, 0, -5), PwnCount: 500000, Severity: "critical"},
			},
			CheckedAt: now,
		}},
		Rating:     fakeRating{rating: &ports.CyberRating{Score: 60, Grade: "C"}},
		BatchDelay: time.Millisecond,
	}
}

func TestSyncVendor_HappyPath(t *testing.T) {
	store := newFakeStore(testVendor("v1", "Acme"))
	svc := New(testDeps(store), scoring.DefaultConfig(), nil)

	res := svc.SyncVendor(context.Background(), "v1", domain.SyncOptions{})

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 4, res.AlertsCreated)
	assert.Equal(t, 0, res.Skipped)
	assert.Greater(t, res.Duration, time.Duration(0))

	// bookkeeping updated
	v := *store.vendors["v1"]
	assert.NotNil(t, v.LastNewsSync)
	assert.NotNil(t, v.LastFilingsSync)
	assert.NotNil(t, v.LastBreachCheck)
	assert.Equal(t, "0000123456", v.FilingRegistryID)
	assert.Equal(t, 1, v.BreachCount)
	assert.Equal(t, domain.SeverityCritical, v.BreachSeverity)
	require.NotNil(t, v.CyberScore)
	assert.Equal(t, 60.0, *v.CyberScore)

	// score persisted with all four components carrying evidence
	score, ok := store.scores["v1"]
	require.True(t, ok)
	assert.Equal(t, []string{"v1:intelligence_sync"}, store.history)
	assert.Greater(t, score.NewsScore.Weight, 0.0)
	assert.Greater(t, score.FilingScore.Weight, 0.0)
	assert.Greater(t, score.BreachScore.Weight, 0.0)
	assert.Equal(t, 1.0, score.CyberScore.Weight)
	assert.Greater(t, score.CompositeScore, 0.0)
}

// TestSyncVendor_Idempotent re-runs the same sync: no new rows, identical
// counts and composite.
func TestSyncVendor_Idempotent(t *testing.T) {
	store := newFakeStore(testVendor("v1", "Acme"))
	svc := New(testDeps(store), scoring.DefaultConfig(), nil)
	ctx := context.Background()

	first := svc.SyncVendor(ctx, "v1", domain.SyncOptions{})
	require.True(t, first.Success)
	firstScore := store.scores["v1"]

	second := svc.SyncVendor(ctx, "v1", domain.SyncOptions{})
	require.True(t, second.Success)
	secondScore := store.scores["v1"]

	assert.Equal(t, 0, second.AlertsCreated)
	assert.Equal(t, firstScore.UnresolvedAlertCount, secondScore.UnresolvedAlertCount)
	assert.Equal(t, firstScore.CriticalAlertCount, secondScore.CriticalAlertCount)
	assert.InDelta(t, firstScore.CompositeScore, secondScore.CompositeScore, 0.5)
}

func TestSyncVendor_ProviderErrorDoesNotBlockOtherSources(t *testing.T) {
	store := newFakeStore(testVendor("v1", "Acme"))
	deps := testDeps(store)
	deps.Filings = fakeFilings{err: fmt.Errorf("registry timeout")}
	svc := New(deps, scoring.DefaultConfig(), nil)

	res := svc.SyncVendor(context.Background(), "v1", domain.SyncOptions{})

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.AlertsCreated, "news and breach alerts still land")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, domain.SourceFilingRegistry, res.Errors[0].Source)
	assert.Equal(t, "provider", res.Errors[0].Stage)

	// scoring still proceeds on the data that is available
	_, ok := store.scores["v1"]
	assert.True(t, ok)
}

func TestSyncVendor_NormalizationFailuresCountedNotFatal(t *testing.T) {
	store := newFakeStore(testVendor("v1", "Acme"))
	deps := testDeps(store)
	deps.News = fakeNews{articles: []ports.NewsArticle{
		{Title: "no link at all"},
		{Title: "fine", URL: "https://news.example.com/ok", SentimentLabel: "neutral"},
	}}
	svc := New(deps, scoring.DefaultConfig(), nil)

	res := svc.SyncVendor(context.Background(), "v1", domain.SyncOptions{})

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 1, res.Skipped)
}

func TestSyncVendor_UnknownVendor(t *testing.T) {
	store := newFakeStore()
	svc := New(testDeps(store), scoring.DefaultConfig(), nil)

	res := svc.SyncVendor(context.Background(), "missing", domain.SyncOptions{})

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "persistence", res.Errors[0].Stage)
}

func TestSyncVendor_SourceSelection(t *testing.T) {
	store := newFakeStore(testVendor("v1", "Acme"))
	deps := testDeps(store)
	deps.Rating = nil
	svc := New(deps, scoring.DefaultConfig(), nil)

	res := svc.SyncVendor(context.Background(), "v1", domain.SyncOptions{
		Sources: []domain.Source{domain.SourceNews},
	})

	require.True(t, res.Success)
	assert.Equal(t, 2, res.AlertsCreated, "only the news driver ran")
	assert.Nil(t, store.vendors["v1"].LastFilingsSync)
	assert.Nil(t, store.vendors["v1"].LastBreachCheck)
}

// TestSyncBatch_VendorFailuresAreIndependent: vendor two's filings provider
// fails, vendors one and three still complete.
func TestSyncBatch_VendorFailuresAreIndependent(t *testing.T) {
	store := newFakeStore(
		testVendor("v1", "Vendor One"),
		testVendor("v2", "Vendor Two"),
		testVendor("v3", "Vendor Three"),
	)
	deps := testDeps(store)
	deps.Filings = fakeFilings{
		failFor: "Vendor Two",
		result: ports.FilingsResult{Filings: []ports.Filing{
			{AccessionNumber: "acc-1", Form: "10-Q", FiledAt: time.Now().AddDate(0, 0, -1)},
		}},
	}
	svc := New(deps, scoring.DefaultConfig(), nil)

	batch := svc.SyncBatch(context.Background(), []string{"v1", "v2", "v3"}, domain.SyncOptions{})

	require.Len(t, batch.Results, 3)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)

	assert.True(t, batch.Results[0].Success)
	assert.True(t, batch.Results[2].Success)

	failed := batch.Results[1]
	assert.False(t, failed.Success)
	require.Len(t, failed.Errors, 1)
	assert.Equal(t, domain.SourceFilingRegistry, failed.Errors[0].Source)
	assert.Equal(t, 3, failed.AlertsCreated, "news and breach still synced for vendor two")
}

func TestGetIntelligence(t *testing.T) {
	store := newFakeStore(testVendor("v1", "Acme"))
	now := time.Now()
	seed := []domain.Alert{
		{ID: "a1", VendorID: "v1", Source: domain.SourceNews, ExternalID: "n1", Severity: domain.SeverityHigh, PublishedAt: now.AddDate(0, 0, -1)},
		{ID: "a2", VendorID: "v1", Source: domain.SourceFilingRegistry, ExternalID: "f1", Severity: domain.SeverityMedium, IsRead: true, PublishedAt: now.AddDate(0, 0, -2)},
		{ID: "a3", VendorID: "v1", Source: domain.SourceBreachDatabase, ExternalID: "b1", Severity: domain.SeverityCritical, IsDismissed: true, PublishedAt: now.AddDate(0, 0, -3)},
	}
	_, err := store.UpsertBatch(context.Background(), seed)
	require.NoError(t, err)

	svc := New(testDeps(store), scoring.DefaultConfig(), nil)
	view, err := svc.GetIntelligence(context.Background(), "v1")
	require.NoError(t, err)

	assert.Len(t, view.NewsAlerts, 1)
	assert.Len(t, view.FilingAlerts, 1)
	assert.Empty(t, view.BreachAlerts, "dismissed alerts stay out of the view")
	assert.Equal(t, 1, view.UnreadCount)
	assert.Equal(t, 1, view.EscalatedCount)
	assert.Equal(t, domain.SeverityHigh, view.OverallSeverity)
}
