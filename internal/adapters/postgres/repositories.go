package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"riskwatch/internal/domain"
	"riskwatch/internal/ports"
)

// AlertRepository

const alertColumns = `id, vendor_id, organization_id, source, external_id, alert_type, severity,
	headline, summary, url, published_at, is_read, is_dismissed, created_at`

// UpsertBatch inserts alerts with duplicate-ignoring semantics on the natural
// key (vendor_id, source, external_id). The returned count reflects rows
// actually inserted, so a re-run of the same sync reports zero created.
func (db *DB) UpsertBatch(ctx context.Context, alerts []domain.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, a := range alerts {
		batch.Queue(`
			INSERT INTO alerts (id, vendor_id, organization_id, source, external_id, alert_type,
				severity, headline, summary, url, published_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (vendor_id, source, external_id) DO NOTHING
		`, a.ID, a.VendorID, a.OrganizationID, a.Source, a.ExternalID, a.AlertType,
			a.Severity, a.Headline, a.Summary, a.URL, a.PublishedAt, a.CreatedAt)
	}

	br := db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	created := 0
	for range alerts {
		tag, err := br.Exec()
		if err != nil {
			return created, fmt.Errorf("upsert alert: %w", err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func (db *DB) RecentByVendor(ctx context.Context, vendorID string, q ports.AlertQuery) ([]domain.Alert, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	var since *time.Time
	if !q.Since.IsZero() {
		since = &q.Since
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE vendor_id = $1
		  AND ($2::timestamptz IS NULL OR published_at >= $2)
		  AND ($3 = '' OR source = $3)
		  AND ($4 OR is_dismissed = false)
		ORDER BY published_at DESC
		LIMIT $5
	`, vendorID, since, string(q.Source), q.IncludeDismissed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.VendorID, &a.OrganizationID, &a.Source, &a.ExternalID,
			&a.AlertType, &a.Severity, &a.Headline, &a.Summary, &a.URL,
			&a.PublishedAt, &a.IsRead, &a.IsDismissed, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) MarkRead(ctx context.Context, alertID string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE alerts SET is_read = true WHERE id = $1`, alertID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) Dismiss(ctx context.Context, alertID string) error {
	// dismissed alerts drop out of scoring but stay for audit
	tag, err := db.Pool.Exec(ctx, `UPDATE alerts SET is_dismissed = true WHERE id = $1`, alertID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ScoreRepository

type componentSet struct {
	News   domain.ScoreComponent `json:"news"`
	Breach domain.ScoreComponent `json:"breach"`
	Filing domain.ScoreComponent `json:"filing"`
	Cyber  domain.ScoreComponent `json:"cyber"`
}

// Save writes the current score projection and appends its history row in one
// transaction; the history stays append-only.
func (db *DB) Save(ctx context.Context, score domain.VendorRiskScore, triggerEvent string) error {
	compsJSON, err := json.Marshal(componentSet{
		News:   score.NewsScore,
		Breach: score.BreachScore,
		Filing: score.FilingScore,
		Cyber:  score.CyberScore,
	})
	if err != nil {
		return err
	}
	factors := score.TopRiskFactors
	if factors == nil {
		factors = []domain.RiskFactor{}
	}
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return err
	}

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO vendor_risk_scores (vendor_id, composite_score, risk_level, previous_score,
			score_trend, trend_change, critical_alert_count, high_alert_count,
			unresolved_alert_count, components, top_risk_factors, calculated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (vendor_id) DO UPDATE SET
			composite_score = EXCLUDED.composite_score,
			risk_level = EXCLUDED.risk_level,
			previous_score = EXCLUDED.previous_score,
			score_trend = EXCLUDED.score_trend,
			trend_change = EXCLUDED.trend_change,
			critical_alert_count = EXCLUDED.critical_alert_count,
			high_alert_count = EXCLUDED.high_alert_count,
			unresolved_alert_count = EXCLUDED.unresolved_alert_count,
			components = EXCLUDED.components,
			top_risk_factors = EXCLUDED.top_risk_factors,
			calculated_at = EXCLUDED.calculated_at,
			version = EXCLUDED.version
	`, score.VendorID, score.CompositeScore, score.RiskLevel, score.PreviousScore,
		score.ScoreTrend, score.TrendChange, score.CriticalAlertCount, score.HighAlertCount,
		score.UnresolvedAlertCount, compsJSON, factorsJSON, score.CalculatedAt, score.Version); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO vendor_risk_score_history (vendor_id, composite_score, risk_level,
			news_score, breach_score, filing_score, cyber_score, trigger_event, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, score.VendorID, score.CompositeScore, score.RiskLevel,
		score.NewsScore.Score, score.BreachScore.Score, score.FilingScore.Score, score.CyberScore.Score,
		triggerEvent, score.CalculatedAt)
	return err
}

func (db *DB) Latest(ctx context.Context, vendorID string) (*domain.VendorRiskScore, error) {
	var (
		score       domain.VendorRiskScore
		compsJSON   []byte
		factorsJSON []byte
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT vendor_id, composite_score, risk_level, previous_score, score_trend, trend_change,
			critical_alert_count, high_alert_count, unresolved_alert_count,
			components, top_risk_factors, calculated_at, version
		FROM vendor_risk_scores
		WHERE vendor_id = $1
	`, vendorID).Scan(&score.VendorID, &score.CompositeScore, &score.RiskLevel, &score.PreviousScore,
		&score.ScoreTrend, &score.TrendChange, &score.CriticalAlertCount, &score.HighAlertCount,
		&score.UnresolvedAlertCount, &compsJSON, &factorsJSON, &score.CalculatedAt, &score.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var comps componentSet
	if err := json.Unmarshal(compsJSON, &comps); err != nil {
		return nil, fmt.Errorf("decode score components: %w", err)
	}
	score.NewsScore = comps.News
	score.BreachScore = comps.Breach
	score.FilingScore = comps.Filing
	score.CyberScore = comps.Cyber
	if err := json.Unmarshal(factorsJSON, &score.TopRiskFactors); err != nil {
		return nil, fmt.Errorf("decode risk factors: %w", err)
	}
	return &score, nil
}

// VendorRepository

func (db *DB) Get(ctx context.Context, vendorID string) (domain.Vendor, error) {
	var v domain.Vendor
	var severity string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, organization_id, name, domain, filing_registry_id, keywords,
			last_news_sync, last_filings_sync, last_breach_check,
			breach_count, breach_severity, cyber_score, cyber_grade
		FROM vendors
		WHERE id = $1
	`, vendorID).Scan(&v.ID, &v.OrganizationID, &v.Name, &v.Domain, &v.FilingRegistryID, &v.Keywords,
		&v.LastNewsSync, &v.LastFilingsSync, &v.LastBreachCheck,
		&v.BreachCount, &severity, &v.CyberScore, &v.CyberGrade)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	v.BreachSeverity = domain.Severity(severity)
	return v, nil
}

func (db *DB) RecordNewsSync(ctx context.Context, vendorID string, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `UPDATE vendors SET last_news_sync = $2 WHERE id = $1`, vendorID, at)
	return err
}

func (db *DB) RecordFilingsSync(ctx context.Context, vendorID string, registryID string, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE vendors SET last_filings_sync = $2,
			filing_registry_id = CASE WHEN $3 <> '' THEN $3 ELSE filing_registry_id END
		WHERE id = $1
	`, vendorID, at, registryID)
	return err
}

func (db *DB) RecordBreachCheck(ctx context.Context, vendorID string, count int, severity domain.Severity, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE vendors SET last_breach_check = $2, breach_count = $3, breach_severity = $4
		WHERE id = $1
	`, vendorID, at, count, string(severity))
	return err
}

func (db *DB) RecordCyberRating(ctx context.Context, vendorID string, score float64, grade string, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE vendors SET cyber_score = $2, cyber_grade = $3, cyber_rated_at = $4
		WHERE id = $1
	`, vendorID, score, grade, at)
	return err
}

var ErrNotFound = errString("not found")

type errString string

func (e errString) Error() string { return string(e) }
