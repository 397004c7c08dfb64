package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"riskwatch/internal/domain"
)

// Version tags persisted scores so historical rows stay reproducible when the
// algorithm changes.
const Version = "2.1.0"

// Inputs is one vendor's evidence snapshot. Everything here is read before
// scoring begins; the calculator itself performs no I/O and may run
// concurrently for different vendors.
type Inputs struct {
	Alerts []domain.Alert

	// Breach exposure known at the vendor level, which may exist even when
	// no discrete breach alert rows do.
	BreachCount    int
	BreachSeverity domain.Severity

	// External cyber rating, 0-100 with higher meaning safer. Nil when the
	// rating provider has nothing for this vendor.
	CyberRating *float64
	CyberGrade  string

	Previous *domain.VendorRiskScore
	Now      time.Time
}

// severityWeights set the base contribution of one alert before type and
// decay adjustments.
var severityWeights = map[domain.Severity]float64{
	domain.SeverityCritical: 100,
	domain.SeverityHigh:     70,
	domain.SeverityMedium:   40,
	domain.SeverityLow:      15,
}

// typeWeights boost high-confidence signal classes and discount generic news
// coverage.
var typeWeights = map[domain.AlertType]float64{
	domain.AlertTypeBreach:     1.3,
	domain.AlertTypeRegulatory: 1.2,
	domain.AlertTypeFinancial:  1.1,
	domain.AlertTypeFiling:     1.0,
	domain.AlertTypeLeadership: 0.9,
	domain.AlertTypeOther:      0.8,
	domain.AlertTypeNews:       0.7,
}

// Calculate produces the full scoring outcome for one vendor. It is pure:
// same inputs and config, same score.
func Calculate(in Inputs, cfg Config) domain.VendorRiskScore {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	var news, filing, breach []domain.Alert
	for _, a := range in.Alerts {
		if a.IsDismissed {
			continue
		}
		switch a.Source {
		case domain.SourceNews:
			news = append(news, a)
		case domain.SourceFilingRegistry:
			filing = append(filing, a)
		case domain.SourceBreachDatabase:
			breach = append(breach, a)
		}
	}

	newsComp := alertComponent(domain.SourceNews, news, cfg, now)
	filingComp := alertComponent(domain.SourceFilingRegistry, filing, cfg, now)
	breachComp := breachComponent(breach, in.BreachCount, in.BreachSeverity, cfg, now)
	cyberComp := cyberComponent(in.CyberRating, in.CyberGrade, cfg, now)

	score := domain.VendorRiskScore{
		NewsScore:    newsComp,
		BreachScore:  breachComp,
		FilingScore:  filingComp,
		CyberScore:   cyberComp,
		CalculatedAt: now,
		Version:      Version,
	}

	score.CriticalAlertCount = newsComp.CriticalCount + breachComp.CriticalCount + filingComp.CriticalCount
	score.HighAlertCount = newsComp.HighCount + breachComp.HighCount + filingComp.HighCount
	score.UnresolvedAlertCount = newsComp.AlertCount + breachComp.AlertCount + filingComp.AlertCount

	score.CompositeScore = composite(cfg, score)
	score.RiskLevel = classify(score.CompositeScore, cfg)
	score.ScoreTrend, score.TrendChange, score.PreviousScore = trend(score.CompositeScore, in.Previous)
	score.TopRiskFactors = topFactors(newsComp, breachComp, filingComp, cyberComp)
	return score
}

// decayFactor shrinks an alert's influence with age: full weight through the
// severity's decay window (boundary inclusive), linear down to zero at the
// hard age cutoff.
func decayFactor(ageDays float64, sev domain.Severity, cfg Config) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	window := cfg.decayDays(sev)
	switch {
	case ageDays > cfg.MaxAlertAgeDays:
		return 0
	case ageDays <= window:
		return 1
	default:
		return (cfg.MaxAlertAgeDays - ageDays) / (cfg.MaxAlertAgeDays - window)
	}
}

// alertComponent scores one alert-driven source. Fully decayed alerts are
// excluded from the score and from every count.
func alertComponent(src domain.Source, alerts []domain.Alert, cfg Config, now time.Time) domain.ScoreComponent {
	var comp domain.ScoreComponent
	var sum float64
	recent := 0

	for _, a := range alerts {
		ageDays := now.Sub(a.PublishedAt).Hours() / 24
		d := decayFactor(ageDays, a.Severity, cfg)
		if d <= 0 {
			continue
		}
		contribution := severityWeights[a.Severity] * typeWeights[a.AlertType] * d
		sum += contribution
		comp.Weight += d
		comp.AlertCount++
		switch a.Severity {
		case domain.SeverityCritical:
			comp.CriticalCount++
		case domain.SeverityHigh:
			comp.HighCount++
		}
		if comp.LatestAlertDate == nil || a.PublishedAt.After(*comp.LatestAlertDate) {
			t := a.PublishedAt
			comp.LatestAlertDate = &t
		}
		if ageDays <= cfg.StormWindowDays {
			recent++
		}
		if a.Severity == domain.SeverityHigh || a.Severity == domain.SeverityCritical {
			comp.Factors = append(comp.Factors, domain.RiskFactor{
				Source:      src,
				Description: a.Headline,
				Severity:    a.Severity,
				Impact:      contribution,
				OccurredAt:  a.PublishedAt,
			})
		}
	}

	if comp.AlertCount == 0 {
		return comp
	}

	base := sum / comp.Weight * 0.8
	storm := 1.0
	if recent >= cfg.StormTriggerCount {
		storm = 1 + 0.1*float64(recent-cfg.StormTriggerCount)
	}
	if storm < 1 {
		storm = 1
	}
	comp.Score = math.Min(100, base*storm)
	comp.Factors = rankFactors(comp.Factors)
	return comp
}

// breachComponent layers a volume/severity bonus over the alert-driven score:
// breach exposure may be known at the vendor level even without discrete
// alert rows.
func breachComponent(alerts []domain.Alert, breachCount int, overall domain.Severity, cfg Config, now time.Time) domain.ScoreComponent {
	comp := alertComponent(domain.SourceBreachDatabase, alerts, cfg, now)
	if breachCount <= 0 {
		return comp
	}

	bonus := math.Min(1, float64(breachCount)/10) * 30
	switch overall {
	case domain.SeverityCritical:
		bonus += 20
	case domain.SeverityHigh:
		bonus += 10
	}
	comp.Score = math.Min(100, comp.Score+bonus)
	if comp.Weight == 0 {
		// no surviving alert rows, but the exposure itself is evidence
		comp.Weight = 1
	}
	return comp
}

// cyberComponent inverts the external "goodness" rating into risk. A missing
// rating excludes the component from composition instead of reading as safe.
func cyberComponent(rating *float64, grade string, cfg Config, now time.Time) domain.ScoreComponent {
	var comp domain.ScoreComponent
	if rating == nil {
		return comp
	}
	risk := 100 - *rating
	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}
	comp.Score = risk
	comp.Weight = 1
	if risk >= cfg.Thresholds.High {
		sev := domain.SeverityHigh
		if risk >= cfg.Thresholds.Critical {
			sev = domain.SeverityCritical
		}
		desc := fmt.Sprintf("External cyber rating %.0f/100", *rating)
		if grade != "" {
			desc = fmt.Sprintf("External cyber rating %s (%.0f/100)", grade, *rating)
		}
		comp.Factors = []domain.RiskFactor{{
			Source:      domain.SourceCyberRating,
			Description: desc,
			Severity:    sev,
			Impact:      risk,
			OccurredAt:  now,
		}}
	}
	return comp
}

// composite weight-averages the components that produced evidence, then
// applies the critical-alert escalation multiplier. Components with zero
// weight are excluded so missing data never dilutes the score.
func composite(cfg Config, s domain.VendorRiskScore) float64 {
	var num, den float64
	add := func(w float64, c domain.ScoreComponent) {
		if c.Weight <= 0 {
			return
		}
		num += w * c.Score
		den += w
	}
	add(cfg.Weights.News, s.NewsScore)
	add(cfg.Weights.Breach, s.BreachScore)
	add(cfg.Weights.Filing, s.FilingScore)
	add(cfg.Weights.Cyber, s.CyberScore)
	if den == 0 {
		return 0
	}

	out := num / den
	switch {
	case s.CriticalAlertCount >= 3:
		out *= 1.30
	case s.CriticalAlertCount >= 1:
		out *= 1.15
	}
	return math.Min(100, math.Max(0, out))
}

func classify(composite float64, cfg Config) domain.RiskLevel {
	switch {
	case composite >= cfg.Thresholds.Critical:
		return domain.RiskLevelCritical
	case composite >= cfg.Thresholds.High:
		return domain.RiskLevelHigh
	case composite >= cfg.Thresholds.Medium:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}

// trend compares against the previous composite with a ±5 noise floor.
// Higher scores mean more risk, so a positive change degrades.
func trend(current float64, prev *domain.VendorRiskScore) (domain.ScoreTrend, float64, *float64) {
	if prev == nil {
		return domain.TrendStable, 0, nil
	}
	previous := prev.CompositeScore
	change := current - previous
	switch {
	case math.Abs(change) < 5:
		return domain.TrendStable, change, &previous
	case change > 0:
		return domain.TrendDegrading, change, &previous
	default:
		return domain.TrendImproving, change, &previous
	}
}

func topFactors(comps ...domain.ScoreComponent) []domain.RiskFactor {
	var all []domain.RiskFactor
	for _, c := range comps {
		all = append(all, c.Factors...)
	}
	return rankFactors(all)
}

// rankFactors sorts by impact descending and keeps the top five.
func rankFactors(factors []domain.RiskFactor) []domain.RiskFactor {
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Impact > factors[j].Impact
	})
	if len(factors) > 5 {
		factors = factors[:5]
	}
	return factors
}
