package normalize

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"riskwatch/internal/domain"
	"riskwatch/internal/ports"
)

// Error reports a provider record that could not be normalized. Such records
// are dropped and counted by the caller, never silently scored.
type Error struct {
	Source domain.Source
	Field  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s record: missing %s", e.Source, e.Field)
}

// News converts one provider article into an Alert. The canonical URL is the
// stable external id; an article without a URL cannot be deduplicated and is
// rejected.
func News(vendorID, orgID string, rec ports.NewsArticle, now time.Time) (domain.Alert, error) {
	canonical, err := canonicalURL(rec.URL)
	if err != nil {
		return domain.Alert{}, &Error{Source: domain.SourceNews, Field: "url"}
	}
	at := alertType(rec.AlertType)
	published := rec.PublishedAt
	if published.IsZero() {
		published = now
	}
	return domain.Alert{
		ID:             uuid.NewString(),
		VendorID:       vendorID,
		OrganizationID: orgID,
		Source:         domain.SourceNews,
		ExternalID:     canonical,
		AlertType:      at,
		Severity:       newsSeverity(rec.SentimentLabel, at),
		Headline:       rec.Title,
		Summary:        rec.Description,
		URL:            rec.URL,
		PublishedAt:    published,
		CreatedAt:      now,
	}, nil
}

// Filing converts one registry filing into an Alert keyed by its accession
// number.
func Filing(vendorID, orgID string, rec ports.Filing, now time.Time) (domain.Alert, error) {
	if strings.TrimSpace(rec.AccessionNumber) == "" {
		return domain.Alert{}, &Error{Source: domain.SourceFilingRegistry, Field: "accessionNumber"}
	}
	published := rec.FiledAt
	if published.IsZero() {
		published = now
	}
	headline := rec.Form
	if rec.Description != "" {
		headline = rec.Form + ": " + rec.Description
	}
	link := rec.PrimaryDocURL
	if link == "" {
		link = rec.FilingURL
	}
	return domain.Alert{
		ID:             uuid.NewString(),
		VendorID:       vendorID,
		OrganizationID: orgID,
		Source:         domain.SourceFilingRegistry,
		ExternalID:     rec.AccessionNumber,
		AlertType:      domain.AlertTypeFiling,
		Severity:       filingSeverity(rec.Form, rec.Description),
		Headline:       headline,
		Summary:        rec.Description,
		URL:            link,
		PublishedAt:    published,
		CreatedAt:      now,
	}, nil
}

// Breach converts one breach-database record into an Alert. Severity comes
// straight from the lookup, which already grades by records exposed and data
// sensitivity.
func Breach(vendorID, orgID string, rec ports.BreachRecord, now time.Time) (domain.Alert, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return domain.Alert{}, &Error{Source: domain.SourceBreachDatabase, Field: "name"}
	}
	published := rec.BreachDate
	if published.IsZero() {
		published = now
	}
	summary := fmt.Sprintf("%d accounts exposed", rec.PwnCount)
	if len(rec.DataClasses) > 0 {
		summary += "; data classes: " + strings.Join(rec.DataClasses, ", ")
	}
	return domain.Alert{
		ID:             uuid.NewString(),
		VendorID:       vendorID,
		OrganizationID: orgID,
		Source:         domain.SourceBreachDatabase,
		ExternalID:     fmt.Sprintf("%s:%s", domain.SourceBreachDatabase, rec.Name),
		AlertType:      domain.AlertTypeBreach,
		Severity:       breachSeverity(rec.Severity, rec.PwnCount),
		Headline:       "Data breach: " + rec.Name,
		Summary:        summary,
		PublishedAt:    published,
		CreatedAt:      now,
	}, nil
}

// canonicalURL lowercases the host and strips query and fragment so the same
// article shared with different tracking params dedups to one alert.
func canonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("unusable url %q", raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func alertType(s string) domain.AlertType {
	switch domain.AlertType(strings.ToLower(strings.TrimSpace(s))) {
	case domain.AlertTypeNews:
		return domain.AlertTypeNews
	case domain.AlertTypeRegulatory:
		return domain.AlertTypeRegulatory
	case domain.AlertTypeFinancial:
		return domain.AlertTypeFinancial
	case domain.AlertTypeLeadership:
		return domain.AlertTypeLeadership
	case domain.AlertTypeBreach:
		return domain.AlertTypeBreach
	case domain.AlertTypeFiling:
		return domain.AlertTypeFiling
	default:
		return domain.AlertTypeOther
	}
}

func newsSeverity(sentimentLabel string, at domain.AlertType) domain.Severity {
	switch strings.ToLower(sentimentLabel) {
	case "negative":
		switch at {
		case domain.AlertTypeBreach:
			return domain.SeverityCritical
		case domain.AlertTypeRegulatory, domain.AlertTypeFinancial:
			return domain.SeverityHigh
		default:
			return domain.SeverityMedium
		}
	case "positive":
		return domain.SeverityLow
	default:
		// neutral or unlabeled coverage still matters more for risky topics
		if at == domain.AlertTypeBreach || at == domain.AlertTypeRegulatory {
			return domain.SeverityMedium
		}
		return domain.SeverityLow
	}
}

// materialFlags are description markers that escalate a filing's severity.
var materialFlags = []string{
	"bankruptcy",
	"investigation",
	"material weakness",
	"restatement",
	"delisting",
	"going concern",
}

func filingSeverity(form, description string) domain.Severity {
	form = strings.ToUpper(strings.TrimSpace(form))
	desc := strings.ToLower(description)
	flagged := false
	for _, f := range materialFlags {
		if strings.Contains(desc, f) {
			flagged = true
			break
		}
	}
	switch {
	case strings.HasPrefix(form, "8-K"):
		if flagged {
			return domain.SeverityCritical
		}
		return domain.SeverityHigh
	case strings.HasPrefix(form, "NT "):
		// late filing notice
		if flagged {
			return domain.SeverityHigh
		}
		return domain.SeverityMedium
	default:
		if flagged {
			return domain.SeverityHigh
		}
		return domain.SeverityLow
	}
}

func breachSeverity(provided string, pwnCount int64) domain.Severity {
	switch domain.Severity(strings.ToLower(strings.TrimSpace(provided))) {
	case domain.SeverityCritical:
		return domain.SeverityCritical
	case domain.SeverityHigh:
		return domain.SeverityHigh
	case domain.SeverityMedium:
		return domain.SeverityMedium
	case domain.SeverityLow:
		return domain.SeverityLow
	}
	// ungraded record: fall back to exposure volume
	switch {
	case pwnCount >= 10_000_000:
		return domain.SeverityCritical
	case pwnCount >= 1_000_000:
		return domain.SeverityHigh
	case pwnCount >= 100_000:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
