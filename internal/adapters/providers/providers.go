package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"riskwatch/internal/ports"
)

// HTTP clients for the external intelligence providers. The providers return
// already-normalized records (see the ports payload shapes); these clients
// only speak the JSON envelope and map it onto the port types.

// Config points the clients at their endpoints.
type Config struct {
	NewsURL    string
	FilingsURL string
	BreachURL  string
	RatingURL  string
	APIKey     string
	Timeout    time.Duration
}

func httpClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func getJSON(ctx context.Context, client *http.Client, apiKey, rawurl string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var errNotFound = fmt.Errorf("not found")

// NewsClient queries the news search provider.
type NewsClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewNewsClient(cfg Config) *NewsClient {
	return &NewsClient{base: strings.TrimRight(cfg.NewsURL, "/"), apiKey: cfg.APIKey, http: httpClient(cfg)}
}

type newsWire struct {
	Articles []struct {
		Title           string    `json:"title"`
		Description     string    `json:"description"`
		URL             string    `json:"url"`
		URLToImage      string    `json:"urlToImage"`
		PublishedAt     time.Time `json:"publishedAt"`
		SentimentScore  float64   `json:"sentimentScore"`
		SentimentLabel  string    `json:"sentimentLabel"`
		MatchedKeywords []string  `json:"matchedKeywords"`
		AlertType       string    `json:"alertType"`
	} `json:"articles"`
}

func (c *NewsClient) Search(ctx context.Context, vendorName string, keywords []string) ([]ports.NewsArticle, error) {
	q := url.Values{}
	q.Set("q", vendorName)
	if len(keywords) > 0 {
		q.Set("keywords", strings.Join(keywords, ","))
	}
	q.Set("pageSize", "25")

	var wire newsWire
	if err := getJSON(ctx, c.http, c.apiKey, c.base+"/articles?"+q.Encode(), &wire); err != nil {
		return nil, fmt.Errorf("news search for %q: %w", vendorName, err)
	}
	out := make([]ports.NewsArticle, 0, len(wire.Articles))
	for _, a := range wire.Articles {
		out = append(out, ports.NewsArticle{
			Title:           a.Title,
			Description:     a.Description,
			URL:             a.URL,
			ImageURL:        a.URLToImage,
			PublishedAt:     a.PublishedAt,
			SentimentScore:  a.SentimentScore,
			SentimentLabel:  a.SentimentLabel,
			MatchedKeywords: a.MatchedKeywords,
			AlertType:       a.AlertType,
		})
	}
	return out, nil
}

// FilingsClient queries the filings registry provider.
type FilingsClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewFilingsClient(cfg Config) *FilingsClient {
	return &FilingsClient{base: strings.TrimRight(cfg.FilingsURL, "/"), apiKey: cfg.APIKey, http: httpClient(cfg)}
}

type filingsWire struct {
	Filings []struct {
		AccessionNumber string    `json:"accessionNumber"`
		Form            string    `json:"form"`
		Description     string    `json:"description"`
		FiledAt         time.Time `json:"filedAt"`
		PrimaryDocURL   string    `json:"primaryDocUrl"`
		FilingURL       string    `json:"filingUrl"`
	} `json:"filings"`
	Company struct {
		CIK    string `json:"cik"`
		Ticker string `json:"ticker"`
	} `json:"company"`
	TotalFilings int `json:"totalFilings"`
}

func (c *FilingsClient) RecentFilings(ctx context.Context, vendorName, knownID string) (ports.FilingsResult, error) {
	q := url.Values{}
	q.Set("company", vendorName)
	if knownID != "" {
		q.Set("cik", knownID)
	}
	q.Set("limit", "20")

	var wire filingsWire
	if err := getJSON(ctx, c.http, c.apiKey, c.base+"/filings?"+q.Encode(), &wire); err != nil {
		return ports.FilingsResult{}, fmt.Errorf("filings for %q: %w", vendorName, err)
	}
	res := ports.FilingsResult{
		CIK:          wire.Company.CIK,
		Ticker:       wire.Company.Ticker,
		TotalFilings: wire.TotalFilings,
	}
	for _, f := range wire.Filings {
		res.Filings = append(res.Filings, ports.Filing{
			AccessionNumber: f.AccessionNumber,
			Form:            f.Form,
			Description:     f.Description,
			FiledAt:         f.FiledAt,
			PrimaryDocURL:   f.PrimaryDocURL,
			FilingURL:       f.FilingURL,
		})
	}
	return res, nil
}

// BreachClient queries the breach-database lookup.
type BreachClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewBreachClient(cfg Config) *BreachClient {
	return &BreachClient{base: strings.TrimRight(cfg.BreachURL, "/"), apiKey: cfg.APIKey, http: httpClient(cfg)}
}

type breachWire struct {
	BreachCount int    `json:"breachCount"`
	TotalPwned  int64  `json:"totalPwned"`
	Severity    string `json:"severity"`
	Breaches    []struct {
		Name        string    `json:"name"`
		BreachDate  time.Time `json:"breachDate"`
		PwnCount    int64     `json:"pwnCount"`
		Severity    string    `json:"severity"`
		DataClasses []string  `json:"dataClasses"`
	} `json:"breaches"`
	CheckedAt time.Time `json:"checkedAt"`
}

func (c *BreachClient) CheckDomain(ctx context.Context, domain string) (ports.BreachExposure, error) {
	var wire breachWire
	err := getJSON(ctx, c.http, c.apiKey, c.base+"/breaches/"+url.PathEscape(domain), &wire)
	if err == errNotFound {
		// domain unknown to the breach database: clean, not an error
		return ports.BreachExposure{CheckedAt: time.Now()}, nil
	}
	if err != nil {
		return ports.BreachExposure{}, fmt.Errorf("breach lookup for %q: %w", domain, err)
	}
	exp := ports.BreachExposure{
		BreachCount: wire.BreachCount,
		TotalPwned:  wire.TotalPwned,
		Severity:    wire.Severity,
		CheckedAt:   wire.CheckedAt,
	}
	for _, b := range wire.Breaches {
		exp.Breaches = append(exp.Breaches, ports.BreachRecord{
			Name:        b.Name,
			BreachDate:  b.BreachDate,
			PwnCount:    b.PwnCount,
			Severity:    b.Severity,
			DataClasses: b.DataClasses,
		})
	}
	return exp, nil
}

// RatingClient queries the external cyber-rating provider.
type RatingClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewRatingClient(cfg Config) *RatingClient {
	return &RatingClient{base: strings.TrimRight(cfg.RatingURL, "/"), apiKey: cfg.APIKey, http: httpClient(cfg)}
}

func (c *RatingClient) Rating(ctx context.Context, domain string) (*ports.CyberRating, error) {
	var wire struct {
		Score float64 `json:"score"`
		Grade string  `json:"grade"`
	}
	err := getJSON(ctx, c.http, c.apiKey, c.base+"/ratings/"+url.PathEscape(domain), &wire)
	if err == errNotFound {
		// unrated vendor: the cyber component is simply excluded
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cyber rating for %q: %w", domain, err)
	}
	return &ports.CyberRating{Score: wire.Score, Grade: wire.Grade}, nil
}
