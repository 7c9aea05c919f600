// Package scholar implements the Google Scholar source adapter backed by
// the SerpAPI search endpoint.
package scholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
	"github.com/helixir/scholarly-retrieval-service/internal/sources"
)

const (
	// DefaultBaseURL is the default SerpAPI endpoint.
	DefaultBaseURL = "https://serpapi.com/search"

	// DefaultRateLimit is the default rate limit (1 request per second).
	DefaultRateLimit = 1.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "Google Scholar"
)

// pdfURLRegex finds a PDF link embedded in snippet text.
var pdfURLRegex = regexp.MustCompile(`(?i)https?://\S+\.pdf`)

// yearRegex finds a four-digit publication year.
var yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Config holds configuration for the Google Scholar client.
type Config struct {
	// BaseURL is the SerpAPI endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the SerpAPI key. Required; without it the source is
	// disabled.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client implements the sources.Source interface for Google Scholar.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Compile-time check that Client implements Source.
var _ sources.Source = (*Client)(nil)

// New creates a new Google Scholar client. If httpClient is nil a
// rate-limited client is built from the configuration.
func New(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	if httpClient == nil {
		httpClient = sources.NewHTTPClient(sources.HTTPClientConfig{
			Source:    string(domain.SourceTypeGoogleScholar),
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Google Scholar via SerpAPI.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*sources.SearchResult, error) {
	start := time.Now()

	if c.config.APIKey == "" {
		return nil, domain.NewMissingCredentialError(string(domain.SourceTypeGoogleScholar), "api key")
	}

	params := url.Values{}
	params.Set("engine", "google_scholar")
	params.Set("q", query.Query)
	params.Set("api_key", c.config.APIKey)
	params.Set("num", strconv.Itoa(query.Limit))
	if query.Offset > 0 {
		params.Set("start", strconv.Itoa(query.Offset))
	}
	if query.YearFrom != nil {
		params.Set("as_ylo", strconv.Itoa(*query.YearFrom))
	}
	if query.YearTo != nil {
		params.Set("as_yhi", strconv.Itoa(*query.YearTo))
	}

	var payload searchResponse
	if err := c.getJSON(ctx, params, &payload); err != nil {
		return nil, err
	}

	records := make([]domain.RawRecord, 0, len(payload.OrganicResults))
	for i := range payload.OrganicResults {
		records = append(records, resultToRecord(&payload.OrganicResults[i]))
	}

	total := payload.SearchInformation.TotalResults
	if total == 0 {
		total = len(records)
	}

	return &sources.SearchResult{
		Records:        records,
		TotalResults:   total,
		Source:         domain.SourceTypeGoogleScholar,
		SearchDuration: time.Since(start),
	}, nil
}

// Fetch retrieves citation details for one result via the
// google_scholar_cite engine. Bare-DOI lookups are not supported:
// Scholar result IDs are the only identity SerpAPI can resolve.
func (c *Client) Fetch(ctx context.Context, ref domain.DocumentRef) (domain.RawRecord, error) {
	if c.config.APIKey == "" {
		return domain.RawRecord{}, domain.NewMissingCredentialError(string(domain.SourceTypeGoogleScholar), "api key")
	}
	if ref.ResultID == "" {
		return domain.RawRecord{}, fmt.Errorf("%s lookup by DOI: %w", sourceName, domain.ErrNotSupported)
	}

	params := url.Values{}
	params.Set("engine", "google_scholar_cite")
	params.Set("q", ref.ResultID)
	params.Set("api_key", c.config.APIKey)

	var payload citeResponse
	if err := c.getJSON(ctx, params, &payload); err != nil {
		return domain.RawRecord{}, err
	}
	if payload.Citation.Title == "" {
		return domain.RawRecord{}, domain.NewNotFoundError("document", ref.ResultID)
	}

	return citationToRecord(&payload.Citation, ref.ResultID), nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeGoogleScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled reports whether the source is enabled and has its key.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.APIKey != ""
}

// getJSON performs a GET against the SerpAPI endpoint and decodes the
// JSON response into out.
func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	endpoint, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing base URL: %w", err)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding response", err)
	}
	return nil
}

// resultToRecord converts one organic result to a raw record.
func resultToRecord(r *organicResult) domain.RawRecord {
	rec := domain.NewRawRecord(domain.SourceTypeGoogleScholar)
	rec.Set("title", r.Title)
	rec.Set("snippet", r.Snippet)
	rec.Set("abstract", r.Snippet)
	rec.Set("source_url", r.Link)
	rec.Set("result_id", r.ResultID)
	rec.Set("doi", domain.ExtractDOI(r.Link))

	summary := r.PublicationInfo.Summary
	rec.Set("authors", parseAuthors(summary))
	rec.Set("publication_date", yearRegex.FindString(summary))
	rec.Set("journal", parseJournal(summary))

	if r.InlineLinks.CitedBy.Total > 0 {
		rec.Set("citation_count", r.InlineLinks.CitedBy.Total)
	}

	if pdfURL := extractPDFURL(r); pdfURL != "" {
		rec.Set("pdf_url", pdfURL)
	}
	return rec
}

// citationToRecord converts a google_scholar_cite payload to a raw record.
func citationToRecord(c *citation, resultID string) domain.RawRecord {
	rec := domain.NewRawRecord(domain.SourceTypeGoogleScholar)
	rec.Set("title", c.Title)
	rec.Set("publication_date", c.PublicationDate)
	rec.Set("journal", c.Journal)
	rec.Set("abstract", c.Description)
	rec.Set("source_url", c.Link)
	rec.Set("result_id", resultID)
	rec.Set("doi", domain.ExtractDOI(c.Link))
	if c.Authors != "" {
		rec.Set("authors", strings.Split(c.Authors, ", "))
	}
	if strings.HasSuffix(strings.ToLower(c.Link), ".pdf") {
		rec.Set("pdf_url", c.Link)
	}
	return rec
}

// extractPDFURL finds the best PDF link for a result, in priority order:
// a PDF resource, a main link that is itself a PDF, then any PDF URL
// mentioned in the snippet.
func extractPDFURL(r *organicResult) string {
	for _, res := range r.Resources {
		if strings.EqualFold(res.FileFormat, "pdf") {
			return res.Link
		}
	}
	if strings.HasSuffix(strings.ToLower(r.Link), ".pdf") {
		return r.Link
	}
	return pdfURLRegex.FindString(r.Snippet)
}

// parseAuthors extracts author names from a publication info summary.
// The common pattern is "Authors - Title, Year - Journal".
func parseAuthors(summary string) []string {
	if summary == "" {
		return nil
	}
	parts := strings.SplitN(summary, " - ", 2)
	if len(parts) < 2 {
		return nil
	}
	names := strings.Split(parts[0], ", ")
	authors := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// parseJournal extracts the journal segment of a publication info summary.
func parseJournal(summary string) string {
	parts := strings.Split(summary, " - ")
	if len(parts) < 3 {
		return ""
	}
	return strings.TrimSpace(strings.SplitN(parts[2], ",", 2)[0])
}
