// Package arxiv implements the arXiv source adapter backed by the arXiv
// Atom query API.
package arxiv

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit honors arXiv's request of one call every three
	// seconds.
	DefaultRateLimit = 1.0 / 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the full entry URL.
// Matches "http://arxiv.org/abs/2301.12345v1" and "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client. arXiv requires no
// credentials.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

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

// Client implements the sources.Source interface for arXiv.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Compile-time checks for the source capabilities.
var (
	_ sources.Source            = (*Client)(nil)
	_ sources.SupportsDOILookup = (*Client)(nil)
)

// New creates a new arXiv client. If httpClient is nil a rate-limited
// client is built from the configuration.
func New(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	if httpClient == nil {
		httpClient = sources.NewHTTPClient(sources.HTTPClientConfig{
			Source:    string(domain.SourceTypeArXiv),
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries arXiv for entries matching the query. Year bounds
// translate to a submittedDate range clause.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*sources.SearchResult, error) {
	start := time.Now()

	searchQuery := "all:" + query.Query
	if clause := dateClause(query.YearFrom, query.YearTo); clause != "" {
		searchQuery += " AND " + clause
	}

	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("max_results", strconv.Itoa(query.Limit))
	if query.Offset > 0 {
		params.Set("start", strconv.Itoa(query.Offset))
	}
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	result, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	records := make([]domain.RawRecord, 0, len(result.Entries))
	for i := range result.Entries {
		if rec, ok := entryToRecord(&result.Entries[i]); ok {
			records = append(records, rec)
		}
	}

	return &sources.SearchResult{
		Records:        records,
		TotalResults:   result.TotalResults,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: time.Since(start),
	}, nil
}

// Fetch retrieves a specific entry by arXiv ID using id_list.
func (c *Client) Fetch(ctx context.Context, ref domain.DocumentRef) (domain.RawRecord, error) {
	if ref.ResultID == "" {
		return c.FetchByDOI(ctx, ref.DOI)
	}

	params := url.Values{}
	params.Set("id_list", ref.ResultID)

	result, err := c.query(ctx, params)
	if err != nil {
		return domain.RawRecord{}, err
	}
	if len(result.Entries) == 0 {
		return domain.RawRecord{}, domain.NewNotFoundError("document", ref.ResultID)
	}

	rec, ok := entryToRecord(&result.Entries[0])
	if !ok {
		return domain.RawRecord{}, domain.NewNotFoundError("document", ref.ResultID)
	}
	return rec, nil
}

// FetchByDOI finds the entry whose linked DOI matches via a fielded
// doi: search.
func (c *Client) FetchByDOI(ctx context.Context, doi string) (domain.RawRecord, error) {
	if doi == "" {
		return domain.RawRecord{}, domain.NewValidationError("doi", "doi is required")
	}

	params := url.Values{}
	params.Set("search_query", "doi:"+strconv.Quote(doi))
	params.Set("max_results", "1")

	result, err := c.query(ctx, params)
	if err != nil {
		return domain.RawRecord{}, err
	}
	if len(result.Entries) == 0 {
		return domain.RawRecord{}, domain.NewNotFoundError("document", doi)
	}

	rec, ok := entryToRecord(&result.Entries[0])
	if !ok {
		return domain.RawRecord{}, domain.NewNotFoundError("document", doi)
	}
	return rec, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled reports whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// query performs a GET against the arXiv query endpoint and decodes the
// Atom feed.
func (c *Client) query(ctx context.Context, params url.Values) (*feed, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/query"
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&result); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding response", err)
	}
	return &result, nil
}

// dateClause builds the submittedDate range filter for the given year
// bounds, with "*" standing in for an open bound.
func dateClause(from, to *int) string {
	if from == nil && to == nil {
		return ""
	}
	fromStr := "*"
	if from != nil {
		fromStr = fmt.Sprintf("%d01010000", *from)
	}
	toStr := "*"
	if to != nil {
		toStr = fmt.Sprintf("%d12312359", *to)
	}
	return fmt.Sprintf("submittedDate:[%s TO %s]", fromStr, toStr)
}

// entryToRecord converts an Atom entry to a raw record. Entries without
// a recognizable arXiv ID are dropped. arXiv reports no citation counts,
// so the field stays absent rather than fabricated.
func entryToRecord(e *entry) (domain.RawRecord, bool) {
	arxivID := extractArXivID(e.ID)
	if arxivID == "" {
		return domain.RawRecord{}, false
	}

	rec := domain.NewRawRecord(domain.SourceTypeArXiv)
	rec.Set("result_id", arxivID)
	rec.Set("title", normalizeWhitespace(e.Title))
	rec.Set("abstract", normalizeWhitespace(e.Summary))
	rec.Set("doi", strings.TrimSpace(e.DOI))
	rec.Set("journal", strings.TrimSpace(e.JournalRef))
	rec.Set("source_url", "https://arxiv.org/abs/"+arxivID)

	if e.Published != "" {
		if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
			rec.Set("publication_date", t.Format("2006-01-02"))
		} else {
			rec.Set("publication_date", strings.SplitN(e.Published, "T", 2)[0])
		}
	}

	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) > 0 {
		rec.Set("authors", authors)
	}

	// Every arXiv entry has a hosted PDF.
	pdfURL := ""
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			pdfURL = l.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = "https://arxiv.org/pdf/" + arxivID
	}
	rec.Set("pdf_url", pdfURL)

	return rec, true
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses runs of whitespace; arXiv
// titles and abstracts carry hard-wrapped newlines.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
