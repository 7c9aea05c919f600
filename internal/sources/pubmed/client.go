// Package pubmed implements the PubMed source adapter backed by the NCBI
// E-utilities API.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
	"github.com/helixir/scholarly-retrieval-service/internal/sources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key
	// (3 requests/second). With a key NCBI allows 10.
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultTool is the tool name reported to NCBI.
	DefaultTool = "scholarly-retrieval-service"

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds configuration for the PubMed client.
type Config struct {
	// BaseURL is the E-utilities base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Email is the contact email NCBI requires on every call.
	// Required; without it the source is disabled.
	Email string

	// APIKey is the optional NCBI API key for higher rate limits.
	APIKey string

	// Tool is the tool name reported to NCBI.
	Tool string

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
	if c.Tool == "" {
		c.Tool = DefaultTool
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
}

// Client implements the sources.Source interface for PubMed.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Compile-time checks for the source capabilities.
var (
	_ sources.Source            = (*Client)(nil)
	_ sources.SupportsDOILookup = (*Client)(nil)
)

// New creates a new PubMed client. If httpClient is nil a rate-limited
// client is built from the configuration.
func New(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	if httpClient == nil {
		httpClient = sources.NewHTTPClient(sources.HTTPClientConfig{
			Source:    string(domain.SourceTypePubMed),
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries PubMed in two steps: esearch.fcgi for matching PMIDs,
// then efetch.fcgi for the article metadata.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*sources.SearchResult, error) {
	start := time.Now()

	if c.config.Email == "" {
		return nil, domain.NewMissingCredentialError(string(domain.SourceTypePubMed), "contact email")
	}

	ids, total, err := c.esearch(ctx, query.Query, query.Limit, query.Offset, query.YearFrom, query.YearTo)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &sources.SearchResult{
			Source:         domain.SourceTypePubMed,
			SearchDuration: time.Since(start),
		}, nil
	}

	articles, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]domain.RawRecord, 0, len(articles))
	for i := range articles {
		records = append(records, articleToRecord(&articles[i]))
	}

	return &sources.SearchResult{
		Records:        records,
		TotalResults:   total,
		Source:         domain.SourceTypePubMed,
		SearchDuration: time.Since(start),
	}, nil
}

// Fetch retrieves one article by PMID via efetch.
func (c *Client) Fetch(ctx context.Context, ref domain.DocumentRef) (domain.RawRecord, error) {
	if c.config.Email == "" {
		return domain.RawRecord{}, domain.NewMissingCredentialError(string(domain.SourceTypePubMed), "contact email")
	}
	if ref.ResultID == "" {
		return c.FetchByDOI(ctx, ref.DOI)
	}

	articles, err := c.efetch(ctx, []string{ref.ResultID})
	if err != nil {
		return domain.RawRecord{}, err
	}
	if len(articles) == 0 {
		return domain.RawRecord{}, domain.NewNotFoundError("document", ref.ResultID)
	}
	return articleToRecord(&articles[0]), nil
}

// FetchByDOI looks up a PubMed article by DOI using a fielded search.
func (c *Client) FetchByDOI(ctx context.Context, doi string) (domain.RawRecord, error) {
	if doi == "" {
		return domain.RawRecord{}, domain.NewValidationError("doi", "doi is required")
	}

	ids, _, err := c.esearch(ctx, fmt.Sprintf("%q[doi]", doi), 1, 0, nil, nil)
	if err != nil {
		return domain.RawRecord{}, err
	}
	if len(ids) == 0 {
		return domain.RawRecord{}, domain.NewNotFoundError("document", doi)
	}

	articles, err := c.efetch(ctx, ids[:1])
	if err != nil {
		return domain.RawRecord{}, err
	}
	if len(articles) == 0 {
		return domain.RawRecord{}, domain.NewNotFoundError("document", doi)
	}
	return articleToRecord(&articles[0]), nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled reports whether the source is enabled and has its email.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.Email != ""
}

// esearch runs the PMID search phase. Year bounds translate to the
// E-utilities mindate/maxdate window on the publication date.
func (c *Client) esearch(ctx context.Context, term string, limit, offset int, yearFrom, yearTo *int) ([]string, int, error) {
	params := c.baseParams()
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(limit))
	if offset > 0 {
		params.Set("retstart", strconv.Itoa(offset))
	}
	if yearFrom != nil || yearTo != nil {
		params.Set("datetype", "pdat")
		if yearFrom != nil {
			params.Set("mindate", strconv.Itoa(*yearFrom))
		} else {
			params.Set("mindate", "1800")
		}
		if yearTo != nil {
			params.Set("maxdate", strconv.Itoa(*yearTo))
		} else {
			params.Set("maxdate", strconv.Itoa(time.Now().Year()))
		}
	}

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, 0, err
	}

	var payload esearchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, domain.NewExternalAPIError(sourceName, 0, "decoding esearch response", err)
	}

	total, _ := strconv.Atoi(payload.ESearchResult.Count)
	return payload.ESearchResult.IDList, total, nil
}

// efetch retrieves article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, ids []string) ([]article, error) {
	params := c.baseParams()
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")
	params.Set("rettype", "abstract")

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var set articleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, 0, "decoding efetch response", err)
	}
	return set.Articles, nil
}

// baseParams returns the identification parameters NCBI wants on every
// call.
func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("email", c.config.Email)
	params.Set("tool", c.config.Tool)
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}
	return params
}

// get performs a GET against one E-utilities endpoint.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/" + endpoint
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

	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// articleToRecord converts one PubmedArticle to a raw record.
func articleToRecord(a *article) domain.RawRecord {
	rec := domain.NewRawRecord(domain.SourceTypePubMed)
	rec.Set("title", a.Title)
	rec.Set("journal", a.Journal)
	rec.Set("result_id", a.PMID)
	rec.Set("abstract", strings.TrimSpace(strings.Join(a.Abstract, " ")))

	authors := make([]string, 0, len(a.Authors))
	for _, au := range a.Authors {
		name := strings.TrimSpace(strings.TrimSpace(au.LastName) + " " + strings.TrimSpace(au.ForeName))
		if name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) > 0 {
		rec.Set("authors", authors)
	}

	rec.Set("publication_date", assembleDate(a.PubDate))

	for _, id := range a.ArticleIDs {
		switch strings.ToLower(id.IDType) {
		case "doi":
			rec.Set("doi", strings.TrimSpace(id.Value))
		case "pmc":
			// A PMC ID means a freely hosted copy exists.
			pmc := strings.TrimSpace(id.Value)
			if pmc != "" {
				rec.Set("pdf_url", "https://www.ncbi.nlm.nih.gov/pmc/articles/"+pmc+"/pdf/")
			}
		}
	}

	if a.PMID != "" {
		rec.Set("source_url", "https://pubmed.ncbi.nlm.nih.gov/"+a.PMID+"/")
	}
	return rec
}

// assembleDate builds the densest year-first date the PubDate element
// supports: "YYYY", "YYYY-MM", or "YYYY-MM-DD".
func assembleDate(d pubDate) string {
	year := strings.TrimSpace(d.Year)
	if year == "" {
		return ""
	}
	month := monthNumber(strings.TrimSpace(d.Month))
	if month == "" {
		return year
	}
	day := strings.TrimSpace(d.Day)
	if day == "" {
		return year + "-" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}
	return year + "-" + month + "-" + day
}

// monthNumber maps PubDate month values (numeric or English
// abbreviations) to a two-digit month.
func monthNumber(m string) string {
	if m == "" {
		return ""
	}
	if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= 12 {
		return fmt.Sprintf("%02d", n)
	}
	if t, err := time.Parse("Jan", m); err == nil {
		return fmt.Sprintf("%02d", int(t.Month()))
	}
	return ""
}
