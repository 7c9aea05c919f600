// Package openaire implements the OpenAIRE source adapter backed by the
// OpenAIRE publications search API.
//
// OpenAIRE payloads nest results under oaf:entity/oaf:result wrappers
// and render single-element collections as bare objects instead of
// arrays, so parsing works over loosely typed maps rather than fixed
// structs.
package openaire

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL is the default OpenAIRE API base URL.
	DefaultBaseURL = "https://api.openaire.eu"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "OpenAIRE"
)

// Config holds configuration for the OpenAIRE client. OpenAIRE requires
// no credentials.
type Config struct {
	// BaseURL is the OpenAIRE API base URL.
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

// Client implements the sources.Source interface for OpenAIRE.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Compile-time checks for the source capabilities.
var (
	_ sources.Source            = (*Client)(nil)
	_ sources.SupportsDOILookup = (*Client)(nil)
)

// New creates a new OpenAIRE client. If httpClient is nil a rate-limited
// client is built from the configuration.
func New(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	if httpClient == nil {
		httpClient = sources.NewHTTPClient(sources.HTTPClientConfig{
			Source:    string(domain.SourceTypeOpenAIRE),
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries OpenAIRE publications. OpenAIRE paginates by page
// number, so the offset is converted into the enclosing page.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*sources.SearchResult, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("keywords", query.Query)
	params.Set("format", "json")
	params.Set("size", strconv.Itoa(query.Limit))
	page := 1
	if query.Limit > 0 {
		page = query.Offset/query.Limit + 1
	}
	params.Set("page", strconv.Itoa(page))
	if query.YearFrom != nil {
		params.Set("fromDateAccepted", fmt.Sprintf("%d-01-01", *query.YearFrom))
	}
	if query.YearTo != nil {
		params.Set("toDateAccepted", fmt.Sprintf("%d-12-31", *query.YearTo))
	}

	payload, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	resultsNode := dig(payload, "response", "results")
	total := asInt(dig(resultsNode, "total"))
	items := asList(dig(resultsNode, "result"))

	records := make([]domain.RawRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := itemToRecord(item); ok {
			records = append(records, rec)
		}
	}
	if total == 0 {
		total = len(records)
	}

	return &sources.SearchResult{
		Records:        records,
		TotalResults:   total,
		Source:         domain.SourceTypeOpenAIRE,
		SearchDuration: time.Since(start),
	}, nil
}

// Fetch resolves a reference by searching for its DOI, or for the
// synthetic result ID when no DOI is available.
func (c *Client) Fetch(ctx context.Context, ref domain.DocumentRef) (domain.RawRecord, error) {
	if ref.DOI != "" {
		return c.FetchByDOI(ctx, ref.DOI)
	}
	return c.lookup(ctx, strings.TrimPrefix(ref.ResultID, "openaire_"))
}

// FetchByDOI looks up a publication by DOI.
func (c *Client) FetchByDOI(ctx context.Context, doi string) (domain.RawRecord, error) {
	if doi == "" {
		return domain.RawRecord{}, domain.NewValidationError("doi", "doi is required")
	}
	return c.lookup(ctx, doi)
}

// lookup runs a single-result keyword search and returns the first hit.
func (c *Client) lookup(ctx context.Context, term string) (domain.RawRecord, error) {
	params := url.Values{}
	params.Set("keywords", term)
	params.Set("format", "json")
	params.Set("size", "1")

	payload, err := c.get(ctx, params)
	if err != nil {
		return domain.RawRecord{}, err
	}

	items := asList(dig(payload, "response", "results", "result"))
	for _, item := range items {
		if rec, ok := itemToRecord(item); ok {
			return rec, nil
		}
	}
	return domain.RawRecord{}, domain.NewNotFoundError("document", term)
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAIRE
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled reports whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// get performs a GET against the publications search endpoint.
func (c *Client) get(ctx context.Context, params url.Values) (map[string]any, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/search/publications"
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

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&payload); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding response", err)
	}
	return payload, nil
}

// itemToRecord converts one result item to a raw record. Items with no
// usable title are dropped.
func itemToRecord(item any) (domain.RawRecord, bool) {
	metadata := dig(item, "metadata", "oaf:entity", "oaf:result")
	if metadata == nil {
		return domain.RawRecord{}, false
	}

	title := firstValue(dig(metadata, "title"))
	if title == "" {
		return domain.RawRecord{}, false
	}

	rec := domain.NewRawRecord(domain.SourceTypeOpenAIRE)
	rec.Set("title", title)
	rec.Set("abstract", firstValue(dig(metadata, "description")))
	rec.Set("publication_date", firstValue(dig(metadata, "dateofacceptance")))
	rec.Set("journal", firstValue(dig(metadata, "journal")))

	doi := ""
	for _, pid := range asList(dig(metadata, "pid")) {
		if asString(dig(pid, "classid")) == "doi" {
			doi = firstValue(pid)
			break
		}
	}
	rec.Set("doi", doi)

	authors := make([]string, 0, 4)
	for _, creator := range asList(dig(metadata, "creator")) {
		if name := firstValue(creator); name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) > 0 {
		rec.Set("authors", authors)
	}

	// An OPEN-access instance whose web resource ends in .pdf is a
	// provider-native PDF link.
	for _, instance := range asList(dig(metadata, "instance")) {
		right := asString(dig(instance, "accessright", "classid"))
		if right == "" {
			right = asString(dig(instance, "accessright"))
		}
		if !strings.EqualFold(right, "open") {
			continue
		}
		for _, res := range asList(dig(instance, "webresource")) {
			u := firstValue(dig(res, "url"))
			if u == "" {
				u = firstValue(res)
			}
			if strings.HasSuffix(strings.ToLower(u), ".pdf") {
				rec.Set("pdf_url", u)
				break
			}
		}
		if _, ok := rec.Fields["pdf_url"]; ok {
			break
		}
	}

	if doi != "" {
		rec.Set("result_id", doi)
		rec.Set("source_url", "https://explore.openaire.eu/search/publication?pid="+url.QueryEscape(doi))
	} else {
		rec.Set("result_id", syntheticID(title))
	}
	return rec, true
}

// syntheticID derives a stable identifier for records without a DOI.
func syntheticID(title string) string {
	slug := strings.ReplaceAll(strings.ToLower(title), " ", "_")
	if len(slug) > 50 {
		slug = slug[:50]
	}
	return "openaire_" + slug
}

// dig walks nested maps by key, returning nil as soon as a step is
// missing or not a map.
func dig(node any, keys ...string) any {
	for _, key := range keys {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[key]
	}
	return node
}

// asList normalizes OpenAIRE's list-or-object collections to a slice.
func asList(node any) []any {
	switch v := node.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// asString returns node as a string when it is one.
func asString(node any) string {
	s, _ := node.(string)
	return s
}

// asInt coerces numbers and numeric strings to int.
func asInt(node any) int {
	switch v := node.(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// firstValue extracts the first "value" field from an OpenAIRE node,
// which may be a bare string, a {"value": ...} object, or a list of
// either.
func firstValue(node any) string {
	switch v := node.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if inner, ok := v["value"]; ok {
			return firstValue(inner)
		}
		if inner, ok := v["$"]; ok {
			return firstValue(inner)
		}
		return ""
	case []any:
		for _, item := range v {
			if s := firstValue(item); s != "" {
				return s
			}
		}
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
