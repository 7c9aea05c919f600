// Package unpaywall resolves open-access PDF locations for documents
// that carry a DOI, using the Unpaywall REST API.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/scholarly-retrieval-service/internal/cache"
	"github.com/helixir/scholarly-retrieval-service/internal/domain"
	"github.com/helixir/scholarly-retrieval-service/internal/observability"
	"github.com/helixir/scholarly-retrieval-service/internal/sources"
)

// Config holds Unpaywall client configuration.
type Config struct {
	// BaseURL is the API root. Defaults to the public endpoint.
	BaseURL string

	// Email identifies the caller to Unpaywall, which requires a
	// contact address on every request.
	Email string

	Enabled bool

	// Timeout for individual API requests.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// CacheCapacity bounds the per-DOI response cache.
	CacheCapacity int

	// CacheTTL is how long a resolution stays fresh.
	CacheTTL time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.unpaywall.org"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 4096
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
}

// Client queries the Unpaywall API. Resolutions are cached per DOI and
// concurrent lookups for the same DOI are coalesced.
type Client struct {
	config  Config
	http    *sources.HTTPClient
	cache   *cache.Cache[*Resolution]
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Resolution is the outcome of an Unpaywall lookup for one DOI.
type Resolution struct {
	DOI      string
	IsOA     bool
	OAStatus string
	PDFURL   string
	// HostType of the winning location, "publisher" or "repository".
	HostType string
	// Institution hosting the winning location, when Unpaywall
	// reports one.
	Institution string
	Title       string
	Journal     string
	Year        int
	Authors     []string
}

// OASource names where the open-access copy lives: the hosting
// institution when known, otherwise the location's host type.
func (r *Resolution) OASource() string {
	if r.Institution != "" {
		return r.Institution
	}
	return r.HostType
}

// New creates an Unpaywall client. If httpClient is nil a rate-limited
// client is built from the configuration.
func New(cfg Config, httpClient *sources.HTTPClient) (*Client, error) {
	cfg.applyDefaults()
	logger := cfg.Logger.With().Str("component", "unpaywall").Logger()

	if httpClient == nil {
		httpClient = sources.NewHTTPClient(sources.HTTPClientConfig{
			Source:    "unpaywall",
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Logger:    logger,
		})
	}

	resCache, err := cache.New[*Resolution](cache.Config{
		Name:     "unpaywall",
		Capacity: cfg.CacheCapacity,
		TTL:      cfg.CacheTTL,
		Metrics:  cfg.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config:  cfg,
		http:    httpClient,
		cache:   resCache,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// IsEnabled reports whether the client is configured for use. Unpaywall
// requires a contact email on every request.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.Email != ""
}

// Lookup fetches the open-access status for a DOI. It returns
// domain.ErrNotFound when Unpaywall has no record for the DOI.
func (c *Client) Lookup(ctx context.Context, doi string) (*Resolution, error) {
	doi = domain.NormalizeDOI(doi)
	if doi == "" {
		return nil, domain.NewValidationError("doi", "is required")
	}
	if !c.IsEnabled() {
		return nil, domain.NewMissingCredentialError("unpaywall", "email")
	}

	return c.cache.GetOrFetch(ctx, doi, func(ctx context.Context) (*Resolution, error) {
		return c.fetch(ctx, doi)
	})
}

func (c *Client) fetch(ctx context.Context, doi string) (*Resolution, error) {
	u := fmt.Sprintf("%s/v2/%s?email=%s",
		c.config.BaseURL, url.PathEscape(doi), url.QueryEscape(c.config.Email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating unpaywall request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewExternalAPIError("unpaywall", resp.StatusCode, "reading response body", err)
	}

	var rec record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, domain.NewExternalAPIError("unpaywall", resp.StatusCode, "decoding response", err)
	}

	res := &Resolution{
		DOI:      doi,
		IsOA:     rec.IsOA,
		OAStatus: rec.OAStatus,
		Title:    rec.Title,
		Journal:  rec.JournalName,
		Year:     rec.Year,
	}
	for _, a := range rec.ZAuthors {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name != "" {
			res.Authors = append(res.Authors, name)
		}
	}
	if loc := bestLocation(rec); loc != nil {
		res.PDFURL = loc.pdfURL()
		res.HostType = loc.HostType
		res.Institution = loc.RepositoryInstitution
	}
	return res, nil
}

// bestLocation picks the open-access location to surface. Publisher
// versions of record rank above repository accepted manuscripts, which
// rank above everything else; ties go to the most recently updated
// location. Falls back to best_oa_location, which counts even when it
// only carries a landing-page URL, when no location carries a PDF URL
// we rank.
func bestLocation(rec record) *oaLocation {
	var best *oaLocation
	bestRank := -1
	var bestUpdated time.Time

	for i := range rec.OALocations {
		loc := &rec.OALocations[i]
		if loc.URLForPDF == "" {
			continue
		}
		rank := locationRank(loc)
		updated, _ := time.Parse(time.RFC3339, loc.Updated)
		if rank > bestRank || (rank == bestRank && updated.After(bestUpdated)) {
			best = loc
			bestRank = rank
			bestUpdated = updated
		}
	}
	if best != nil {
		return best
	}
	if rec.BestOALocation != nil && rec.BestOALocation.pdfURL() != "" {
		return rec.BestOALocation
	}
	return nil
}

// pdfURL is the direct PDF link when the location has one, otherwise
// the landing-page URL.
func (loc *oaLocation) pdfURL() string {
	if loc.URLForPDF != "" {
		return loc.URLForPDF
	}
	return loc.URL
}

func locationRank(loc *oaLocation) int {
	switch {
	case loc.HostType == "publisher" && strings.EqualFold(loc.Version, "publishedVersion"):
		return 2
	case loc.HostType == "repository" && strings.EqualFold(loc.Version, "acceptedVersion"):
		return 1
	default:
		return 0
	}
}

// Resolve fills in open-access PDF information on a document that has a
// DOI but no PDF URL yet. A PDF URL already reported by the document's
// own source is never overwritten. Lookup failures leave the document
// unchanged.
func (c *Client) Resolve(ctx context.Context, doc *domain.Document) {
	if doc == nil || doc.DOI == "" || doc.PDFURL != "" {
		c.outcome("skipped")
		return
	}

	res, err := c.Lookup(ctx, doc.DOI)
	if err != nil {
		c.outcome("error")
		c.logger.Debug().Err(err).Str("doi", doc.DOI).Msg("pdf resolution failed")
		return
	}

	doc.OAStatus = res.OAStatus
	if res.PDFURL == "" {
		c.outcome("unresolved")
		return
	}
	doc.PDFURL = res.PDFURL
	doc.PDFAvailable = true
	doc.OASource = res.OASource()
	c.outcome("resolved")
}

// Synthesize builds a minimal document for a DOI that no search source
// could resolve, from Unpaywall's own bibliographic record.
func (c *Client) Synthesize(ctx context.Context, doi string) (*domain.Document, error) {
	res, err := c.Lookup(ctx, doi)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		Title:    res.Title,
		Authors:  res.Authors,
		Journal:  res.Journal,
		Year:     res.Year,
		DOI:      res.DOI,
		Source:   domain.SourceTypeUnpaywall,
		OAStatus: res.OAStatus,
	}
	if res.Year > 0 {
		doc.PublicationDate = fmt.Sprintf("%d", res.Year)
	}
	if res.PDFURL != "" {
		doc.PDFURL = res.PDFURL
		doc.PDFAvailable = true
		doc.OASource = res.OASource()
	}
	return doc, nil
}

func (c *Client) outcome(o string) {
	if c.metrics != nil {
		c.metrics.PDFResolutions.WithLabelValues(o).Inc()
	}
}
