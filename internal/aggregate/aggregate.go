// Package aggregate implements the federated query layer: it fans a
// search out across the configured sources, normalizes and merges the
// answers into one ranked result set, and routes single-document
// lookups to the source that owns the identifier.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholarly-retrieval-service/internal/cache"
	"github.com/helixir/scholarly-retrieval-service/internal/domain"
	"github.com/helixir/scholarly-retrieval-service/internal/normalize"
	"github.com/helixir/scholarly-retrieval-service/internal/observability"
	"github.com/helixir/scholarly-retrieval-service/internal/sources"
	"github.com/helixir/scholarly-retrieval-service/internal/unpaywall"
)

// pdfResolveConcurrency bounds concurrent open-access lookups per search.
const pdfResolveConcurrency = 8

// doiLookupOrder is the order sources are asked to resolve a bare DOI.
// Preprint and biomedical indexes answer DOI queries precisely; the
// OpenAIRE graph is the broadest and slowest, so it goes last.
var doiLookupOrder = []domain.SourceType{
	domain.SourceTypeArXiv,
	domain.SourceTypePubMed,
	domain.SourceTypeOpenAIRE,
}

// Pagination describes the window of the merged result set a response
// covers.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Result is the merged outcome of a federated search. TotalResults
// counts the full filtered set, of which Results is one page.
type Result struct {
	Query        string              `json:"query"`
	Sources      []domain.SourceType `json:"sources"`
	TotalResults int                 `json:"total_results"`
	Results      []domain.Document   `json:"results"`
	Pagination   Pagination          `json:"pagination"`
}

// Config holds aggregator construction parameters.
type Config struct {
	Registry  *sources.Registry
	Unpaywall *unpaywall.Client

	// SearchCacheCapacity and SearchCacheTTL bound the merged-result
	// cache. Zero values use the cache package defaults.
	SearchCacheCapacity int
	SearchCacheTTL      time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Aggregator coordinates searches and lookups across sources. Merged
// candidate sets are cached before pagination, so pages of the same
// query share one upstream fan-out.
type Aggregator struct {
	registry    *sources.Registry
	unpaywall   *unpaywall.Client
	searchCache *cache.Cache[[]domain.Document]
	docCache    *cache.Cache[*domain.Document]
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// New creates an aggregator.
func New(cfg Config) (*Aggregator, error) {
	searchCache, err := cache.New[[]domain.Document](cache.Config{
		Name:     "search",
		Capacity: cfg.SearchCacheCapacity,
		TTL:      cfg.SearchCacheTTL,
		Metrics:  cfg.Metrics,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	docCache, err := cache.New[*domain.Document](cache.Config{
		Name:     "document",
		Capacity: cfg.SearchCacheCapacity,
		TTL:      cfg.SearchCacheTTL,
		Metrics:  cfg.Metrics,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		registry:    cfg.Registry,
		unpaywall:   cfg.Unpaywall,
		searchCache: searchCache,
		docCache:    docCache,
		logger:      cfg.Logger.With().Str("component", "aggregate").Logger(),
		metrics:     cfg.Metrics,
	}, nil
}

// Search runs a federated search and returns one page of the merged,
// deduplicated, sorted result set.
//
// Partial failures do not fail the request: sources that error are
// logged and counted, and the response is built from the sources that
// answered. Only when every selected source fails does Search return an
// error.
func (a *Aggregator) Search(ctx context.Context, query domain.SearchQuery) (*Result, error) {
	query.ApplyDefaults()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	candidates, err := a.searchCache.GetOrFetch(ctx, searchKey(query), func(ctx context.Context) ([]domain.Document, error) {
		return a.collect(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	return paginate(query, candidates), nil
}

// collect performs the uncached part of a search: fan out, normalize,
// resolve PDFs, filter, dedupe and sort. The returned slice covers the
// full filtered result set; pagination happens per request.
func (a *Aggregator) collect(ctx context.Context, query domain.SearchQuery) ([]domain.Document, error) {
	for _, st := range query.Sources {
		if a.metrics != nil {
			a.metrics.SearchesStarted.WithLabelValues(string(st)).Inc()
		}
	}

	results := a.registry.SearchSources(ctx, query, query.Sources)

	// Results arrive in completion order. Flatten them in the requested
	// source order instead, so the merged set (and the slots duplicates
	// collapse into) is the same on every run.
	rank := sourceRank(query.Sources)
	sort.SliceStable(results, func(i, j int) bool {
		return rank[results[i].Source] < rank[results[j].Source]
	})

	var docs []domain.Document
	succeeded := 0
	var failures []error
	for _, res := range results {
		if res.Error != nil {
			failures = append(failures, fmt.Errorf("%s: %w", res.Source, res.Error))
			a.recordFailure(res.Source, res.Error)
			a.logger.Warn().
				Str("source", string(res.Source)).
				Err(res.Error).
				Msg("source search failed")
			continue
		}
		succeeded++
		normalized := normalize.Records(res.Result.Records)
		docs = append(docs, normalized...)
		if a.metrics != nil {
			a.metrics.SearchesCompleted.WithLabelValues(string(res.Source)).Inc()
			a.metrics.SearchDuration.WithLabelValues(string(res.Source)).Observe(res.Result.SearchDuration.Seconds())
			a.metrics.DocumentsPerSearch.WithLabelValues(string(res.Source)).Observe(float64(len(normalized)))
		}
	}

	if succeeded == 0 {
		if allMissingCredentials(failures) {
			return nil, fmt.Errorf("no sources are configured for this search: %w", domain.ErrMissingCredential)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrAllSourcesFailed, errors.Join(failures...))
	}

	if query.ResolvePDFs {
		a.resolvePDFs(ctx, docs)
	}

	docs = a.dedupe(query.Sources, docs)
	docs = filter(query, docs)
	sortDocuments(query.Sources, docs)
	return docs, nil
}

// resolvePDFs looks up open-access copies for documents that carry a
// DOI but no provider PDF link, with bounded concurrency. Lookup
// failures leave documents unchanged.
func (a *Aggregator) resolvePDFs(ctx context.Context, docs []domain.Document) {
	if a.unpaywall == nil || !a.unpaywall.IsEnabled() {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pdfResolveConcurrency)
	for i := range docs {
		if docs[i].DOI == "" || docs[i].PDFURL != "" {
			continue
		}
		doc := &docs[i]
		g.Go(func() error {
			a.unpaywall.Resolve(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()
}

// dedupe collapses documents that share an identity key (normalized DOI,
// or folded title when no DOI is present). The survivor is the copy with
// a PDF, then the higher citation count, then the earlier source in the
// requested order. Documents with no usable identity are always kept.
func (a *Aggregator) dedupe(order []domain.SourceType, docs []domain.Document) []domain.Document {
	rank := sourceRank(order)
	seen := make(map[string]int)
	out := docs[:0]

	for _, doc := range docs {
		key := doc.IdentityKey()
		if key == "" {
			out = append(out, doc)
			continue
		}
		idx, dup := seen[key]
		if !dup {
			seen[key] = len(out)
			out = append(out, doc)
			continue
		}
		if preferred(&doc, &out[idx], rank) {
			out[idx] = doc
		}
		if a.metrics != nil {
			a.metrics.DocumentsDuplicate.Inc()
		}
	}
	return out
}

// preferred reports whether candidate should replace incumbent among
// duplicates.
func preferred(candidate, incumbent *domain.Document, rank map[domain.SourceType]int) bool {
	if candidate.PDFAvailable != incumbent.PDFAvailable {
		return candidate.PDFAvailable
	}
	cc, ic := citations(candidate), citations(incumbent)
	if cc != ic {
		return cc > ic
	}
	return rank[candidate.Source] < rank[incumbent.Source]
}

// filter applies the post-merge result filters: year bounds, journal
// substring, and the PDF and full-text availability switches. Documents
// with no known year are dropped when a year bound is set.
func filter(query domain.SearchQuery, docs []domain.Document) []domain.Document {
	out := docs[:0]
	journal := strings.ToLower(query.Journal)
	for _, doc := range docs {
		if query.YearFrom != nil && (doc.Year == 0 || doc.Year < *query.YearFrom) {
			continue
		}
		if query.YearTo != nil && (doc.Year == 0 || doc.Year > *query.YearTo) {
			continue
		}
		if journal != "" && !strings.Contains(strings.ToLower(doc.Journal), journal) {
			continue
		}
		if query.PDFOnly && !doc.PDFAvailable {
			continue
		}
		if query.FullTextOnly && !doc.FullTextAvailable {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// sortDocuments orders the merged set: documents with a PDF first, then
// by citation count descending with uncounted documents last, then by
// the requested source order. The sort is stable so per-source relevance
// order survives as the final tiebreak.
func sortDocuments(order []domain.SourceType, docs []domain.Document) {
	rank := sourceRank(order)
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := &docs[i], &docs[j]
		if a.PDFAvailable != b.PDFAvailable {
			return a.PDFAvailable
		}
		ca, cb := citations(a), citations(b)
		if ca != cb {
			return ca > cb
		}
		return rank[a.Source] < rank[b.Source]
	})
}

// citations returns the citation count for ordering, with absent counts
// sorting below zero.
func citations(d *domain.Document) int {
	if d.CitationCount == nil {
		return -1
	}
	return *d.CitationCount
}

func sourceRank(order []domain.SourceType) map[domain.SourceType]int {
	rank := make(map[domain.SourceType]int, len(order)+1)
	for i, st := range order {
		rank[st] = i
	}
	// Synthesized documents sort after every requested source.
	rank[domain.SourceTypeUnpaywall] = len(order)
	return rank
}

// paginate slices one page out of the full candidate set.
func paginate(query domain.SearchQuery, candidates []domain.Document) *Result {
	total := len(candidates)
	start := query.Offset
	if start > total {
		start = total
	}
	end := start + query.Limit
	if end > total {
		end = total
	}

	page := make([]domain.Document, end-start)
	copy(page, candidates[start:end])

	totalPages := (total + query.Limit - 1) / query.Limit
	return &Result{
		Query:        query.Query,
		Sources:      query.Sources,
		TotalResults: total,
		Results:      page,
		Pagination: Pagination{
			CurrentPage: query.Offset/query.Limit + 1,
			TotalPages:  totalPages,
			HasNext:     end < total,
			HasPrevious: start > 0,
		},
	}
}

// searchKey builds the cache key for the merged candidate set. Limit and
// Offset are excluded so pages share one fan-out.
func searchKey(query domain.SearchQuery) string {
	names := make([]string, len(query.Sources))
	for i, st := range query.Sources {
		names[i] = string(st)
	}
	parts := map[string]string{
		"q":        query.Query,
		"sources":  strings.Join(names, ","),
		"journal":  strings.ToLower(query.Journal),
		"pdf_only": strconv.FormatBool(query.PDFOnly),
		"ft_only":  strconv.FormatBool(query.FullTextOnly),
		"resolve":  strconv.FormatBool(query.ResolvePDFs),
	}
	if query.YearFrom != nil {
		parts["year_from"] = strconv.Itoa(*query.YearFrom)
	}
	if query.YearTo != nil {
		parts["year_to"] = strconv.Itoa(*query.YearTo)
	}
	return cache.Key("search", parts)
}

func (a *Aggregator) recordFailure(source domain.SourceType, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.SearchesFailed.WithLabelValues(string(source), errorKind(err)).Inc()
	if errors.Is(err, domain.ErrRateLimited) {
		a.metrics.SourceRateLimited.WithLabelValues(string(source)).Inc()
	}
}

// errorKind buckets an error for the failure counter label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrMissingCredential):
		return "credential"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	default:
		return "other"
	}
}

func allMissingCredentials(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !errors.Is(err, domain.ErrMissingCredential) {
			return false
		}
	}
	return true
}
