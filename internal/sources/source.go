// Package sources provides the source adapter interface and the shared
// rate-limited HTTP machinery for querying scholarly APIs.
//
// Each upstream database (Google Scholar via SerpAPI, PubMed, arXiv,
// OpenAIRE) implements the Source interface in its own subpackage,
// translating the canonical query into its native parameters and parsing
// its native payload into raw records. The registry fans a search out
// across the selected sources concurrently.
//
// Example usage:
//
//	src := arxiv.New(arxiv.Config{Enabled: true}, nil)
//	result, err := src.Search(ctx, domain.SearchQuery{Query: "quantum computing", Limit: 5})
package sources

import (
	"context"
	"time"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
)

// SearchResult contains the raw records returned by one source for a
// search operation.
type SearchResult struct {
	// Records are the provider-shaped records, not yet normalized.
	Records []domain.RawRecord

	// TotalResults is the total number of matches the source reports
	// for the query, regardless of pagination. May be an estimate.
	TotalResults int

	// Source identifies which source produced these records.
	Source domain.SourceType

	// SearchDuration is the time spent on the search, including
	// rate-limit waits, retries, and parsing.
	SearchDuration time.Duration
}

// Source is the capability interface every scholarly source adapter
// implements.
type Source interface {
	// Search queries the source for records matching the query.
	//
	// Implementations must:
	//   - Respect context cancellation
	//   - Apply their own rate limiting and retry policy
	//   - Return typed domain errors, never panic
	Search(ctx context.Context, query domain.SearchQuery) (*SearchResult, error)

	// Fetch retrieves a single record identified by ref. It returns
	// domain.ErrNotFound when the source legitimately has no such
	// document, as opposed to domain.ErrUpstream for API failures,
	// and domain.ErrNotSupported when the source cannot perform
	// lookups of the given identity kind.
	Fetch(ctx context.Context, ref domain.DocumentRef) (domain.RawRecord, error)

	// SourceType returns the type identifier for this source.
	SourceType() domain.SourceType

	// Name returns a human-readable name used in logs and errors.
	Name() string

	// IsEnabled reports whether the source is configured and usable.
	// A source missing a required credential reports false.
	IsEnabled() bool
}

// SupportsDOILookup is implemented by sources that can resolve a bare
// DOI to a record. The aggregator consults it when routing get_document
// requests that carry only a DOI.
type SupportsDOILookup interface {
	FetchByDOI(ctx context.Context, doi string) (domain.RawRecord, error)
}
