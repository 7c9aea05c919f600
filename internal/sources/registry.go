package sources

import (
	"context"
	"sync"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
)

// SourceResult holds the outcome of a search against one source. Exactly
// one of Result and Error is set.
type SourceResult struct {
	// Source identifies which source the result belongs to.
	Source domain.SourceType

	// Result contains the raw records when the search succeeded.
	Result *SearchResult

	// Error contains the failure when the search did not.
	Error error
}

// Registry holds the configured source adapters and coordinates
// concurrent searches across them. Registration and retrieval are
// thread-safe.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]Source),
	}
}

// Register adds a source, replacing any existing source of the same type.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns the source of the given type, or nil when not registered.
func (r *Registry) Get(sourceType domain.SourceType) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// Enabled reports whether a source of the given type is registered and
// enabled.
func (r *Registry) Enabled(sourceType domain.SourceType) bool {
	src := r.Get(sourceType)
	return src != nil && src.IsEnabled()
}

// DOISources returns registered, enabled sources that support lookup by
// bare DOI, in the order given by types.
func (r *Registry) DOISources(types []domain.SourceType) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Source, 0, len(types))
	for _, st := range types {
		src, ok := r.sources[st]
		if !ok || !src.IsEnabled() {
			continue
		}
		if _, ok := src.(SupportsDOILookup); ok {
			result = append(result, src)
		}
	}
	return result
}

// SearchSources searches the requested sources concurrently and returns
// one SourceResult per selected source, failures included. A requested
// source that is not registered is reported with a missing-credential
// error scoped to that source; the caller decides whether the whole
// request fails.
//
// Per-source goroutines respect the context: once it is done their
// eventual results are still collected here (the channel is buffered to
// hold every outcome) but arrive carrying the context error.
func (r *Registry) SearchSources(ctx context.Context, query domain.SearchQuery, types []domain.SourceType) []SourceResult {
	r.mu.RLock()
	selected := make([]Source, 0, len(types))
	missing := make([]domain.SourceType, 0)
	for _, st := range types {
		src, ok := r.sources[st]
		if !ok || !src.IsEnabled() {
			missing = append(missing, st)
			continue
		}
		selected = append(selected, src)
	}
	r.mu.RUnlock()

	resultChan := make(chan SourceResult, len(selected))
	var wg sync.WaitGroup

	for _, source := range selected {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()

			result, err := s.Search(ctx, query)
			resultChan <- SourceResult{
				Source: s.SourceType(),
				Result: result,
				Error:  err,
			}
		}(source)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]SourceResult, 0, len(types))
	for result := range resultChan {
		results = append(results, result)
	}
	for _, st := range missing {
		results = append(results, SourceResult{
			Source: st,
			Error:  domain.NewMissingCredentialError(string(st), "configuration"),
		})
	}
	return results
}
