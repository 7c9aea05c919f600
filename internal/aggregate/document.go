package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixir/scholarly-retrieval-service/internal/cache"
	"github.com/helixir/scholarly-retrieval-service/internal/domain"
	"github.com/helixir/scholarly-retrieval-service/internal/normalize"
	"github.com/helixir/scholarly-retrieval-service/internal/sources"
)

// GetDocument resolves a single document reference.
//
// A reference with a ResultID is routed to the source that owns it,
// using the Source hint when given and the identifier's shape otherwise.
// A reference with only a DOI is tried against each DOI-capable source
// in order; when none of them knows the DOI, a minimal document is
// synthesized from open-access resolver data as a last resort.
func (a *Aggregator) GetDocument(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	doc, err := a.docCache.GetOrFetch(ctx, documentKey(ref), func(ctx context.Context) (*domain.Document, error) {
		if ref.ResultID != "" {
			return a.fetchByID(ctx, ref)
		}
		return a.fetchByDOI(ctx, ref.DOI)
	})
	if err != nil {
		return nil, err
	}

	if ref.ResolvePDF && a.unpaywall != nil && a.unpaywall.IsEnabled() {
		// Copy before resolving so the cached entry stays untouched.
		resolved := *doc
		a.unpaywall.Resolve(ctx, &resolved)
		return &resolved, nil
	}
	return doc, nil
}

// fetchByID routes a ResultID lookup to its owning source.
func (a *Aggregator) fetchByID(ctx context.Context, ref domain.DocumentRef) (*domain.Document, error) {
	sourceType := ref.InferSource()
	src := a.registry.Get(sourceType)
	if src == nil || !src.IsEnabled() {
		return nil, domain.NewMissingCredentialError(string(sourceType), "configuration")
	}

	rec, err := src.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetching %q from %s: %w", ref.ResultID, src.Name(), err)
	}

	doc := normalize.Record(rec)
	return &doc, nil
}

// fetchByDOI asks each DOI-capable source for the document, falling back
// to a synthesized record from open-access resolver data when no source
// knows the DOI.
func (a *Aggregator) fetchByDOI(ctx context.Context, doi string) (*domain.Document, error) {
	doi = domain.NormalizeDOI(doi)

	for _, src := range a.registry.DOISources(doiLookupOrder) {
		resolver := src.(sources.SupportsDOILookup)
		rec, err := resolver.FetchByDOI(ctx, doi)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				a.logger.Warn().
					Str("source", src.Name()).
					Str("doi", doi).
					Err(err).
					Msg("doi lookup failed, trying next source")
			}
			continue
		}
		doc := normalize.Record(rec)
		return &doc, nil
	}

	if a.unpaywall != nil && a.unpaywall.IsEnabled() {
		doc, err := a.unpaywall.Synthesize(ctx, doi)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.Warn().Str("doi", doi).Err(err).Msg("open-access synthesis failed")
		}
	}

	return nil, domain.NewNotFoundError("document", doi)
}

// documentKey builds the cache key for one reference. ResolvePDF is
// excluded: resolution happens on a copy after the cache lookup.
func documentKey(ref domain.DocumentRef) string {
	return cache.Key("document", map[string]string{
		"result_id": ref.ResultID,
		"source":    string(ref.Source),
		"doi":       domain.NormalizeDOI(ref.DOI),
	})
}
