package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
)

type mockSource struct {
	st      domain.SourceType
	enabled bool
	delay   time.Duration
	result  *SearchResult
	err     error
	doi     bool
}

func (m *mockSource) Search(ctx context.Context, query domain.SearchQuery) (*SearchResult, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockSource) Fetch(ctx context.Context, ref domain.DocumentRef) (domain.RawRecord, error) {
	return domain.RawRecord{}, domain.ErrNotSupported
}

func (m *mockSource) SourceType() domain.SourceType { return m.st }
func (m *mockSource) Name() string                  { return string(m.st) }
func (m *mockSource) IsEnabled() bool               { return m.enabled }

type mockDOISource struct {
	mockSource
}

func (m *mockDOISource) FetchByDOI(ctx context.Context, doi string) (domain.RawRecord, error) {
	return domain.NewRawRecord(m.st), nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	src := &mockSource{st: domain.SourceTypeArXiv, enabled: true}
	registry.Register(src)

	assert.Equal(t, src, registry.Get(domain.SourceTypeArXiv))
	assert.Nil(t, registry.Get(domain.SourceTypePubMed))
	assert.True(t, registry.Enabled(domain.SourceTypeArXiv))
	assert.False(t, registry.Enabled(domain.SourceTypePubMed))
}

func TestRegistryEnabledRespectsSource(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockSource{st: domain.SourceTypeGoogleScholar, enabled: false})
	assert.False(t, registry.Enabled(domain.SourceTypeGoogleScholar))
}

func TestSearchSourcesFanOut(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockSource{
		st: domain.SourceTypeArXiv, enabled: true, delay: 50 * time.Millisecond,
		result: &SearchResult{Source: domain.SourceTypeArXiv},
	})
	registry.Register(&mockSource{
		st: domain.SourceTypePubMed, enabled: true, delay: 50 * time.Millisecond,
		result: &SearchResult{Source: domain.SourceTypePubMed},
	})

	start := time.Now()
	results := registry.SearchSources(context.Background(), domain.SearchQuery{Query: "x"},
		[]domain.SourceType{domain.SourceTypeArXiv, domain.SourceTypePubMed})
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.Less(t, elapsed, 90*time.Millisecond, "sources should be searched concurrently")
}

func TestSearchSourcesCollectsFailures(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockSource{
		st: domain.SourceTypeArXiv, enabled: true,
		result: &SearchResult{Source: domain.SourceTypeArXiv},
	})
	registry.Register(&mockSource{
		st: domain.SourceTypePubMed, enabled: true,
		err: domain.NewExternalAPIError("pubmed", 500, "boom", nil),
	})

	results := registry.SearchSources(context.Background(), domain.SearchQuery{Query: "x"},
		[]domain.SourceType{domain.SourceTypeArXiv, domain.SourceTypePubMed})

	require.Len(t, results, 2)
	byType := make(map[domain.SourceType]SourceResult)
	for _, r := range results {
		byType[r.Source] = r
	}
	assert.NoError(t, byType[domain.SourceTypeArXiv].Error)
	assert.ErrorIs(t, byType[domain.SourceTypePubMed].Error, domain.ErrUpstream)
}

func TestSearchSourcesReportsUnconfigured(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockSource{st: domain.SourceTypeGoogleScholar, enabled: false})

	results := registry.SearchSources(context.Background(), domain.SearchQuery{Query: "x"},
		[]domain.SourceType{domain.SourceTypeGoogleScholar, domain.SourceTypeOpenAIRE})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, domain.ErrMissingCredential)
	}
}

func TestDOISourcesFiltersAndOrders(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockDOISource{mockSource{st: domain.SourceTypePubMed, enabled: true}})
	registry.Register(&mockDOISource{mockSource{st: domain.SourceTypeArXiv, enabled: true}})
	registry.Register(&mockDOISource{mockSource{st: domain.SourceTypeOpenAIRE, enabled: false}})
	registry.Register(&mockSource{st: domain.SourceTypeGoogleScholar, enabled: true})

	srcs := registry.DOISources([]domain.SourceType{
		domain.SourceTypeArXiv,
		domain.SourceTypePubMed,
		domain.SourceTypeOpenAIRE,
		domain.SourceTypeGoogleScholar,
	})

	require.Len(t, srcs, 2, "disabled and non-DOI sources are excluded")
	assert.Equal(t, domain.SourceTypeArXiv, srcs[0].SourceType())
	assert.Equal(t, domain.SourceTypePubMed, srcs[1].SourceType())
}

func TestSearchSourcesContextCancellation(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockSource{
		st: domain.SourceTypeArXiv, enabled: true, delay: 5 * time.Second,
		result: &SearchResult{Source: domain.SourceTypeArXiv},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	results := registry.SearchSources(ctx, domain.SearchQuery{Query: "x"},
		[]domain.SourceType{domain.SourceTypeArXiv})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
}
