package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestSearchQueryApplyDefaults(t *testing.T) {
	q := SearchQuery{Query: "x"}
	q.ApplyDefaults()

	assert.Equal(t, DefaultSearchLimit, q.Limit)
	assert.Equal(t, KnownSourceTypes, q.Sources)

	explicit := SearchQuery{Query: "x", Limit: 5, Sources: []SourceType{SourceTypeArXiv}}
	explicit.ApplyDefaults()
	assert.Equal(t, 5, explicit.Limit)
	assert.Equal(t, []SourceType{SourceTypeArXiv}, explicit.Sources)
}

func TestSearchQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   SearchQuery
		wantErr bool
	}{
		{"valid", SearchQuery{Query: "crispr", Limit: 10}, false},
		{"empty query", SearchQuery{Query: "", Limit: 10}, true},
		{"whitespace query", SearchQuery{Query: "   ", Limit: 10}, true},
		{"zero limit", SearchQuery{Query: "x"}, true},
		{"negative offset", SearchQuery{Query: "x", Limit: 10, Offset: -1}, true},
		{"inverted year range", SearchQuery{Query: "x", Limit: 10, YearFrom: intp(2024), YearTo: intp(2020)}, true},
		{"valid year range", SearchQuery{Query: "x", Limit: 10, YearFrom: intp(2020), YearTo: intp(2024)}, false},
		{"unknown source", SearchQuery{Query: "x", Limit: 10, Sources: []SourceType{"jstor"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDocumentRefValidate(t *testing.T) {
	assert.Error(t, (&DocumentRef{}).Validate())
	assert.NoError(t, (&DocumentRef{DOI: "10.1234/x"}).Validate())
	assert.NoError(t, (&DocumentRef{ResultID: "abc"}).Validate())
	assert.Error(t, (&DocumentRef{ResultID: "abc", Source: "jstor"}).Validate())
}

func TestDocumentRefInferSource(t *testing.T) {
	tests := []struct {
		name string
		ref  DocumentRef
		want SourceType
	}{
		{"explicit hint wins", DocumentRef{ResultID: "12345", Source: SourceTypeArXiv}, SourceTypeArXiv},
		{"numeric is pubmed", DocumentRef{ResultID: "35412345"}, SourceTypePubMed},
		{"pmc is pubmed", DocumentRef{ResultID: "PMC8437621"}, SourceTypePubMed},
		{"openaire prefix", DocumentRef{ResultID: "openaire_deep_learning_for_genomics"}, SourceTypeOpenAIRE},
		{"modern arxiv id", DocumentRef{ResultID: "2301.12345"}, SourceTypeArXiv},
		{"legacy arxiv id", DocumentRef{ResultID: "hep-th/9901001"}, SourceTypeArXiv},
		{"opaque id defaults to scholar", DocumentRef{ResultID: "AbCdEfGhIj"}, SourceTypeGoogleScholar},
		{"empty", DocumentRef{}, SourceType("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.InferSource())
		})
	}
}
