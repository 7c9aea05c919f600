package domain

import (
	"strings"
	"unicode"
)

// DefaultSearchLimit is the page size used when a search does not
// specify one.
const DefaultSearchLimit = 10

// SearchQuery is the normalized internal form of a search request.
// Limit and Offset define a pagination window over the merged, filtered
// result set, not a per-source window.
type SearchQuery struct {
	// Query is the free-text query string (required).
	Query string

	// Sources lists the sources to search. Empty means all configured
	// sources in their default order.
	Sources []SourceType

	// YearFrom and YearTo bound the publication year (inclusive).
	// When both are set, YearFrom must not exceed YearTo.
	YearFrom *int
	YearTo   *int

	// Journal filters documents whose journal name contains this
	// substring (case-insensitive).
	Journal string

	// Limit is the page size (defaults to DefaultSearchLimit).
	Limit int

	// Offset is the number of merged results to skip.
	Offset int

	// PDFOnly keeps only documents with a PDF link.
	PDFOnly bool

	// FullTextOnly keeps only documents carrying full text.
	FullTextOnly bool

	// ResolvePDFs enables open-access PDF resolution for documents
	// that have a DOI but no provider-native PDF link.
	ResolvePDFs bool
}

// ApplyDefaults fills in the default limit and source list.
func (q *SearchQuery) ApplyDefaults() {
	if q.Limit == 0 {
		q.Limit = DefaultSearchLimit
	}
	if len(q.Sources) == 0 {
		q.Sources = append([]SourceType(nil), KnownSourceTypes...)
	}
}

// Validate checks the query invariants. It returns a ValidationError
// describing the first problem found.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return NewValidationError("query", "query is required")
	}
	if q.Limit < 1 {
		return NewValidationError("limit", "limit must be a positive integer")
	}
	if q.Offset < 0 {
		return NewValidationError("offset", "offset must be non-negative")
	}
	if q.YearFrom != nil && q.YearTo != nil && *q.YearFrom > *q.YearTo {
		return NewValidationError("year_from", "year_from must not exceed year_to")
	}
	for _, s := range q.Sources {
		if !IsKnownSource(s) {
			return NewValidationError("sources", "unknown source: "+string(s))
		}
	}
	return nil
}

// DocumentRef identifies a single document for lookup. Exactly one
// identity path must be present: a DOI, or a ResultID (with an optional
// Source hint).
type DocumentRef struct {
	// ResultID is a source-scoped opaque identifier.
	ResultID string

	// Source optionally names the source that owns ResultID.
	Source SourceType

	// DOI identifies the document across all sources.
	DOI string

	// ResolvePDF enables open-access PDF resolution for the result.
	ResolvePDF bool
}

// Validate checks that the reference carries a usable identity.
func (r *DocumentRef) Validate() error {
	if r.ResultID == "" && r.DOI == "" {
		return NewValidationError("result_id", "either result_id or doi is required")
	}
	if r.Source != "" && !IsKnownSource(r.Source) {
		return NewValidationError("source", "unknown source: "+string(r.Source))
	}
	return nil
}

// InferSource guesses which source owns the reference's ResultID when no
// Source hint was given. PubMed IDs are numeric or PMC-prefixed, arXiv
// IDs carry no dots outside the version suffix, and OpenAIRE synthesizes
// "openaire_" identifiers; everything else defaults to Google Scholar.
func (r *DocumentRef) InferSource() SourceType {
	if r.Source != "" {
		return r.Source
	}
	id := r.ResultID
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, "PMC") || isDigits(id):
		return SourceTypePubMed
	case strings.HasPrefix(id, "openaire_"):
		return SourceTypeOpenAIRE
	case looksLikeArXivID(id):
		return SourceTypeArXiv
	default:
		return SourceTypeGoogleScholar
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// looksLikeArXivID matches modern ("2301.12345") and legacy
// ("hep-th/9901001") arXiv identifiers.
func looksLikeArXivID(id string) bool {
	if dot := strings.Index(id, "."); dot > 0 {
		return isDigits(id[:dot])
	}
	return strings.Count(id, "/") == 1 && !strings.Contains(id, " ")
}
