// Package domain defines the canonical document schema and error types
// shared by all components of the scholarly retrieval service.
package domain

import (
	"regexp"
	"strings"
)

// SourceType identifies an upstream scholarly data source.
type SourceType string

// Known source types.
const (
	SourceTypeGoogleScholar SourceType = "google_scholar"
	SourceTypePubMed        SourceType = "pubmed"
	SourceTypeArXiv         SourceType = "arxiv"
	SourceTypeOpenAIRE      SourceType = "openaire"

	// SourceTypeUnpaywall is used only for documents synthesized from
	// open-access resolver data when no provider knows the DOI.
	SourceTypeUnpaywall SourceType = "unpaywall"
)

// KnownSourceTypes lists the sources that can be requested in a search,
// in the default search order.
var KnownSourceTypes = []SourceType{
	SourceTypeGoogleScholar,
	SourceTypePubMed,
	SourceTypeArXiv,
	SourceTypeOpenAIRE,
}

// IsKnownSource reports whether s names a searchable source.
func IsKnownSource(s SourceType) bool {
	for _, known := range KnownSourceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// CitationStub is a lightweight reference carried inside a Document.
type CitationStub struct {
	Title           string   `json:"title"`
	Authors         []string `json:"authors,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Journal         string   `json:"journal,omitempty"`
}

// Document is the canonical, source-agnostic record that every provider
// payload is normalized into.
//
// Invariants: PDFAvailable is true exactly when PDFURL is non-empty, and
// FullTextAvailable is true exactly when FullText is non-empty. ResultID
// is unique only within Source; DOI, when present, is the preferred
// cross-source identity key.
type Document struct {
	Title           string         `json:"title"`
	Authors         []string       `json:"authors"`
	PublicationDate string         `json:"publication_date"`
	Year            int            `json:"year,omitempty"`
	Journal         string         `json:"journal,omitempty"`
	Abstract        string         `json:"abstract,omitempty"`
	Snippet         string         `json:"snippet,omitempty"`
	DOI             string         `json:"doi,omitempty"`
	PDFAvailable    bool           `json:"pdf_available"`
	PDFURL          string         `json:"pdf_url,omitempty"`
	FullTextAvailable bool         `json:"full_text_available"`
	FullText        string         `json:"full_text,omitempty"`
	CitationCount   *int           `json:"citation_count,omitempty"`
	Source          SourceType     `json:"source"`
	SourceURL       string         `json:"source_url,omitempty"`
	ResultID        string         `json:"result_id,omitempty"`
	References      []CitationStub `json:"references,omitempty"`

	// OAStatus and OASource hold open-access metadata attached by the
	// PDF resolver (e.g. "gold" and the hosting repository).
	OAStatus string `json:"oa_status,omitempty"`
	OASource string `json:"oa_source,omitempty"`
}

// doiRegex matches a DOI embedded in a URL or free text.
var doiRegex = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)

// ExtractDOI returns the first DOI found in s, or "" when none is present.
func ExtractDOI(s string) string {
	return doiRegex.FindString(s)
}

// NormalizeDOI lowercases a DOI and strips surrounding whitespace and
// common resolver prefixes so DOIs from different sources compare equal.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return doi
}

// titleFold strips everything except letters and digits.
var titleFold = regexp.MustCompile(`[^a-z0-9]+`)

// FoldTitle normalizes a title for duplicate detection: lowercase with
// all whitespace and punctuation removed.
func FoldTitle(title string) string {
	return titleFold.ReplaceAllString(strings.ToLower(title), "")
}

// IdentityKey returns the key used for cross-source deduplication:
// the normalized DOI when present, otherwise the folded title.
// An empty key means the document cannot be matched against others.
func (d *Document) IdentityKey() string {
	if doi := NormalizeDOI(d.DOI); doi != "" {
		return "doi:" + doi
	}
	if folded := FoldTitle(d.Title); folded != "" {
		return "title:" + folded
	}
	return ""
}

// Snip returns the leading max runes of s with an ellipsis appended when
// the text was truncated. Used to derive Document.Snippet from abstracts.
func Snip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
