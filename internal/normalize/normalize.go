// Package normalize maps provider-shaped raw records into the canonical
// document schema.
//
// Normalization is total: malformed or missing fields degrade to absent
// values, never to errors. All type coercion for the loosely typed raw
// field maps lives here so source adapters only deal with wire shapes.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
)

// snippetLength is the maximum snippet length in runes.
const snippetLength = 200

// yearRegex finds a plausible four-digit publication year.
var yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Record converts a raw record into a canonical Document. The document
// invariants hold on return: pdf_available mirrors pdf_url, and
// full_text_available mirrors full_text.
func Record(rec domain.RawRecord) domain.Document {
	doc := domain.Document{
		Source:    rec.Source,
		Title:     str(rec.Fields["title"]),
		Journal:   str(rec.Fields["journal"]),
		Abstract:  str(rec.Fields["abstract"]),
		DOI:       domain.NormalizeDOI(str(rec.Fields["doi"])),
		SourceURL: str(rec.Fields["source_url"]),
		ResultID:  str(rec.Fields["result_id"]),
		Authors:   authors(rec.Fields["authors"]),
	}

	doc.PublicationDate, doc.Year = date(str(rec.Fields["publication_date"]))
	doc.CitationCount = count(rec.Fields["citation_count"])
	doc.References = references(rec.Fields["references"])

	doc.Snippet = str(rec.Fields["snippet"])
	if doc.Snippet == "" && doc.Abstract != "" {
		doc.Snippet = domain.Snip(doc.Abstract, snippetLength)
	}

	doc.PDFURL = str(rec.Fields["pdf_url"])
	doc.PDFAvailable = doc.PDFURL != ""

	doc.FullText = str(rec.Fields["full_text"])
	doc.FullTextAvailable = doc.FullText != ""

	return doc
}

// Records normalizes a batch of raw records.
func Records(recs []domain.RawRecord) []domain.Document {
	docs := make([]domain.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, Record(rec))
	}
	return docs
}

// str coerces a field to a trimmed string, accepting the numeric shapes
// JSON decoding produces.
func str(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

// authors unifies the author-list shapes sources produce: a string
// slice, a loose []any of strings or {"name": ...} objects, or a single
// comma-separated string.
func authors(v any) []string {
	switch list := v.(type) {
	case []string:
		return compact(list)
	case []any:
		names := make([]string, 0, len(list))
		for _, item := range list {
			switch a := item.(type) {
			case string:
				names = append(names, a)
			case map[string]any:
				names = append(names, str(a["name"]))
			}
		}
		return compact(names)
	case string:
		return compact(strings.Split(list, ", "))
	default:
		return nil
	}
}

// compact trims entries and drops empty ones, preserving order.
func compact(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// date parses a provider date string into the canonical year-first form,
// tolerating partial dates. It returns the canonical string and the
// extracted year (0 when unknown).
func date(raw string) (string, int) {
	if raw == "" {
		return "", 0
	}

	// Already year-first: keep up to day precision.
	if parts := strings.SplitN(raw, "-", 4); isYear(parts[0]) {
		year, _ := strconv.Atoi(parts[0])
		canonical := parts[0]
		if len(parts) > 1 && isMonthDay(parts[1]) {
			canonical += "-" + pad2(parts[1])
			if len(parts) > 2 && isMonthDay(parts[2]) {
				canonical += "-" + pad2(parts[2])
			}
		}
		return canonical, year
	}

	// Fallback: pull the first plausible year out of free text.
	if y := yearRegex.FindString(raw); y != "" {
		year, _ := strconv.Atoi(y)
		return y, year
	}
	return "", 0
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1000
}

func isMonthDay(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1 && n <= 31
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// count coerces a citation count to a pointer, keeping absence distinct
// from zero. Negative and unparsable values stay absent.
func count(v any) *int {
	var n int
	switch c := v.(type) {
	case int:
		n = c
	case float64:
		n = int(c)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if n < 0 {
		return nil
	}
	return &n
}

// references coerces citation stubs from typed or loose shapes.
func references(v any) []domain.CitationStub {
	switch list := v.(type) {
	case []domain.CitationStub:
		return list
	case []any:
		stubs := make([]domain.CitationStub, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			stub := domain.CitationStub{
				Title:           str(m["title"]),
				PublicationDate: str(m["publication_date"]),
				Journal:         str(m["journal"]),
				Authors:         authors(m["authors"]),
			}
			if stub.Title != "" {
				stubs = append(stubs, stub)
			}
		}
		if len(stubs) == 0 {
			return nil
		}
		return stubs
	default:
		return nil
	}
}
