package domain

// RawRecord is the provider-specific intermediate shape produced by a
// source adapter before normalization. Fields is a loose mapping because
// upstream payloads are loosely typed; the normalizer owns all coercion
// and treats missing or oddly shaped fields as explicit absence.
//
// Adapters use the following field keys where the source provides the
// data: title, authors, publication_date, journal, abstract, snippet,
// doi, pdf_url, full_text, citation_count, source_url, result_id,
// references.
type RawRecord struct {
	// Source identifies the adapter that produced this record.
	Source SourceType

	// Fields holds the provider payload keyed by canonical field name.
	Fields map[string]any
}

// NewRawRecord creates a RawRecord with an initialized field map.
func NewRawRecord(source SourceType) RawRecord {
	return RawRecord{Source: source, Fields: make(map[string]any)}
}

// Set stores a field value, dropping empty strings and nils so the
// normalizer can distinguish absence from zero values.
func (r RawRecord) Set(key string, value any) {
	switch v := value.(type) {
	case nil:
		return
	case string:
		if v == "" {
			return
		}
	}
	r.Fields[key] = value
}
