package openaire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
	"github.com/helixir/scholarly-retrieval-service/internal/sources"
)

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL: serverURL,
		Enabled: true,
	}, sources.NewHTTPClient(sources.HTTPClientConfig{
		Source:    "openaire",
		RateLimit: 1000,
		Logger:    zerolog.Nop(),
	}))
}

// searchJSON exercises the payload quirks: single-element collections
// rendered as bare objects, values wrapped in {"$": ...} objects, and
// the oaf:entity/oaf:result nesting.
const searchJSON = `{
	"response": {
		"results": {
			"total": "311",
			"result": [
				{
					"metadata": {
						"oaf:entity": {
							"oaf:result": {
								"title": [
									{"classid": "main title", "$": "Open access and academic impact"},
									{"classid": "alternate title", "$": "OA impact"}
								],
								"description": {"$": "We study citation advantages of open access."},
								"dateofacceptance": {"$": "2021-03-15"},
								"journal": {"$": "Scientometrics"},
								"creator": [
									{"rank": "1", "$": "Maria Santos"},
									{"rank": "2", "$": "Jan Kowalski"}
								],
								"pid": [
									{"classid": "pmid", "$": "33123456"},
									{"classid": "doi", "$": "10.1007/s11192-021-03912-3"}
								],
								"instance": [
									{
										"accessright": {"classid": "CLOSED"},
										"webresource": {"url": {"$": "https://publisher.example.org/paywalled.pdf"}}
									},
									{
										"accessright": {"classid": "OPEN"},
										"webresource": [
											{"url": {"$": "https://repo.example.org/record/123"}},
											{"url": {"$": "https://repo.example.org/record/123/files/oa-impact.pdf"}}
										]
									}
								]
							}
						}
					}
				},
				{
					"metadata": {
						"oaf:entity": {
							"oaf:result": {
								"title": {"$": "A report without identifiers"},
								"dateofacceptance": {"$": "2019"}
							}
						}
					}
				},
				{
					"metadata": {
						"oaf:entity": {
							"oaf:result": {
								"description": {"$": "No title at all, dropped."}
							}
						}
					}
				}
			]
		}
	}
}`

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/publications", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "open access impact", q.Get("keywords"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "10", q.Get("size"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "2015-01-01", q.Get("fromDateAccepted"))
		assert.Equal(t, "2022-12-31", q.Get("toDateAccepted"))
		fmt.Fprint(w, searchJSON)
	}))
	defer server.Close()

	from, to := 2015, 2022
	result, err := newTestClient(server.URL).Search(context.Background(), domain.SearchQuery{
		Query:    "open access impact",
		Limit:    10,
		YearFrom: &from,
		YearTo:   &to,
	})
	require.NoError(t, err)

	assert.Equal(t, 311, result.TotalResults)
	assert.Equal(t, domain.SourceTypeOpenAIRE, result.Source)
	require.Len(t, result.Records, 2)

	first := result.Records[0].Fields
	assert.Equal(t, "Open access and academic impact", first["title"])
	assert.Equal(t, "We study citation advantages of open access.", first["abstract"])
	assert.Equal(t, "2021-03-15", first["publication_date"])
	assert.Equal(t, "Scientometrics", first["journal"])
	assert.Equal(t, []string{"Maria Santos", "Jan Kowalski"}, first["authors"])
	assert.Equal(t, "10.1007/s11192-021-03912-3", first["doi"])
	assert.Equal(t, "10.1007/s11192-021-03912-3", first["result_id"])
	// The CLOSED instance's pdf is skipped even though it ends in .pdf.
	assert.Equal(t, "https://repo.example.org/record/123/files/oa-impact.pdf", first["pdf_url"])

	second := result.Records[1].Fields
	assert.Equal(t, "A report without identifiers", second["title"])
	assert.Equal(t, "openaire_a_report_without_identifiers", second["result_id"])
	assert.NotContains(t, second, "pdf_url")
}

func TestSearchPageFromOffset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		fmt.Fprint(w, `{"response": {"results": {"total": "0"}}}`)
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Search(context.Background(), domain.SearchQuery{
		Query:  "anything",
		Limit:  10,
		Offset: 20,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
}

func TestFetchByDOI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "10.1007/s11192-021-03912-3", q.Get("keywords"))
		assert.Equal(t, "1", q.Get("size"))
		fmt.Fprint(w, searchJSON)
	}))
	defer server.Close()

	rec, err := newTestClient(server.URL).FetchByDOI(context.Background(), "10.1007/s11192-021-03912-3")
	require.NoError(t, err)
	assert.Equal(t, "Open access and academic impact", rec.Fields["title"])
}

func TestFetchByDOIRequiresDOI(t *testing.T) {
	_, err := newTestClient("http://unused.invalid").FetchByDOI(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFetchBySyntheticID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The synthetic prefix is stripped before searching.
		assert.Equal(t, "a_report_without_identifiers", r.URL.Query().Get("keywords"))
		fmt.Fprint(w, searchJSON)
	}))
	defer server.Close()

	rec, err := newTestClient(server.URL).Fetch(context.Background(), domain.DocumentRef{
		ResultID: "openaire_a_report_without_identifiers",
	})
	require.NoError(t, err)
	assert.Equal(t, "Open access and academic impact", rec.Fields["title"])
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": {"results": {"total": "0"}}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), domain.DocumentRef{ResultID: "openaire_missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIsEnabled(t *testing.T) {
	assert.True(t, New(Config{Enabled: true}, nil).IsEnabled())
	assert.False(t, New(Config{}, nil).IsEnabled())
}

func TestSyntheticID(t *testing.T) {
	assert.Equal(t, "openaire_short_title", syntheticID("Short Title"))

	long := syntheticID("an extremely long title that keeps going well past any reasonable length for an identifier slug")
	assert.Len(t, long, len("openaire_")+50)
}

func TestFirstValue(t *testing.T) {
	tests := []struct {
		name string
		node any
		want string
	}{
		{"bare string", "  plain  ", "plain"},
		{"value object", map[string]any{"value": "wrapped"}, "wrapped"},
		{"dollar object", map[string]any{"$": "wrapped"}, "wrapped"},
		{"list picks first nonempty", []any{"", map[string]any{"$": "second"}}, "second"},
		{"number", float64(2021), "2021"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstValue(tt.node))
		})
	}
}
