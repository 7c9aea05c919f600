package scholar

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
		APIKey:  "serp-key",
		Enabled: true,
	}, sources.NewHTTPClient(sources.HTTPClientConfig{
		Source:    "google_scholar",
		RateLimit: 1000,
		Logger:    zerolog.Nop(),
	}))
}

const searchJSON = `{
	"search_information": {"total_results": 215000},
	"organic_results": [
		{
			"result_id": "KrlRM5wVvMAJ",
			"title": "Deep learning",
			"link": "https://www.nature.com/articles/nature14539",
			"snippet": "Deep learning allows computational models... full text at https://research.example.org/deep-learning.pdf",
			"publication_info": {"summary": "Y LeCun, Y Bengio, G Hinton - Nature, 2015 - nature.com"},
			"inline_links": {"cited_by": {"total": 65432}},
			"resources": [
				{"title": "example.org", "file_format": "PDF", "link": "https://hosted.example.org/lecun2015.pdf"}
			]
		},
		{
			"result_id": "xFpLqQ2kWcYJ",
			"title": "Obscure preprint",
			"link": "https://example.org/paper",
			"snippet": "No hosted copies anywhere.",
			"publication_info": {"summary": ""}
		}
	]
}`

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_scholar", q.Get("engine"))
		assert.Equal(t, "deep learning", q.Get("q"))
		assert.Equal(t, "serp-key", q.Get("api_key"))
		assert.Equal(t, "10", q.Get("num"))
		assert.Equal(t, "2010", q.Get("as_ylo"))
		assert.Equal(t, "2020", q.Get("as_yhi"))
		fmt.Fprint(w, searchJSON)
	}))
	defer server.Close()

	from, to := 2010, 2020
	result, err := newTestClient(server.URL).Search(context.Background(), domain.SearchQuery{
		Query:    "deep learning",
		Limit:    10,
		YearFrom: &from,
		YearTo:   &to,
	})
	require.NoError(t, err)

	assert.Equal(t, 215000, result.TotalResults)
	assert.Equal(t, domain.SourceTypeGoogleScholar, result.Source)
	require.Len(t, result.Records, 2)

	first := result.Records[0].Fields
	assert.Equal(t, "Deep learning", first["title"])
	assert.Equal(t, []string{"Y LeCun", "Y Bengio", "G Hinton"}, first["authors"])
	assert.Equal(t, "2015", first["publication_date"])
	assert.Equal(t, "nature.com", first["journal"])
	assert.Equal(t, 65432, first["citation_count"])
	assert.Equal(t, "https://hosted.example.org/lecun2015.pdf", first["pdf_url"],
		"a PDF resource outranks links found in the snippet")
	assert.Equal(t, "KrlRM5wVvMAJ", first["result_id"])

	second := result.Records[1].Fields
	assert.NotContains(t, second, "pdf_url")
	assert.NotContains(t, second, "citation_count")
}

func TestSearchOffsetMapsToStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("start"))
		fmt.Fprint(w, `{"organic_results": []}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Search(context.Background(), domain.SearchQuery{
		Query: "x", Limit: 10, Offset: 20,
	})
	require.NoError(t, err)
}

func TestSearchWithoutAPIKey(t *testing.T) {
	client := New(Config{Enabled: true}, nil)

	_, err := client.Search(context.Background(), domain.SearchQuery{Query: "x", Limit: 10})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.False(t, client.IsEnabled())
}

func TestFetchCitation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_scholar_cite", q.Get("engine"))
		assert.Equal(t, "KrlRM5wVvMAJ", q.Get("q"))
		fmt.Fprint(w, `{
			"citation": {
				"title": "Deep learning",
				"authors": "Y LeCun, Y Bengio, G Hinton",
				"publication_date": "2015-05-27",
				"journal": "Nature",
				"link": "https://www.nature.com/articles/nature14539"
			}
		}`)
	}))
	defer server.Close()

	rec, err := newTestClient(server.URL).Fetch(context.Background(), domain.DocumentRef{ResultID: "KrlRM5wVvMAJ"})
	require.NoError(t, err)

	assert.Equal(t, "Deep learning", rec.Fields["title"])
	assert.Equal(t, []string{"Y LeCun", "Y Bengio", "G Hinton"}, rec.Fields["authors"])
	assert.Equal(t, "Nature", rec.Fields["journal"])
}

func TestFetchEmptyCitationIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"citation": {}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), domain.DocumentRef{ResultID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchByDOIUnsupported(t *testing.T) {
	client := newTestClient("http://unused")

	_, err := client.Fetch(context.Background(), domain.DocumentRef{DOI: "10.1038/nature14539"})
	assert.ErrorIs(t, err, domain.ErrNotSupported)
}

func TestExtractPDFURLPriority(t *testing.T) {
	tests := []struct {
		name   string
		result organicResult
		want   string
	}{
		{
			"resource wins",
			organicResult{
				Link:      "https://host.example.org/main.pdf",
				Snippet:   "see https://other.example.org/copy.pdf",
				Resources: []resource{{FileFormat: "PDF", Link: "https://res.example.org/r.pdf"}},
			},
			"https://res.example.org/r.pdf",
		},
		{
			"pdf link next",
			organicResult{
				Link:    "https://host.example.org/main.pdf",
				Snippet: "see https://other.example.org/copy.pdf",
			},
			"https://host.example.org/main.pdf",
		},
		{
			"snippet last",
			organicResult{
				Link:    "https://host.example.org/landing",
				Snippet: "see https://other.example.org/copy.pdf here",
			},
			"https://other.example.org/copy.pdf",
		},
		{
			"nothing",
			organicResult{Link: "https://host.example.org/landing", Snippet: "no copies"},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractPDFURL(&tt.result))
		})
	}
}

func TestParseAuthorsAndJournal(t *testing.T) {
	summary := "A Author, B Coauthor - Some Title, 2019 - Journal of Things, vol 4"
	assert.Equal(t, []string{"A Author", "B Coauthor"}, parseAuthors(summary))
	assert.Equal(t, "Journal of Things", parseJournal(summary))

	assert.Nil(t, parseAuthors("no separators at all"))
	assert.Equal(t, "", parseJournal("A Author - Title only"))
}
