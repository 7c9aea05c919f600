package scholar

// searchResponse is the SerpAPI Google Scholar search payload.
type searchResponse struct {
	SearchParameters searchParameters `json:"search_parameters"`
	SearchInformation searchInformation `json:"search_information"`
	OrganicResults   []organicResult  `json:"organic_results"`
}

type searchParameters struct {
	Query string `json:"q"`
}

type searchInformation struct {
	TotalResults int `json:"total_results"`
}

// organicResult is one Google Scholar hit.
type organicResult struct {
	ResultID        string          `json:"result_id"`
	Title           string          `json:"title"`
	Link            string          `json:"link"`
	Snippet         string          `json:"snippet"`
	PublicationInfo publicationInfo `json:"publication_info"`
	InlineLinks     inlineLinks     `json:"inline_links"`
	Resources       []resource      `json:"resources"`
}

type publicationInfo struct {
	Summary string `json:"summary"`
}

type inlineLinks struct {
	CitedBy citedBy `json:"cited_by"`
}

type citedBy struct {
	Total int `json:"total"`
}

// resource is a sidebar file link, e.g. a hosted PDF.
type resource struct {
	Title      string `json:"title"`
	FileFormat string `json:"file_format"`
	Link       string `json:"link"`
}

// citeResponse is the SerpAPI google_scholar_cite payload.
type citeResponse struct {
	Citation citation `json:"citation"`
}

type citation struct {
	Title           string `json:"title"`
	Authors         string `json:"authors"`
	PublicationDate string `json:"publication_date"`
	Journal         string `json:"journal"`
	Description     string `json:"description"`
	Link            string `json:"link"`
}
