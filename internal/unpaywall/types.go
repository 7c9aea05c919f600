package unpaywall

// record is the Unpaywall v2 DOI object, reduced to the fields the
// resolver reads.
type record struct {
	DOI            string       `json:"doi"`
	Title          string       `json:"title"`
	JournalName    string       `json:"journal_name"`
	Year           int          `json:"year"`
	IsOA           bool         `json:"is_oa"`
	OAStatus       string       `json:"oa_status"`
	BestOALocation *oaLocation  `json:"best_oa_location"`
	OALocations    []oaLocation `json:"oa_locations"`
	ZAuthors       []author     `json:"z_authors"`
}

type oaLocation struct {
	URL                   string `json:"url"`
	URLForPDF             string `json:"url_for_pdf"`
	HostType              string `json:"host_type"`
	Version               string `json:"version"`
	License               string `json:"license"`
	Updated               string `json:"updated"`
	RepositoryInstitution string `json:"repository_institution"`
}

type author struct {
	Family string `json:"family"`
	Given  string `json:"given"`
}
