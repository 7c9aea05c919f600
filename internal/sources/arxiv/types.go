package arxiv

import "encoding/xml"

// feed represents the Atom XML response from the arXiv API.
type feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	StartIndex   int      `xml:"startIndex"`
	Entries      []entry  `xml:"entry"`
}

// entry represents a single arXiv paper in the Atom feed.
type entry struct {
	ID         string   `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title      string   `xml:"title"`
	Summary    string   `xml:"summary"` // abstract
	Published  string   `xml:"published"`
	Authors    []author `xml:"author"`
	Links      []link   `xml:"link"`
	DOI        string   `xml:"doi"`
	JournalRef string   `xml:"journal_ref"`
}

// author represents a paper author in the Atom feed.
type author struct {
	Name string `xml:"name"`
}

// link represents a link element in the Atom feed.
type link struct {
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
