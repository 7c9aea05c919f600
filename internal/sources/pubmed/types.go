package pubmed

import "encoding/xml"

// esearchResponse is the JSON payload of esearch.fcgi.
type esearchResponse struct {
	ESearchResult esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count  string   `json:"count"`
	IDList []string `json:"idlist"`
}

// articleSet is the XML payload of efetch.fcgi.
type articleSet struct {
	XMLName  xml.Name  `xml:"PubmedArticleSet"`
	Articles []article `xml:"PubmedArticle"`
}

// article is one PubmedArticle element.
type article struct {
	PMID         string      `xml:"MedlineCitation>PMID"`
	Title        string      `xml:"MedlineCitation>Article>ArticleTitle"`
	Abstract     []string    `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Journal      string      `xml:"MedlineCitation>Article>Journal>Title"`
	Authors      []author    `xml:"MedlineCitation>Article>AuthorList>Author"`
	PubDate      pubDate     `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate"`
	ArticleIDs   []articleID `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type author struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

// articleID carries a typed identifier such as a DOI or PMC ID.
type articleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}
