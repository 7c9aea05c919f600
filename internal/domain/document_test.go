package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDOI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare DOI", "10.1038/s41586-021-03819-2", "10.1038/s41586-021-03819-2"},
		{"inside URL", "https://doi.org/10.1103/PhysRevLett.116.061102", "10.1103/PhysRevLett.116.061102"},
		{"inside snippet", "as shown previously, doi: 10.1234/abc.def and later", "10.1234/abc.def"},
		{"no DOI", "a sentence with nothing in it", ""},
		{"short registrant", "10.99/not-a-doi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDOI(tt.input))
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"10.1234/ABC", "10.1234/abc"},
		{"https://doi.org/10.1234/abc", "10.1234/abc"},
		{"http://doi.org/10.1234/abc", "10.1234/abc"},
		{"doi:10.1234/abc", "10.1234/abc"},
		{"  10.1234/abc  ", "10.1234/abc"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDOI(tt.input), "input %q", tt.input)
	}
}

func TestFoldTitle(t *testing.T) {
	assert.Equal(t, FoldTitle("A Tale of Two Cities!"), FoldTitle("a   tale of two cities"))
	assert.NotEqual(t, FoldTitle("A Tale of Two Cities"), FoldTitle("A Tale of Three Cities"))
	assert.Equal(t, "", FoldTitle("!!!"))
}

func TestIdentityKey(t *testing.T) {
	withDOI := Document{Title: "Some Title", DOI: "https://doi.org/10.1234/X"}
	assert.Equal(t, "doi:10.1234/x", withDOI.IdentityKey(), "DOI wins over title")

	titleOnly := Document{Title: "Some Title"}
	assert.Equal(t, "title:sometitle", titleOnly.IdentityKey())

	empty := Document{}
	assert.Equal(t, "", empty.IdentityKey())
}

func TestSnip(t *testing.T) {
	assert.Equal(t, "short", Snip("short", 10))
	assert.Equal(t, "exactly10!", Snip("exactly10!", 10))
	assert.Equal(t, "abcde...", Snip("abcdefgh", 5))
	assert.Equal(t, "héllo...", Snip("héllo wörld", 5), "truncation must be rune-safe")
}

func TestIsKnownSource(t *testing.T) {
	for _, st := range KnownSourceTypes {
		assert.True(t, IsKnownSource(st))
	}
	assert.False(t, IsKnownSource(SourceTypeUnpaywall),
		"unpaywall is synthesis-only, never searchable")
	assert.False(t, IsKnownSource("library_of_congress"))
}
