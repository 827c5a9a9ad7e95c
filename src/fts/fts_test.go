package fts

import (
	"testing"

	"git.handmade.network/hmn/forumwiki/src/models"
	"github.com/stretchr/testify/assert"
)

func TestReformatQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Test query", "Test query"},
		{"phrase", `"Test query"`, `"Test query"`},
		{"operator", "Test AND query", "Test AND query"},
		{"hyphen and prefix", "Test-123 NOT query*", `"Test-123" NOT query*`},
		{"punctuation", "what's (this) + that?", "what s this that"},
		{"unclosed quote", `"open phrase`, `"open phrase"`},
		{"stray quote in word", `fo"o bar`, "foo bar"},
		{"quote inside phrase", `"a b"c d"`, `"a bc d"`},
		{"quoted hyphen", `"a-b"`, `"a-b"`},
		{"lone quote", `"`, `"`},
		{"whitespace", "  lots   of\tspace \n", "lots of space"},
		{"unicode", "Grüße 日本", "Grüße 日本"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReformatQuery(tt.input))
		})
	}
}

func TestToTsQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"terms", "foo bar", "'foo' & 'bar'"},
		{"prefix", "foo*", "'foo':*"},
		{"inner star", "f*oo", "'foo'"},
		{"phrase", `"foo bar"`, "('foo' <-> 'bar')"},
		{"single word phrase", `"foo"`, "'foo'"},
		{"hyphenated", `"Test-123" NOT query*`, "'Test-123' & ! 'query':*"},
		{"or", "a OR b", "'a' | 'b'"},
		{"lowercase operators are terms", "a or b", "'a' & 'or' & 'b'"},
		{"leading operator", "AND a", "'a'"},
		{"trailing operator", "a OR", "'a'"},
		{"repeated operators", "a AND OR b", "'a' | 'b'"},
		{"only operators", "AND OR NOT", ""},
		{"leading not", "NOT secret", "! 'secret'"},
		{"not after or", "a OR NOT b", "'a' | ! 'b'"},
		{"repeated not", "a NOT NOT b", "'a' & ! 'b'"},
		{"trailing not", "a NOT", "'a'"},
		{"symbols only", "* _ \"\"", ""},
		{"unterminated phrase", `"a b`, "('a' <-> 'b')"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToTsQuery(tt.input))
		})
	}

	t.Run("sanitized input", func(t *testing.T) {
		assert.Equal(t, "'Test-123' & ! 'query':*", ToTsQuery(ReformatQuery("Test-123 NOT query*")))
		assert.Equal(t, "! 'secret'", ToTsQuery(ReformatQuery("NOT secret")))
		assert.Equal(t, "'x' & ('open' <-> 'phrase')", ToTsQuery(ReformatQuery(`x "open phrase`)))
	})
}

func TestParseHighlights(t *testing.T) {
	t.Run("alternating", func(t *testing.T) {
		assert.Equal(t, []models.SearchResultFragment{
			models.Normal("a"),
			models.Highlight("b"),
			models.Normal("c"),
		}, parseHighlights("aMbMc", "M"))
	})
	t.Run("leading marker", func(t *testing.T) {
		assert.Equal(t, []models.SearchResultFragment{
			models.Highlight("hit"),
			models.Normal(" rest"),
		}, parseHighlights("MhitM rest", "M"))
	})
	t.Run("empty runs skipped", func(t *testing.T) {
		assert.Equal(t, []models.SearchResultFragment{
			models.Normal("a"),
			models.Highlight("b"),
		}, parseHighlights("aMbMM", "M"))
	})
	t.Run("lines without highlights dropped", func(t *testing.T) {
		text := "intro line\nfirst " + Marker + "hit" + Marker + "\r\nnothing here\nsecond " + Marker + "hit" + Marker
		assert.Equal(t, []models.SearchResultFragment{
			models.Normal("first "),
			models.Highlight("hit"),
			models.Normal(". second "),
			models.Highlight("hit"),
		}, ParseHighlights(text))
	})
	t.Run("no markers", func(t *testing.T) {
		assert.Nil(t, ParseHighlights("nothing\nat all"))
	})
}
