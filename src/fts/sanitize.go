/*
Package fts turns untrusted search input into full-text queries and parses
highlighted search snippets back into fragments.

User input first goes through ReformatQuery, which produces a safe
FTS5-style expression: bare terms, "quoted phrases", AND/OR/NOT and trailing
* prefixes. ToTsQuery then compiles that expression for Postgres'
to_tsquery, and search.Meili sends it to Meilisearch as is.
*/
package fts

import (
	"strings"
	"unicode"
)

/*
Normalizes free text into a query that can never be a syntax error.

Anything but letters, digits, '-', '_', '*' and '"' becomes whitespace.
Unbalanced quotes are repaired, stray quotes inside words are dropped, and
words containing '-' are quoted so the hyphen is never read as negation.
*/
func ReformatQuery(query string) string {
	query = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_' || r == '*' || r == '"' {
			return r
		}
		return ' '
	}, query)

	var result []string
	quoted := false
	var accum string

	for _, s := range strings.Fields(query) {
		if !quoted {
			if strings.Contains(s, `"`) && !strings.HasPrefix(s, `"`) {
				s = stripQuotes(s)
			}

			if strings.HasPrefix(s, `"`) {
				if strings.HasSuffix(s, `"`) {
					result = append(result, s)
				} else {
					accum = s
					quoted = true
				}
			} else if strings.Contains(s, "-") {
				result = append(result, `"`+s+`"`)
			} else {
				result = append(result, s)
			}
		} else {
			if strings.Contains(s, `"`) && !strings.HasSuffix(s, `"`) {
				s = stripQuotes(s)
			}

			if strings.HasSuffix(s, `"`) {
				result = append(result, accum+" "+s)
				accum = ""
				quoted = false
			} else {
				accum = accum + " " + s
			}
		}
	}

	if quoted {
		result = append(result, accum+`"`)
	}

	return strings.Join(result, " ")
}

func stripQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
