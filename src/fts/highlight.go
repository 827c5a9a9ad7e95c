package fts

import (
	"strings"

	"git.handmade.network/hmn/forumwiki/src/models"
)

// Surrounds each highlighted run in text returned by the search backends.
// The same marker opens and closes a run.
const Marker = "<<%%>>"

/*
Splits a highlighted snippet into alternating Normal and Highlight fragments.
Only lines containing a marker are kept, joined with ". ". Text before the
first marker is Normal, and so is anything after the last one. Empty
fragments are left out.
*/
func ParseHighlights(text string) []models.SearchResultFragment {
	return parseHighlights(text, Marker)
}

func parseHighlights(text, marker string) []models.SearchResultFragment {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.Contains(line, marker) {
			lines = append(lines, line)
		}
	}
	text = strings.Join(lines, ". ")

	var result []models.SearchResultFragment
	last := 0
	matched := 0
	for {
		idx := strings.Index(text[last:], marker)
		if idx < 0 {
			break
		}
		idx += last

		if idx != last {
			if matched%2 == 1 {
				result = append(result, models.Highlight(text[last:idx]))
			} else {
				result = append(result, models.Normal(text[last:idx]))
			}
		}
		matched++
		last = idx + len(marker)
	}
	if last < len(text) {
		result = append(result, models.Normal(text[last:]))
	}

	return result
}
