package models

import (
	"encoding/json"
	"time"
)

type FragmentKind int

const (
	FragmentNormal FragmentKind = iota
	FragmentHighlight
)

type SearchResultFragment struct {
	Kind FragmentKind
	Text string
}

func Normal(text string) SearchResultFragment {
	return SearchResultFragment{Kind: FragmentNormal, Text: text}
}

func Highlight(text string) SearchResultFragment {
	return SearchResultFragment{Kind: FragmentHighlight, Text: text}
}

// Fragments go over the wire as {"Normal": "..."} or {"Highlight": "..."}.
func (f SearchResultFragment) MarshalJSON() ([]byte, error) {
	key := "Normal"
	if f.Kind == FragmentHighlight {
		key = "Highlight"
	}
	return json.Marshal(map[string]string{key: f.Text})
}

type MessageSearchResult struct {
	ID         int       `db:"id" json:"id"`
	ThreadID   int       `db:"thread_id" json:"threadId"`
	ThreadName string    `db:"thread_name" json:"threadName"`
	CreateTime time.Time `db:"create_time" json:"createTime"`
	User       User      `db:"author" json:"user"`
	Content    string    `db:"content" json:"content"`
}

type ArticleSearchResult struct {
	Info ArticleInfo            `json:"info"`
	Text []SearchResultFragment `json:"text"`
}
