package models

import (
	"fmt"
	"time"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown visibility %q", s)
	}
	return v, nil
}

type ArticleInfo struct {
	ID   int    `db:"id" json:"id"`
	Path string `db:"path" json:"path"`
	Name string `db:"name" json:"name"`
}

type Article struct {
	Info          ArticleInfo `json:"info"`
	Content       string      `json:"content"`
	User          User        `json:"user"`
	CreateTime    time.Time   `json:"createTime"`
	Version       int         `json:"version"`
	Active        bool        `json:"active"`
	CommentsCount int         `json:"commentsCount"`
	Visibility    Visibility  `json:"visibility"`

	Versions []*ArticleVersion `json:"versions"`
}

type ArticleVersion struct {
	Version    int       `db:"version" json:"version"`
	CreateTime time.Time `db:"create_time" json:"createTime"`
	User       User      `db:"author" json:"user"`
	Active     bool      `db:"active" json:"active"`
}

type ArticleInput struct {
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	Content    string     `json:"content"`
	Visibility Visibility `json:"visibility"`
}
