package models

import "time"

type Comment struct {
	ID         int        `db:"id" json:"id"`
	User       User       `db:"author" json:"user"`
	ArticleID  int        `db:"article_id" json:"articleId"`
	CreateTime time.Time  `db:"create_time" json:"createTime"`
	UpdateTime *time.Time `db:"update_time" json:"updateTime"`
	Content    string     `db:"content" json:"content"`
}

type CommentsPage struct {
	ArticleInfo   ArticleInfo `json:"articleInfo"`
	Comments      []*Comment  `json:"comments"`
	TotalComments int         `json:"totalComments"`
}

// ArticleVersion pins the comment to a specific version. Otherwise the
// active version is recorded.
type NewComment struct {
	ArticleID      int    `json:"articleId"`
	ArticleVersion *int   `json:"articleVersion"`
	Message        string `json:"message"`
}

type CommentEdit struct {
	ArticleID int    `json:"articleId"`
	CommentID int    `json:"commentId"`
	Message   string `json:"message"`
}
