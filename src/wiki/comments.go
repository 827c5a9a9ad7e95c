package wiki

import (
	"context"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/utils"
)

const CommentsPerPage = 50

/*
Adds a comment to an article and returns its id. Comment ids count up from 1
per article. The comment records the version it was made on: the given one,
or the active version if in.ArticleVersion is nil. Fails with
KindArticleNotFound if that version is missing or hidden from the author.
*/
func PostComment(ctx context.Context, conn db.ConnOrTx, in models.NewComment, author *models.User) (int, error) {
	article, err := FetchArticle(ctx, conn, in.ArticleID, in.ArticleVersion, author)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginExclusive(ctx, conn, "article_comment")
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	count, err := db.QueryOneScalar[int](ctx, tx, `SELECT count(*) FROM article_comment WHERE article_id = $1`, in.ArticleID)
	if err != nil {
		return 0, oops.New(err, "failed to count comments")
	}
	seq := count + 1

	contentID, err := db.QueryOneScalar[int](ctx, tx, `INSERT INTO article_comment_content (content) VALUES ($1) RETURNING id`, in.Message)
	if err != nil {
		return 0, oops.New(err, "failed to insert comment content")
	}

	now := time.Now()
	_, err = tx.Exec(ctx,
		`
		INSERT INTO article_comment (article_id, id, article_version, user_id, create_time, update_time, content_id)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		`,
		in.ArticleID,
		seq,
		article.Version,
		author.ID,
		now,
		contentID,
	)
	if err != nil {
		return 0, oops.New(err, "failed to insert comment")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.New(err, "failed to commit comment")
	}

	return seq, nil
}

// Works like forum.UpdateMessage: the content is replaced first, then the
// edit time is set only if the editor wrote the comment. A failed step leaves
// the comment unchanged.
func UpdateComment(ctx context.Context, conn db.ConnOrTx, in models.CommentEdit, editor *models.User) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`
		UPDATE article_comment_content
		SET content = $3
		FROM article_comment
		WHERE
			article_comment.article_id = $1
			AND article_comment.id = $2
			AND article_comment_content.id = article_comment.content_id
		`,
		in.ArticleID,
		in.CommentID,
		in.Message,
	)
	if err != nil {
		return oops.New(err, "failed to update comment content")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindMessageNotFound)
	}

	tag, err = tx.Exec(ctx,
		`
		UPDATE article_comment
		SET update_time = $4
		WHERE article_id = $1 AND id = $2 AND user_id = $3
		`,
		in.ArticleID,
		in.CommentID,
		editor.ID,
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to update comment")
	}
	if tag.RowsAffected() == 0 {
		return oops.Fail(oops.KindMessageNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.New(err, "failed to commit comment edit")
	}
	return nil
}

/*
Fetches one page of an article's comments in id order, with the total count
and the article's name and path. Fails with KindArticleNotFound unless the
article has an active version the caller can see. Pages are 1-based.
*/
func ListComments(ctx context.Context, conn db.ConnOrTx, articleID int, page int, caller *models.User) (*models.CommentsPage, error) {
	var infoQb db.QueryBuilder
	infoQb.Add(articleInfoQuery)
	infoQb.Add(`WHERE a.id = $?`, articleID)
	VisibleTo(&infoQb, "a", caller)

	infos, err := db.Query[models.ArticleInfo](ctx, conn, infoQb.String(), infoQb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch article info")
	}
	if len(infos) == 0 {
		return nil, oops.Fail(oops.KindArticleNotFound)
	}

	var qb db.QueryBuilder
	qb.Add(
		`
		SELECT $columns{c}
		FROM
			(
				SELECT
					article_comment.id,
					article_comment.article_id,
					article_comment.user_id,
					article_comment.create_time,
					article_comment.update_time,
					article_comment_content.content
				FROM
					article_comment
					JOIN article_comment_content ON article_comment_content.id = article_comment.content_id
				WHERE article_comment.article_id = $?
			) AS c
			JOIN app_user AS c_author ON c_author.id = c.user_id
		ORDER BY c.id
		LIMIT $?
		`,
		articleID,
		CommentsPerPage,
	)
	if offset := utils.PageOffset(page, CommentsPerPage); offset > 0 {
		qb.Add(`OFFSET $?`, offset)
	}

	comments, err := db.Query[models.Comment](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch comments")
	}

	total, err := db.QueryOneScalar[int](ctx, conn, `SELECT count(*) FROM article_comment WHERE article_id = $1`, articleID)
	if err != nil {
		return nil, oops.New(err, "failed to count comments")
	}

	if comments == nil {
		comments = []*models.Comment{}
	}

	return &models.CommentsPage{
		ArticleInfo:   *infos[0],
		Comments:      comments,
		TotalComments: total,
	}, nil
}
