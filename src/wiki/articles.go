/*
Package wiki stores versioned articles, their comments, and users' favorite
articles.

Every article id has exactly one active row. Editing an article deactivates
the active row and inserts a new one with the next version number. The text
itself lives in article_content, which always holds the newest name and
content and is what full-text search indexes. Deactivated rows keep their own
copy of the name and content so that old versions can still be read.
*/
package wiki

import (
	"context"
	"errors"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/utils"
	"github.com/jackc/pgx/v5"
)

type articleRow struct {
	ID            int               `db:"id"`
	Path          string            `db:"path"`
	Name          *string           `db:"name"`
	Content       *string           `db:"content"`
	ContentID     *int              `db:"content_id"`
	Author        models.User       `db:"author"`
	CreateTime    time.Time         `db:"create_time"`
	Version       int               `db:"version"`
	Active        bool              `db:"active"`
	Visibility    models.Visibility `db:"visibility"`
	CommentsCount int               `db:"comments_count"`
}

func (r *articleRow) toModel() *models.Article {
	return &models.Article{
		Info: models.ArticleInfo{
			ID:   r.ID,
			Path: r.Path,
			Name: deref(r.Name),
		},
		Content:       deref(r.Content),
		User:          r.Author,
		CreateTime:    r.CreateTime,
		Version:       r.Version,
		Active:        r.Active,
		CommentsCount: r.CommentsCount,
		Visibility:    r.Visibility,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

/*
Restricts the article rows under alias to the ones the caller may see: public
ones, plus the caller's own. A nil caller only sees public articles. The
clause starts with AND, so it must follow a WHERE.
*/
func VisibleTo(qb *db.QueryBuilder, alias string, caller *models.User) {
	if caller == nil {
		qb.Add(`AND ` + alias + `.visibility = 'public'`)
	} else {
		qb.Add(`AND (`+alias+`.visibility = 'public' OR `+alias+`.user_id = $?)`, caller.ID)
	}
}

/*
Creates version 1 of a new article and returns the article's id. Ids are
allocated as one more than the highest existing id. An empty visibility means
public.
*/
func CreateArticle(ctx context.Context, conn db.ConnOrTx, in models.ArticleInput, author *models.User) (int, error) {
	tx, err := db.BeginExclusive(ctx, conn, "article")
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	id, err := db.QueryOneScalar[int](ctx, tx, `SELECT COALESCE(max(id), 0) + 1 FROM article`)
	if err != nil {
		return 0, oops.New(err, "failed to allocate article id")
	}

	contentID, err := db.QueryOneScalar[int](ctx, tx,
		`INSERT INTO article_content (name, content) VALUES ($1, $2) RETURNING id`,
		in.Name,
		in.Content,
	)
	if err != nil {
		return 0, oops.New(err, "failed to insert article content")
	}

	tag, err := tx.Exec(ctx,
		`
		INSERT INTO article (id, version, path, content_id, user_id, create_time, active, visibility)
		VALUES ($1, 1, $2, $3, $4, $5, TRUE, $6)
		`,
		id,
		in.Path,
		contentID,
		author.ID,
		time.Now(),
		string(utils.OrDefault(in.Visibility, models.VisibilityPublic)),
	)
	if err != nil {
		return 0, oops.New(err, "failed to insert article")
	}
	if tag.RowsAffected() == 0 {
		return 0, oops.Fail(oops.KindCreate)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.New(err, "failed to commit new article")
	}

	logging.ExtractLogger(ctx).Debug().Int("article", id).Msg("created article")

	return id, nil
}

/*
Saves a new version of an article and returns its version number. The caller
must be able to see the current version, otherwise this fails with
KindArticleNotFound, as it does for deleted articles.

The current row is deactivated with a copy of its text, then the shared
content record is overwritten with the new text, then a new active row is
inserted pointing at that record.
*/
func UpdateArticle(ctx context.Context, conn db.ConnOrTx, id int, in models.ArticleInput, editor *models.User) (int, error) {
	tx, err := db.BeginExclusive(ctx, conn, "article")
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	current, err := fetchActive(ctx, tx, id, editor)
	if err != nil {
		return 0, err
	}

	if err := deactivate(ctx, tx, current); err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE article_content SET name = $2, content = $3 WHERE id = $1`,
		*current.ContentID,
		in.Name,
		in.Content,
	)
	if err != nil {
		return 0, oops.New(err, "failed to overwrite article content")
	}

	version, err := db.QueryOneScalar[int](ctx, tx, `SELECT max(version) + 1 FROM article WHERE id = $1`, id)
	if err != nil {
		return 0, oops.New(err, "failed to allocate article version")
	}

	_, err = tx.Exec(ctx,
		`
		INSERT INTO article (id, version, path, content_id, user_id, create_time, active, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		`,
		id,
		version,
		in.Path,
		*current.ContentID,
		editor.ID,
		time.Now(),
		string(utils.OrDefault(in.Visibility, current.Visibility)),
	)
	if err != nil {
		return 0, oops.New(err, "failed to insert article version")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, oops.New(err, "failed to commit article version")
	}

	return version, nil
}

/*
Deactivates the current version without a replacement and removes the content
record, so the article drops out of listings and search. Old versions stay
readable. Fails with KindArticleNotFound if there is no active version the
caller can see.
*/
func DeleteArticle(ctx context.Context, conn db.ConnOrTx, id int, caller *models.User) error {
	tx, err := db.BeginExclusive(ctx, conn, "article")
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	current, err := fetchActive(ctx, tx, id, caller)
	if err != nil {
		return err
	}

	if err := deactivate(ctx, tx, current); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM article_content WHERE id = $1`, *current.ContentID)
	if err != nil {
		return oops.New(err, "failed to delete article content")
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.New(err, "failed to commit article deletion")
	}

	logging.ExtractLogger(ctx).Debug().Int("article", id).Msg("deleted article")

	return nil
}

func deactivate(ctx context.Context, tx pgx.Tx, current *articleRow) error {
	_, err := tx.Exec(ctx,
		`
		UPDATE article
		SET
			active = FALSE,
			name = $2,
			content = $3,
			content_id = NULL
		WHERE id = $1 AND active
		`,
		current.ID,
		deref(current.Name),
		deref(current.Content),
	)
	if err != nil {
		return oops.New(err, "failed to deactivate article version")
	}
	return nil
}

func fetchActive(ctx context.Context, conn db.ConnOrTx, id int, caller *models.User) (*articleRow, error) {
	var qb db.QueryBuilder
	qb.Add(
		`
		SELECT $columns{a}
		FROM
			(
				SELECT
					article.id,
					article.path,
					article_content.name,
					article_content.content,
					article.content_id,
					article.user_id,
					article.create_time,
					article.version,
					article.active,
					article.visibility,
					(SELECT count(*) FROM article_comment WHERE article_comment.article_id = article.id) AS comments_count
				FROM
					article
					JOIN article_content ON article_content.id = article.content_id
				WHERE
					article.id = $?
					AND article.active
		`,
		id,
	)
	VisibleTo(&qb, "article", caller)
	qb.Add(
		`
			) AS a
			JOIN app_user AS a_author ON a_author.id = a.user_id
		`,
	)

	row, err := db.QueryOne[articleRow](ctx, conn, qb.String(), qb.Args()...)
	if errors.Is(err, db.NotFound) {
		return nil, oops.Fail(oops.KindArticleNotFound)
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch article")
	}
	return row, nil
}

func fetchSnapshot(ctx context.Context, conn db.ConnOrTx, id, version int, caller *models.User) (*articleRow, error) {
	var qb db.QueryBuilder
	qb.Add(
		`
		SELECT $columns{a}
		FROM
			(
				SELECT
					article.*,
					(SELECT count(*) FROM article_comment WHERE article_comment.article_id = article.id) AS comments_count
				FROM article
				WHERE
					article.id = $?
					AND article.version = $?
					AND NOT article.active
		`,
		id,
		version,
	)
	VisibleTo(&qb, "article", caller)
	qb.Add(
		`
			) AS a
			JOIN app_user AS a_author ON a_author.id = a.user_id
		`,
	)

	row, err := db.QueryOne[articleRow](ctx, conn, qb.String(), qb.Args()...)
	if errors.Is(err, db.NotFound) {
		return nil, oops.Fail(oops.KindArticleNotFound)
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch article version")
	}
	return row, nil
}

/*
Fetches an article with its version history and comment count.

With a nil version this is the active version. Otherwise it is a historical
snapshot, and asking for the active version by number fails: only deactivated
rows are served that way. Either way the caller must be able to see it, and
missing articles fail with KindArticleNotFound.
*/
func FetchArticle(ctx context.Context, conn db.ConnOrTx, id int, version *int, caller *models.User) (*models.Article, error) {
	versions, err := fetchVersions(ctx, conn, id, caller)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, oops.Fail(oops.KindArticleNotFound)
	}

	var row *articleRow
	if version == nil {
		row, err = fetchActive(ctx, conn, id, caller)
	} else {
		row, err = fetchSnapshot(ctx, conn, id, *version, caller)
	}
	if err != nil {
		return nil, err
	}

	article := row.toModel()
	article.Versions = versions
	return article, nil
}

// Newest first, filtered by visibility row by row.
func fetchVersions(ctx context.Context, conn db.ConnOrTx, id int, caller *models.User) ([]*models.ArticleVersion, error) {
	var qb db.QueryBuilder
	qb.Add(
		`
		SELECT $columns{v}
		FROM
			article AS v
			JOIN app_user AS v_author ON v_author.id = v.user_id
		WHERE v.id = $?
		`,
		id,
	)
	VisibleTo(&qb, "v", caller)
	qb.Add(`ORDER BY v.create_time DESC, v.version DESC`)

	versions, err := db.Query[models.ArticleVersion](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch article versions")
	}
	return versions, nil
}

const articleInfoQuery = `
	SELECT $columns{a}
	FROM
		(
			SELECT article.id, article.path, article.user_id, article.visibility, article_content.name
			FROM
				article
				JOIN article_content ON article_content.id = article.content_id
			WHERE article.active
		) AS a
`

// Lists the active articles the caller can see.
func ListArticles(ctx context.Context, conn db.ConnOrTx, caller *models.User) ([]*models.ArticleInfo, error) {
	var qb db.QueryBuilder
	qb.Add(articleInfoQuery)
	qb.Add(`WHERE TRUE`)
	VisibleTo(&qb, "a", caller)
	qb.Add(`ORDER BY a.id`)

	articles, err := db.Query[models.ArticleInfo](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch articles")
	}
	return articles, nil
}
