/*
Package search finds forum messages and wiki articles by their text.

Postgres full-text search always works. Articles can also be indexed in
Meilisearch; when it is configured and reachable, article searches go there
first and fall back to Postgres on failure.
*/
package search

import (
	"context"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/fts"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/wiki"
)

const MaxResults = 100

// Options for ts_headline. Highlighted words are wrapped in fts.Marker, and
// the whole document comes back so fts.ParseHighlights can pick the lines.
const headlineOptions = "StartSel=" + fts.Marker + ", StopSel=" + fts.Marker + ", HighlightAll=true"

// Turns raw user input into a tsquery. Empty means there is nothing to search for.
func tsquery(query string) string {
	return fts.ToTsQuery(fts.ReformatQuery(query))
}

// Finds messages in threads that are not deleted, best match first.
func SearchMessages(ctx context.Context, conn db.ConnOrTx, query string) ([]*models.MessageSearchResult, error) {
	q := tsquery(query)
	if q == "" {
		return []*models.MessageSearchResult{}, nil
	}

	results, err := db.Query[models.MessageSearchResult](ctx, conn,
		`
		SELECT $columns{r}
		FROM
			(
				SELECT
					message.id,
					message.thread_id,
					thread_name.name AS thread_name,
					message.create_time,
					message.user_id,
					message_content.content,
					ts_rank(message_content.tsv, query) AS rank
				FROM
					message_content
					JOIN message ON message.content_id = message_content.id
					JOIN thread ON thread.id = message.thread_id
					JOIN thread_name ON thread_name.id = thread.name_id
					CROSS JOIN to_tsquery('simple', $1) AS query
				WHERE
					message_content.tsv @@ query
					AND NOT thread.deleted
			) AS r
			JOIN app_user AS r_author ON r_author.id = r.user_id
		ORDER BY r.rank DESC, r.id
		LIMIT $2
		`,
		q,
		MaxResults,
	)
	if err != nil {
		return nil, oops.New(err, "failed to search messages")
	}
	if results == nil {
		results = []*models.MessageSearchResult{}
	}
	return results, nil
}

type articleHit struct {
	ID       int    `db:"id"`
	Path     string `db:"path"`
	Name     string `db:"name"`
	Headline string `db:"headline"`
}

/*
Finds active articles the caller can see whose name or content matches. Each
result carries the matching lines of the content, split into plain and
highlighted fragments.
*/
func SearchArticles(ctx context.Context, conn db.ConnOrTx, query string, caller *models.User) ([]*models.ArticleSearchResult, error) {
	q := tsquery(query)
	if q == "" {
		return []*models.ArticleSearchResult{}, nil
	}

	var qb db.QueryBuilder
	qb.Add(
		`
		SELECT $columns{r}
		FROM
			(
				SELECT
					article.id,
					article.path,
					article.user_id,
					article.visibility,
					article_content.name,
					ts_headline('simple', article_content.content, query, $?) AS headline,
					ts_rank(article_content.tsv, query) AS rank
				FROM
					article
					JOIN article_content ON article_content.id = article.content_id
					CROSS JOIN to_tsquery('simple', $?) AS query
				WHERE
					article.active
					AND article_content.tsv @@ query
			) AS r
		WHERE TRUE
		`,
		headlineOptions,
		q,
	)
	wiki.VisibleTo(&qb, "r", caller)
	qb.Add(`ORDER BY r.rank DESC, r.id LIMIT $?`, MaxResults)

	hits, err := db.Query[articleHit](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to search articles")
	}

	results := make([]*models.ArticleSearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &models.ArticleSearchResult{
			Info: models.ArticleInfo{ID: hit.ID, Path: hit.Path, Name: hit.Name},
			Text: fts.ParseHighlights(hit.Headline),
		})
	}
	return results, nil
}
