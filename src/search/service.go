package search

import (
	"context"
	"errors"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/wiki"
)

/*
Searches through Meilisearch when possible and Postgres otherwise. Meili may be
nil.

When Meilisearch is configured, article writes must go through the Service so
the index follows them. An index update that fails keeps article searches on
Postgres until ReindexArticles succeeds, so deleted or private content is never
served from a stale index.
*/
type Service struct {
	Conn  db.ConnOrTx
	Meili *Meili
}

func (s *Service) SearchMessages(ctx context.Context, query string) ([]*models.MessageSearchResult, error) {
	return SearchMessages(ctx, s.Conn, query)
}

func (s *Service) SearchArticles(ctx context.Context, query string, caller *models.User) ([]*models.ArticleSearchResult, error) {
	if s.Meili != nil && s.Meili.Searchable() {
		if tsquery(query) == "" {
			return []*models.ArticleSearchResult{}, nil
		}
		results, err := s.Meili.SearchArticles(query, caller)
		if err == nil {
			return results, nil
		}
		logging.ExtractLogger(ctx).Warn().Err(err).Msg("Meilisearch search failed, falling back to Postgres")
	}
	return SearchArticles(ctx, s.Conn, query, caller)
}

/*
Brings one article's index entry up to date: its active version is indexed,
or the entry is removed if the article no longer has one. Does nothing
without Meilisearch.
*/
func (s *Service) SyncArticle(ctx context.Context, id int) error {
	if s.Meili == nil {
		return nil
	}

	err := s.syncArticle(ctx, id)
	if err != nil {
		s.Meili.stale.Store(true)
	}
	return err
}

func (s *Service) syncArticle(ctx context.Context, id int) error {
	doc, err := db.QueryOne[ArticleDocument](ctx, s.Conn, articleDocumentsQuery+`WHERE a.id = $1`, id)
	if errors.Is(err, db.NotFound) {
		return s.Meili.DeleteArticle(id)
	} else if err != nil {
		return oops.New(err, "failed to fetch article %d for indexing", id)
	}
	return s.Meili.IndexArticle(*doc)
}

// The wiki writes are saved even if the index cannot be updated afterwards.
func (s *Service) syncAfterWrite(ctx context.Context, id int) {
	if err := s.SyncArticle(ctx, id); err != nil {
		logging.ExtractLogger(ctx).Warn().Err(err).Int("article", id).Msg("failed to update the search index, searching Postgres until the next reindex")
	}
}

func (s *Service) CreateArticle(ctx context.Context, in models.ArticleInput, author *models.User) (int, error) {
	id, err := wiki.CreateArticle(ctx, s.Conn, in, author)
	if err != nil {
		return 0, err
	}
	s.syncAfterWrite(ctx, id)
	return id, nil
}

func (s *Service) UpdateArticle(ctx context.Context, id int, in models.ArticleInput, editor *models.User) (int, error) {
	version, err := wiki.UpdateArticle(ctx, s.Conn, id, in, editor)
	if err != nil {
		return 0, err
	}
	s.syncAfterWrite(ctx, id)
	return version, nil
}

func (s *Service) DeleteArticle(ctx context.Context, id int, caller *models.User) error {
	if err := wiki.DeleteArticle(ctx, s.Conn, id, caller); err != nil {
		return err
	}
	s.syncAfterWrite(ctx, id)
	return nil
}

// Pushes every active article to Meilisearch and returns how many there were.
func (s *Service) ReindexArticles(ctx context.Context) (int, error) {
	if s.Meili == nil {
		return 0, oops.New(nil, "Meilisearch is not configured")
	}

	docs, err := db.Query[ArticleDocument](ctx, s.Conn, articleDocumentsQuery+`ORDER BY a.id`)
	if err != nil {
		return 0, oops.New(err, "failed to fetch articles for indexing")
	}

	batch := make([]ArticleDocument, 0, len(docs))
	for _, doc := range docs {
		batch = append(batch, *doc)
	}
	if err := s.Meili.IndexAll(batch); err != nil {
		return 0, err
	}
	s.Meili.stale.Store(false)

	logging.ExtractLogger(ctx).Info().Int("articles", len(batch)).Msg("reindexed articles")
	return len(batch), nil
}

const articleDocumentsQuery = `
	SELECT $columns{a}
	FROM
		(
			SELECT
				article.id,
				article.path,
				article_content.name,
				article_content.content,
				article.user_id,
				article.visibility
			FROM
				article
				JOIN article_content ON article_content.id = article.content_id
			WHERE article.active
		) AS a
`
