package wiki

import (
	"context"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
)

// Lists the caller's favorites that are still active and visible to them.
func ListFavoriteArticles(ctx context.Context, conn db.ConnOrTx, caller *models.User) ([]*models.ArticleInfo, error) {
	var qb db.QueryBuilder
	qb.Add(articleInfoQuery)
	qb.Add(
		`
		JOIN favorite_article AS fa ON fa.article_id = a.id
		WHERE fa.user_id = $?
		`,
		caller.ID,
	)
	VisibleTo(&qb, "a", caller)
	qb.Add(`ORDER BY a.id`)

	articles, err := db.Query[models.ArticleInfo](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch favorite articles")
	}
	return articles, nil
}

// Adding a favorite twice does nothing. The article is not checked, so a
// favorite may point at an article that was deleted or never existed; such
// favorites are just never listed.
func AddFavorite(ctx context.Context, conn db.ConnOrTx, user *models.User, articleID int) error {
	_, err := conn.Exec(ctx,
		`
		INSERT INTO favorite_article (user_id, article_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		`,
		user.ID,
		articleID,
	)
	if err != nil {
		return oops.New(err, "failed to add favorite article")
	}
	return nil
}

// Removing a favorite that isn't there does nothing.
func RemoveFavorite(ctx context.Context, conn db.ConnOrTx, user *models.User, articleID int) error {
	_, err := conn.Exec(ctx,
		`DELETE FROM favorite_article WHERE user_id = $1 AND article_id = $2`,
		user.ID,
		articleID,
	)
	if err != nil {
		return oops.New(err, "failed to remove favorite article")
	}
	return nil
}
