package wiki

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/testdb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*pgxpool.Pool, *models.User, *models.User) {
	conn := testdb.Open(t)
	alice := &models.User{ID: testdb.CreateUser(t, conn, "alice"), Name: "alice"}
	bob := &models.User{ID: testdb.CreateUser(t, conn, "bob"), Name: "bob"}
	return conn, alice, bob
}

func ptr[T any](v T) *T {
	return &v
}

func TestArticleVersions(t *testing.T) {
	conn, alice, bob := setup(t)
	ctx := context.Background()

	id, err := CreateArticle(ctx, conn, models.ArticleInput{
		Path:    "/intro",
		Name:    "Intro",
		Content: "first draft",
	}, alice)
	require.Nil(t, err)
	assert.Equal(t, 1, id)

	second, err := CreateArticle(ctx, conn, models.ArticleInput{Path: "/other", Name: "Other", Content: "x"}, alice)
	require.Nil(t, err)
	assert.Equal(t, 2, second)

	article, err := FetchArticle(ctx, conn, id, nil, nil)
	require.Nil(t, err)
	assert.Equal(t, "Intro", article.Info.Name)
	assert.Equal(t, "first draft", article.Content)
	assert.Equal(t, 1, article.Version)
	assert.True(t, article.Active)
	assert.Equal(t, models.VisibilityPublic, article.Visibility)
	require.Len(t, article.Versions, 1)

	version, err := UpdateArticle(ctx, conn, id, models.ArticleInput{
		Path:    "/intro",
		Name:    "Introduction",
		Content: "second draft",
	}, bob)
	require.Nil(t, err)
	assert.Equal(t, 2, version)

	version, err = UpdateArticle(ctx, conn, id, models.ArticleInput{
		Path:    "/intro",
		Name:    "Introduction",
		Content: "third draft",
	}, alice)
	require.Nil(t, err)
	assert.Equal(t, 3, version)

	t.Run("one active version", func(t *testing.T) {
		article, err := FetchArticle(ctx, conn, id, nil, nil)
		require.Nil(t, err)
		assert.Equal(t, 3, article.Version)
		assert.Equal(t, "third draft", article.Content)
		require.Len(t, article.Versions, 3)

		active := 0
		for _, v := range article.Versions {
			if v.Active {
				active++
			}
		}
		assert.Equal(t, 1, active)
		assert.Equal(t, 3, article.Versions[0].Version, "newest first")
	})

	t.Run("historical snapshots keep their text", func(t *testing.T) {
		v1, err := FetchArticle(ctx, conn, id, ptr(1), nil)
		require.Nil(t, err)
		assert.Equal(t, "Intro", v1.Info.Name)
		assert.Equal(t, "first draft", v1.Content)
		assert.False(t, v1.Active)
		assert.Equal(t, alice.ID, v1.User.ID)

		v2, err := FetchArticle(ctx, conn, id, ptr(2), nil)
		require.Nil(t, err)
		assert.Equal(t, "second draft", v2.Content)
		assert.Equal(t, bob.ID, v2.User.ID)
	})

	t.Run("the active version is not a snapshot", func(t *testing.T) {
		_, err := FetchArticle(ctx, conn, id, ptr(3), nil)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
		_, err = FetchArticle(ctx, conn, id, ptr(99), nil)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.Nil(t, DeleteArticle(ctx, conn, second, alice))

		_, err := FetchArticle(ctx, conn, second, nil, nil)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))

		_, err = UpdateArticle(ctx, conn, second, models.ArticleInput{Path: "/other", Name: "Back", Content: "y"}, alice)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))

		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(DeleteArticle(ctx, conn, second, alice)))

		old, err := FetchArticle(ctx, conn, second, ptr(1), nil)
		require.Nil(t, err)
		assert.Equal(t, "Other", old.Info.Name)

		articles, err := ListArticles(ctx, conn, nil)
		require.Nil(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, id, articles[0].ID)
	})

	t.Run("missing article", func(t *testing.T) {
		_, err := FetchArticle(ctx, conn, 9999, nil, nil)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
		_, err = UpdateArticle(ctx, conn, 9999, models.ArticleInput{}, alice)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
	})
}

func TestConcurrentArticleUpdates(t *testing.T) {
	conn, alice, _ := setup(t)
	ctx := context.Background()

	id, err := CreateArticle(ctx, conn, models.ArticleInput{Path: "/busy", Name: "Busy", Content: "0"}, alice)
	require.Nil(t, err)

	const n = 20
	var wg sync.WaitGroup
	versions := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			versions[i], errs[i] = UpdateArticle(ctx, conn, id, models.ArticleInput{Path: "/busy", Name: "Busy", Content: fmt.Sprint(i + 1)}, alice)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Nil(t, err)
	}
	sort.Ints(versions)
	for i, v := range versions {
		assert.Equal(t, i+2, v)
	}

	article, err := FetchArticle(ctx, conn, id, nil, alice)
	require.Nil(t, err)
	assert.Equal(t, n+1, article.Version)
	assert.Len(t, article.Versions, n+1)
}

func TestPrivateArticles(t *testing.T) {
	conn, alice, bob := setup(t)
	ctx := context.Background()

	public, err := CreateArticle(ctx, conn, models.ArticleInput{Path: "/pub", Name: "Public", Content: "hi"}, alice)
	require.Nil(t, err)
	private, err := CreateArticle(ctx, conn, models.ArticleInput{
		Path:       "/diary",
		Name:       "Diary",
		Content:    "secret",
		Visibility: models.VisibilityPrivate,
	}, alice)
	require.Nil(t, err)

	ids := func(infos []*models.ArticleInfo) []int {
		var res []int
		for _, info := range infos {
			res = append(res, info.ID)
		}
		return res
	}

	anon, err := ListArticles(ctx, conn, nil)
	require.Nil(t, err)
	assert.Equal(t, []int{public}, ids(anon))

	asBob, err := ListArticles(ctx, conn, bob)
	require.Nil(t, err)
	assert.Equal(t, []int{public}, ids(asBob))

	asAlice, err := ListArticles(ctx, conn, alice)
	require.Nil(t, err)
	assert.Equal(t, []int{public, private}, ids(asAlice))

	_, err = FetchArticle(ctx, conn, private, nil, bob)
	assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
	_, err = FetchArticle(ctx, conn, private, nil, nil)
	assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
	article, err := FetchArticle(ctx, conn, private, nil, alice)
	require.Nil(t, err)
	assert.Equal(t, "secret", article.Content)

	_, err = UpdateArticle(ctx, conn, private, models.ArticleInput{Path: "/diary", Name: "Mine now", Content: "x"}, bob)
	assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))

	_, err = ListComments(ctx, conn, private, 1, bob)
	assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
	_, err = PostComment(ctx, conn, models.NewComment{ArticleID: private, Message: "peek"}, bob)
	assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
}

func TestFavorites(t *testing.T) {
	conn, alice, bob := setup(t)
	ctx := context.Background()

	a, err := CreateArticle(ctx, conn, models.ArticleInput{Path: "/a", Name: "A", Content: "a"}, alice)
	require.Nil(t, err)
	b, err := CreateArticle(ctx, conn, models.ArticleInput{Path: "/b", Name: "B", Content: "b", Visibility: models.VisibilityPrivate}, alice)
	require.Nil(t, err)

	require.Nil(t, AddFavorite(ctx, conn, bob, a))
	require.Nil(t, AddFavorite(ctx, conn, bob, a), "adding twice is harmless")
	require.Nil(t, AddFavorite(ctx, conn, bob, b))
	require.Nil(t, AddFavorite(ctx, conn, alice, b))

	favs, err := ListFavoriteArticles(ctx, conn, bob)
	require.Nil(t, err)
	require.Len(t, favs, 1, "private articles of others are not listed")
	assert.Equal(t, "A", favs[0].Name)

	favs, err = ListFavoriteArticles(ctx, conn, alice)
	require.Nil(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, b, favs[0].ID)

	require.Nil(t, RemoveFavorite(ctx, conn, bob, a))
	require.Nil(t, RemoveFavorite(ctx, conn, bob, a), "removing twice is harmless")
	favs, err = ListFavoriteArticles(ctx, conn, bob)
	require.Nil(t, err)
	assert.Empty(t, favs)
}

func TestComments(t *testing.T) {
	conn, alice, bob := setup(t)
	ctx := context.Background()

	id, err := CreateArticle(ctx, conn, models.ArticleInput{Path: "/c", Name: "Commented", Content: "v1"}, alice)
	require.Nil(t, err)

	first, err := PostComment(ctx, conn, models.NewComment{ArticleID: id, Message: "nice"}, bob)
	require.Nil(t, err)
	assert.Equal(t, 1, first)

	_, err = UpdateArticle(ctx, conn, id, models.ArticleInput{Path: "/c", Name: "Commented", Content: "v2"}, alice)
	require.Nil(t, err)

	second, err := PostComment(ctx, conn, models.NewComment{ArticleID: id, ArticleVersion: ptr(1), Message: "about v1"}, alice)
	require.Nil(t, err)
	assert.Equal(t, 2, second)

	var recorded int
	err = conn.QueryRow(ctx, `SELECT article_version FROM article_comment WHERE article_id = $1 AND id = 2`, id).Scan(&recorded)
	require.Nil(t, err)
	assert.Equal(t, 1, recorded)

	t.Run("concurrent comments are numbered densely", func(t *testing.T) {
		const n = 20
		var wg sync.WaitGroup
		ids := make([]int, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = PostComment(ctx, conn, models.NewComment{ArticleID: id, Message: fmt.Sprint(i)}, bob)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.Nil(t, err)
		}
		sort.Ints(ids)
		for i, cid := range ids {
			assert.Equal(t, i+3, cid)
		}
	})

	page, err := ListComments(ctx, conn, id, 1, nil)
	require.Nil(t, err)
	assert.Equal(t, 22, page.TotalComments)
	assert.Equal(t, "Commented", page.ArticleInfo.Name)
	require.Len(t, page.Comments, 22)
	assert.Equal(t, 1, page.Comments[0].ID)
	assert.Equal(t, "nice", page.Comments[0].Content)
	assert.Equal(t, "bob", page.Comments[0].User.Name)

	article, err := FetchArticle(ctx, conn, id, nil, nil)
	require.Nil(t, err)
	assert.Equal(t, 22, article.CommentsCount)

	t.Run("edits", func(t *testing.T) {
		require.Nil(t, UpdateComment(ctx, conn, models.CommentEdit{ArticleID: id, CommentID: 1, Message: "very nice"}, bob))
		err := UpdateComment(ctx, conn, models.CommentEdit{ArticleID: id, CommentID: 1, Message: "rude"}, alice)
		assert.Equal(t, oops.KindMessageNotFound, oops.KindOf(err))

		page, err := ListComments(ctx, conn, id, 1, bob)
		require.Nil(t, err)
		assert.Equal(t, "very nice", page.Comments[0].Content)
		require.NotNil(t, page.Comments[0].UpdateTime)

		err = UpdateComment(ctx, conn, models.CommentEdit{ArticleID: id, CommentID: 999, Message: "?"}, bob)
		assert.Equal(t, oops.KindMessageNotFound, oops.KindOf(err))
	})

	t.Run("unknown article", func(t *testing.T) {
		_, err := PostComment(ctx, conn, models.NewComment{ArticleID: 9999, Message: "?"}, bob)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
		_, err = ListComments(ctx, conn, 9999, 1, bob)
		assert.Equal(t, oops.KindArticleNotFound, oops.KindOf(err))
	})
}
