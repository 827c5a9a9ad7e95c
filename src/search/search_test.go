package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"git.handmade.network/hmn/forumwiki/src/forum"
	"git.handmade.network/hmn/forumwiki/src/fts"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/testdb"
	"git.handmade.network/hmn/forumwiki/src/wiki"
	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibilityFilter(t *testing.T) {
	assert.Equal(t, `visibility = "public"`, visibilityFilter(nil))
	assert.Equal(t, `visibility = "public" OR userId = 7`, visibilityFilter(&models.User{ID: 7}))
}

func TestArticleFromHit(t *testing.T) {
	t.Run("highlighted", func(t *testing.T) {
		hit := meili.Hit{
			"id":   json.RawMessage(`3`),
			"path": json.RawMessage(`"/howto"`),
			"name": json.RawMessage(`"How to"`),
			"_formatted": json.RawMessage(`{"id":"3","content":"skip me\nuse the ` +
				fts.Marker + `needle` + fts.Marker + ` wisely"}`),
		}
		result, err := articleFromHit(hit)
		require.Nil(t, err)
		assert.Equal(t, models.ArticleInfo{ID: 3, Path: "/howto", Name: "How to"}, result.Info)
		assert.Equal(t, []models.SearchResultFragment{
			models.Normal("use the "),
			models.Highlight("needle"),
			models.Normal(" wisely"),
		}, result.Text)
	})
	t.Run("no highlights", func(t *testing.T) {
		result, err := articleFromHit(meili.Hit{
			"id":   json.RawMessage(`3`),
			"path": json.RawMessage(`"/howto"`),
			"name": json.RawMessage(`"How to"`),
		})
		require.Nil(t, err)
		assert.Empty(t, result.Text)
	})
	t.Run("missing id", func(t *testing.T) {
		_, err := articleFromHit(meili.Hit{"path": json.RawMessage(`"/howto"`)})
		assert.Error(t, err)
	})
}

func TestMeiliSearchArticles(t *testing.T) {
	var gotFilter, gotQuery any
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/indexes/"+ArticlesIndex+"/search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"boom","code":"internal","type":"internal","link":""}`))
			return
		}

		var req map[string]any
		require.Nil(t, json.NewDecoder(r.Body).Decode(&req))
		gotFilter = req["filter"]
		gotQuery = req["q"]

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hits": [{
				"id": 1,
				"path": "/a",
				"name": "A",
				"_formatted": {"content": "a ` + fts.Marker + `hit` + fts.Marker + `"}
			}],
			"query": "hit",
			"processingTimeMs": 1,
			"limit": 100,
			"offset": 0,
			"estimatedTotalHits": 1
		}`))
	}))
	defer srv.Close()

	m := NewMeili(srv.URL, "")

	_, err := m.SearchArticles("hit", nil)
	assert.Error(t, err, "an unhealthy instance is never queried")

	m.healthy.Store(true)
	results, err := m.SearchArticles("hit!", &models.User{ID: 4})
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Info.ID)
	assert.Equal(t, []models.SearchResultFragment{models.Normal("a "), models.Highlight("hit")}, results[0].Text)
	assert.Equal(t, `visibility = "public" OR userId = 4`, gotFilter)
	assert.Equal(t, "hit", gotQuery, "queries are sanitized before they are sent")

	fail = true
	_, err = m.SearchArticles("hit", nil)
	assert.Error(t, err)
	assert.False(t, m.Healthy(), "a failed search marks the instance unhealthy")
}

func TestMeiliMonitor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"available"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not here","code":"not_found","type":"invalid_request","link":""}`))
	}))
	defer srv.Close()

	m := NewMeili(srv.URL, "")
	assert.False(t, m.Healthy())

	job := m.Monitor()
	assert.Eventually(t, m.Healthy, 5*time.Second, 10*time.Millisecond)

	job.Cancel()
	select {
	case <-job.Finished():
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after being canceled")
	}
}

func TestSearchMessages(t *testing.T) {
	conn := testdb.Open(t)
	ctx := context.Background()
	alice := &models.User{ID: testdb.CreateUser(t, conn, "alice"), Name: "alice"}

	section, err := forum.CreateSection(ctx, conn, "General")
	require.Nil(t, err)
	subsection, err := forum.CreateSubsection(ctx, conn, section, "Chat")
	require.Nil(t, err)

	kept, err := forum.CreateThread(ctx, conn, models.NewThread{SubSectionID: subsection, Name: "Kept", Message: "the zebra is striped"}, alice)
	require.Nil(t, err)
	_, err = forum.PostMessage(ctx, conn, models.NewMessage{ThreadID: kept, Message: "a zebra again"}, alice)
	require.Nil(t, err)
	_, err = forum.PostMessage(ctx, conn, models.NewMessage{ThreadID: kept, Message: "nothing relevant"}, alice)
	require.Nil(t, err)

	gone, err := forum.CreateThread(ctx, conn, models.NewThread{SubSectionID: subsection, Name: "Gone", Message: "zebra in a deleted thread"}, alice)
	require.Nil(t, err)
	require.Nil(t, forum.DeleteThread(ctx, conn, gone))

	results, err := SearchMessages(ctx, conn, "zebra")
	require.Nil(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, kept, r.ThreadID)
		assert.Equal(t, "Kept", r.ThreadName)
		assert.Equal(t, "alice", r.User.Name)
		assert.Contains(t, r.Content, "zebra")
	}

	results, err = SearchMessages(ctx, conn, "zeb*")
	require.Nil(t, err)
	assert.Len(t, results, 2, "prefix search")

	results, err = SearchMessages(ctx, conn, "AND OR NOT")
	require.Nil(t, err)
	assert.Empty(t, results, "queries without terms find nothing")
}

func TestSearchArticles(t *testing.T) {
	conn := testdb.Open(t)
	ctx := context.Background()
	alice := &models.User{ID: testdb.CreateUser(t, conn, "alice"), Name: "alice"}
	bob := &models.User{ID: testdb.CreateUser(t, conn, "bob"), Name: "bob"}

	public, err := wiki.CreateArticle(ctx, conn, models.ArticleInput{
		Path:    "/haystack",
		Name:    "Haystack",
		Content: "some hay\nfind the needle here\nmore hay",
	}, alice)
	require.Nil(t, err)
	_, err = wiki.CreateArticle(ctx, conn, models.ArticleInput{
		Path:       "/secret",
		Name:       "Secret",
		Content:    "a private needle",
		Visibility: models.VisibilityPrivate,
	}, bob)
	require.Nil(t, err)
	deleted, err := wiki.CreateArticle(ctx, conn, models.ArticleInput{Path: "/old", Name: "Old", Content: "an old needle"}, alice)
	require.Nil(t, err)
	require.Nil(t, wiki.DeleteArticle(ctx, conn, deleted, alice))

	results, err := SearchArticles(ctx, conn, "needle", nil)
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ArticleInfo{ID: public, Path: "/haystack", Name: "Haystack"}, results[0].Info)
	assert.Equal(t, []models.SearchResultFragment{
		models.Normal("find the "),
		models.Highlight("needle"),
		models.Normal(" here"),
	}, results[0].Text)

	results, err = SearchArticles(ctx, conn, "needle", bob)
	require.Nil(t, err)
	assert.Len(t, results, 2, "owners find their private articles")

	results, err = SearchArticles(ctx, conn, "haystack", nil)
	require.Nil(t, err)
	require.Len(t, results, 1, "names are searched too")

	s := &Service{Conn: conn}
	results, err = s.SearchArticles(ctx, "needle", alice)
	require.Nil(t, err)
	assert.Len(t, results, 1, "without Meilisearch the service searches Postgres")
	require.Nil(t, s.SyncArticle(ctx, public))
	_, err = s.ReindexArticles(ctx)
	assert.Error(t, err)
}

// An in-memory stand-in for the article index. It understands document
// writes, deletes and the visibility filters built by visibilityFilter.
type fakeIndex struct {
	mu       sync.Mutex
	docs     map[int]ArticleDocument
	failing  bool
	searched int
}

func (f *fakeIndex) doc(id int) (ArticleDocument, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	return doc, ok
}

func (f *fakeIndex) searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searched
}

func (f *fakeIndex) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	docsPath := "/indexes/" + ArticlesIndex + "/documents"
	task := func() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"taskUid":1,"indexUid":"` + ArticlesIndex + `","status":"enqueued","type":"documentAdditionOrUpdate","enqueuedAt":"2026-10-14T00:00:00Z"}`))
	}

	if f.failing {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"down","code":"internal","type":"internal","link":""}`))
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == docsPath:
		var docs []ArticleDocument
		if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, doc := range docs {
			f.docs[doc.ID] = doc
		}
		task()
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, docsPath+"/"):
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, docsPath+"/"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		delete(f.docs, id)
		task()
	case r.Method == http.MethodPost && r.URL.Path == "/indexes/"+ArticlesIndex+"/search":
		f.searched++
		var req struct {
			Filter string `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		hits := []map[string]any{}
		for _, doc := range f.docs {
			if doc.Visibility != models.VisibilityPublic && !strings.Contains(req.Filter, fmt.Sprintf("userId = %d", doc.UserID)) {
				continue
			}
			hits = append(hits, map[string]any{
				"id":         doc.ID,
				"path":       doc.Path,
				"name":       doc.Name,
				"_formatted": map[string]any{"content": doc.Content},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"hits":               hits,
			"query":              "",
			"processingTimeMs":   1,
			"limit":              MaxResults,
			"offset":             0,
			"estimatedTotalHits": len(hits),
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not here","code":"not_found","type":"invalid_request","link":""}`))
	}
}

func TestArticleIndexSync(t *testing.T) {
	conn := testdb.Open(t)
	ctx := context.Background()
	alice := &models.User{ID: testdb.CreateUser(t, conn, "alice"), Name: "alice"}

	index := &fakeIndex{docs: map[int]ArticleDocument{}}
	srv := httptest.NewServer(index)
	defer srv.Close()

	s := &Service{Conn: conn, Meili: NewMeili(srv.URL, "")}
	s.Meili.healthy.Store(true)

	id, err := s.CreateArticle(ctx, models.ArticleInput{Path: "/notes", Name: "Notes", Content: "a needle"}, alice)
	require.Nil(t, err)
	doc, ok := index.doc(id)
	require.True(t, ok, "new articles are indexed")
	assert.Equal(t, models.VisibilityPublic, doc.Visibility)
	assert.Equal(t, "a needle", doc.Content)

	results, err := s.SearchArticles(ctx, "needle", nil)
	require.Nil(t, err)
	assert.Len(t, results, 1)

	t.Run("made private", func(t *testing.T) {
		_, err := s.UpdateArticle(ctx, id, models.ArticleInput{
			Path:       "/notes",
			Name:       "Notes",
			Content:    "a hidden needle",
			Visibility: models.VisibilityPrivate,
		}, alice)
		require.Nil(t, err)

		doc, ok := index.doc(id)
		require.True(t, ok)
		assert.Equal(t, models.VisibilityPrivate, doc.Visibility)
		assert.Equal(t, "a hidden needle", doc.Content)

		results, err := s.SearchArticles(ctx, "needle", nil)
		require.Nil(t, err)
		assert.Empty(t, results, "anonymous callers no longer see it")

		results, err = s.SearchArticles(ctx, "needle", alice)
		require.Nil(t, err)
		assert.Len(t, results, 1, "the owner still does")
	})

	t.Run("deleted", func(t *testing.T) {
		require.Nil(t, s.DeleteArticle(ctx, id, alice))
		_, ok := index.doc(id)
		assert.False(t, ok, "deleted articles leave the index")

		results, err := s.SearchArticles(ctx, "needle", alice)
		require.Nil(t, err)
		assert.Empty(t, results)
	})

	t.Run("index unavailable", func(t *testing.T) {
		index.setFailing(true)
		other, err := s.CreateArticle(ctx, models.ArticleInput{Path: "/later", Name: "Later", Content: "another needle"}, alice)
		require.Nil(t, err, "the article is saved even if indexing fails")
		assert.False(t, s.Meili.Searchable())

		index.setFailing(false)
		searchedBefore := index.searches()
		results, err := s.SearchArticles(ctx, "needle", nil)
		require.Nil(t, err)
		require.Len(t, results, 1, "searches fall back to Postgres")
		assert.Equal(t, other, results[0].Info.ID)
		assert.Equal(t, searchedBefore, index.searches(), "the stale index is not queried")

		n, err := s.ReindexArticles(ctx)
		require.Nil(t, err)
		assert.Equal(t, 1, n)
		assert.True(t, s.Meili.Searchable())
		_, ok := index.doc(other)
		assert.True(t, ok)
	})
}
