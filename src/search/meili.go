package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"git.handmade.network/hmn/forumwiki/src/fts"
	"git.handmade.network/hmn/forumwiki/src/jobs"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/models"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/utils"
	"github.com/jpillora/backoff"
	meili "github.com/meilisearch/meilisearch-go"
)

const ArticlesIndex = "forumwiki_articles"

const healthCheckInterval = 10 * time.Second

// What gets stored in the article index. Only active articles are indexed.
type ArticleDocument struct {
	ID         int               `db:"id" json:"id"`
	Path       string            `db:"path" json:"path"`
	Name       string            `db:"name" json:"name"`
	Content    string            `db:"content" json:"content"`
	UserID     int               `db:"user_id" json:"userId"`
	Visibility models.Visibility `db:"visibility" json:"visibility"`
}

type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool

	// Set when an article write could not be pushed to the index. Cleared by a
	// full reindex.
	stale atomic.Bool
}

/*
Creates a client for the Meilisearch instance at url. It starts out unhealthy
and is never used for searches until Monitor has reached it once.
*/
func NewMeili(url, apiKey string) *Meili {
	return &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
	}
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Whether article searches may go to Meilisearch: it is reachable and has not
// missed an article write since the last full reindex.
func (m *Meili) Searchable() bool {
	return m.healthy.Load() && !m.stale.Load()
}

// Checks that Meilisearch is up and sets up the index if it just came back.
// Returns whether it is healthy.
func (m *Meili) check() bool {
	_, err := m.client.Health()
	wasHealthy := m.healthy.Load()
	m.healthy.Store(err == nil)

	if err != nil {
		if wasHealthy {
			logging.Warn().Err(err).Msg("Meilisearch became unavailable")
		}
		return false
	}
	if !wasHealthy {
		logging.Info().Msg("Meilisearch is available, configuring indexes")
		m.configureIndexes()
	}
	return true
}

func (m *Meili) configureIndexes() {
	log := logging.With().Str("index", ArticlesIndex).Logger()

	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        ArticlesIndex,
		PrimaryKey: "id",
	}); err != nil {
		log.Debug().Err(err).Msg("failed to create index (it may already exist)")
	}

	index := m.client.Index(ArticlesIndex)
	filterable := []interface{}{"visibility", "userId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Error().Err(err).Msg("failed to update filterable attributes")
	}
	searchable := []string{"name", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Error().Err(err).Msg("failed to update searchable attributes")
	}
}

/*
Starts a job that keeps track of whether Meilisearch is reachable. While it is
healthy it is checked every few seconds. While it is down the checks back off
up to a minute apart.
*/
func (m *Meili) Monitor() *jobs.Job {
	job := jobs.New("meilisearch monitor")
	go func() {
		defer job.Finish()

		boff := backoff.Backoff{
			Min: 1 * time.Second,
			Max: 1 * time.Minute,
		}

		for {
			wait := healthCheckInterval
			if m.check() {
				boff.Reset()
			} else {
				wait = boff.Duration()
				job.Logger.Debug().Dur("retrying after", wait).Msg("Meilisearch is unavailable")
			}

			if err := utils.SleepContext(job.Ctx, wait); err != nil {
				return
			}
		}
	}()
	return job
}

// The Meilisearch filter expression matching what the caller may see.
func visibilityFilter(caller *models.User) string {
	public := fmt.Sprintf("visibility = %q", string(models.VisibilityPublic))
	if caller == nil {
		return public
	}
	return fmt.Sprintf("%s OR userId = %d", public, caller.ID)
}

/*
Searches the article index. Fails without a request if Meilisearch is not
healthy. A failed request marks it unhealthy until the monitor sees it again.
*/
func (m *Meili) SearchArticles(query string, caller *models.User) ([]*models.ArticleSearchResult, error) {
	if !m.healthy.Load() {
		return nil, oops.New(nil, "Meilisearch is unavailable")
	}

	resp, err := m.client.Index(ArticlesIndex).Search(fts.ReformatQuery(query), &meili.SearchRequest{
		Limit:                 MaxResults,
		AttributesToRetrieve:  []string{"id", "path", "name"},
		AttributesToHighlight: []string{"content"},
		HighlightPreTag:       fts.Marker,
		HighlightPostTag:      fts.Marker,
		Filter:                visibilityFilter(caller),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, oops.New(err, "failed to search Meilisearch")
	}

	results := make([]*models.ArticleSearchResult, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		result, err := articleFromHit(hit)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func articleFromHit(hit meili.Hit) (*models.ArticleSearchResult, error) {
	var info models.ArticleInfo
	if err := decodeField(hit, "id", &info.ID); err != nil {
		return nil, err
	}
	if err := decodeField(hit, "path", &info.Path); err != nil {
		return nil, err
	}
	if err := decodeField(hit, "name", &info.Name); err != nil {
		return nil, err
	}

	var content string
	if raw, ok := hit["_formatted"]; ok {
		var formatted map[string]json.RawMessage
		if err := json.Unmarshal(raw, &formatted); err != nil {
			return nil, oops.New(err, "failed to decode highlighted fields")
		}
		if rawContent, ok := formatted["content"]; ok {
			if err := json.Unmarshal(rawContent, &content); err != nil {
				return nil, oops.New(err, "failed to decode highlighted content")
			}
		}
	}

	return &models.ArticleSearchResult{
		Info: info,
		Text: fts.ParseHighlights(content),
	}, nil
}

func decodeField(hit meili.Hit, key string, dest any) error {
	raw, ok := hit[key]
	if !ok {
		return oops.New(nil, "search hit is missing %s", key)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return oops.New(err, "failed to decode %s of search hit", key)
	}
	return nil
}

func (m *Meili) IndexArticle(doc ArticleDocument) error {
	return m.IndexAll([]ArticleDocument{doc})
}

func (m *Meili) DeleteArticle(id int) error {
	if _, err := m.client.Index(ArticlesIndex).DeleteDocument(strconv.Itoa(id), nil); err != nil {
		return oops.New(err, "failed to remove article %d from Meilisearch", id)
	}
	return nil
}

func (m *Meili) IndexAll(docs []ArticleDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := m.client.Index(ArticlesIndex).AddDocuments(docs, nil); err != nil {
		return oops.New(err, "failed to index articles in Meilisearch")
	}
	return nil
}
