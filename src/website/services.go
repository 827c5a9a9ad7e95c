package website

import (
	"context"

	"git.handmade.network/hmn/forumwiki/src/auth"
	"git.handmade.network/hmn/forumwiki/src/config"
	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/files"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"git.handmade.network/hmn/forumwiki/src/search"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Everything a command needs to work with the store, built from the config.
type Services struct {
	Conn     *pgxpool.Pool
	Sessions auth.SessionStore
	Blobs    files.BlobStore
	Search   *search.Service
}

func OpenServices(ctx context.Context, cfg config.ForumWikiConfig) (*Services, error) {
	conn, err := db.NewConnPool(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := OpenSessionStore(ctx, conn, cfg.Sessions)
	if err != nil {
		conn.Close()
		return nil, err
	}

	blobs, err := files.NewBlobStore(ctx, cfg.Files)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := &Services{
		Conn:     conn,
		Sessions: sessions,
		Blobs:    blobs,
		Search:   &search.Service{Conn: conn},
	}
	if cfg.Meili.URL != "" {
		s.Search.Meili = search.NewMeili(cfg.Meili.URL, cfg.Meili.APIKey)
	}
	return s, nil
}

func OpenSessionStore(ctx context.Context, conn *pgxpool.Pool, cfg config.SessionsConfig) (auth.SessionStore, error) {
	switch cfg.Backend {
	case config.SessionsInPostgres:
		return &auth.PgSessionStore{Conn: conn, TTL: cfg.TTL}, nil
	case config.SessionsInRedis:
		store, err := auth.NewRedisSessionStore(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, oops.New(nil, "unknown session backend '%s'", cfg.Backend)
	}
}

func (s *Services) Close() {
	if redis, ok := s.Sessions.(*auth.RedisSessionStore); ok {
		redis.Close()
	}
	s.Conn.Close()
}
