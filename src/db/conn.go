package db

import (
	"context"
	"time"

	"git.handmade.network/hmn/forumwiki/src/config"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/oops"
	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jpillora/backoff"
)

// This interface should match both a direct pgx connection or a pgx transaction.
type ConnOrTx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)

	// Both raw database connections and transactions in pgx can begin/commit
	// transactions. For database connections it does the obvious thing; for
	// transactions it creates a "pseudo-nested transaction" but conceptually
	// works the same. See the documentation of pgx.Tx.Begin.
	Begin(ctx context.Context) (pgx.Tx, error)
}

func newTracer(level tracelog.LogLevel) pgx.QueryTracer {
	return &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(*logging.GlobalLogger()),
		LogLevel: level,
	}
}

// Creates a new single connection to the database, e.g. for migrations.
// This connection is not safe for concurrent use.
func NewConn(ctx context.Context) (*pgx.Conn, error) {
	cfg := config.Config.Postgres

	pgcfg, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, oops.New(err, "failed to parse database config")
	}
	pgcfg.Tracer = newTracer(cfg.LogLevel)

	conn, err := pgx.ConnectConfig(ctx, pgcfg)
	if err != nil {
		return nil, oops.New(err, "failed to connect to database")
	}
	return conn, nil
}

// Creates a connection pool for the configured database, retrying with
// backoff until the database answers or ctx is done.
// The resulting pool is safe for concurrent use.
func NewConnPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := config.Config.Postgres
	return NewConnPoolWithDSN(ctx, cfg.DSN(), cfg)
}

// Like NewConnPool, but for an arbitrary DSN (a URL or key=value string). The
// pool size and log level come from cfg.
func NewConnPoolWithDSN(ctx context.Context, dsn string, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pgcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.New(err, "failed to parse database config")
	}
	if cfg.MinConn > 0 {
		pgcfg.MinConns = cfg.MinConn
	}
	if cfg.MaxConn > 0 {
		pgcfg.MaxConns = cfg.MaxConn
	}
	pgcfg.ConnConfig.Tracer = newTracer(cfg.LogLevel)

	pool, err := pgxpool.NewWithConfig(ctx, pgcfg)
	if err != nil {
		return nil, oops.New(err, "failed to create database connection pool")
	}

	boff := backoff.Backoff{
		Min: 200 * time.Millisecond,
		Max: 5 * time.Second,
	}
	for {
		err := pool.Ping(ctx)
		if err == nil {
			return pool, nil
		}
		if ctx.Err() != nil || boff.Attempt() >= 8 {
			pool.Close()
			return nil, oops.New(err, "database did not respond")
		}

		dur := boff.Duration()
		logging.Warn().Err(err).Dur("retrying after", dur).Msg("database not ready")
		timer := time.NewTimer(dur)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}
