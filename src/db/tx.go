package db

import (
	"context"
	"strings"

	"git.handmade.network/hmn/forumwiki/src/oops"
	"github.com/jackc/pgx/v5"
)

/*
Begins a transaction and takes an EXCLUSIVE lock on each of the given tables.
Readers are not blocked, but any other transaction trying to lock the same
tables waits until this one commits or rolls back. Use this when a write
depends on something read earlier in the same transaction, like taking
MAX(id)+1 for a new row.

The caller owns the transaction and must commit or roll it back:

	tx, err := db.BeginExclusive(ctx, conn, "article")
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
*/
func BeginExclusive(ctx context.Context, conn ConnOrTx, tables ...string) (pgx.Tx, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, oops.New(err, "failed to start transaction")
	}

	if len(tables) > 0 {
		idents := make([]string, len(tables))
		for i, table := range tables {
			idents[i] = pgx.Identifier(strings.Split(table, ".")).Sanitize()
		}
		_, err = tx.Exec(ctx, "LOCK TABLE "+strings.Join(idents, ", ")+" IN EXCLUSIVE MODE")
		if err != nil {
			tx.Rollback(ctx)
			return nil, oops.New(err, "failed to lock %s", strings.Join(tables, ", "))
		}
	}

	return tx, nil
}
