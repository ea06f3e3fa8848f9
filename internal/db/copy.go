package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows into a table using the PostgreSQL COPY
// protocol. This is the fastest way to land a full performance surface.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	copySource := pgx.CopyFromRows(rows)
	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, copySource)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}

	return n, nil
}

// ReplaceRows atomically replaces every row of table whose keyCol equals
// keyVal with the given rows. Delete and COPY run inside one transaction
// so readers never observe a partially written surface.
func ReplaceRows(ctx context.Context, pool Pool, table, keyCol string, keyVal any, columns []string, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace rows in %s: begin tx", table)
	}
	defer tx.Rollback(ctx)

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{keyCol}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, deleteSQL, keyVal); err != nil {
		return 0, eris.Wrapf(err, "db: replace rows in %s: delete", table)
	}

	// tx satisfies Pool, so the COPY goes through the shared helper and
	// stays inside the transaction.
	n, err := CopyFrom(ctx, tx, table, columns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace rows in %s", table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace rows in %s: commit tx", table)
	}

	return n, nil
}
