package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const TxKey contextKey = "db_tx"

// WithTx begins a transaction on the tenant-scoped connection and
// returns a context carrying it. Repositories that find a transaction
// in the context run inside it instead of on the bare connection.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, fmt.Errorf("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, TxKey, tx), tx, nil
}

// TxFromContext returns the transaction in flight for this context, or
// nil when none was started.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}
