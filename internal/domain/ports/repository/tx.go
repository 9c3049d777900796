package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle owned by the storage layer (pgx.Tx for
// Postgres). Repositories accept NoTX for the non-transactional path and lock
// rows (SELECT ... FOR UPDATE) when handed a real transaction.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction: fn returning an
// error rolls everything back, otherwise the transaction is committed.
//
//	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		intent, err := payments.LatestPendingByUser(ctx, tx, userID)
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
