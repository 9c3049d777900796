package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain/model"
)

// -----------------------------
// Payment intents
// -----------------------------

type PaymentRepository interface {
	// Create inserts a pending intent; ErrAlreadyExists on a reference code clash.
	Create(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentIntent, error)
	FindByReference(ctx context.Context, tx Tx, ref string) (*model.PaymentIntent, error)
	LatestPendingByUser(ctx context.Context, tx Tx, userID int64) (*model.PaymentIntent, error)
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.PaymentIntent, error)

	// MarkVerified and MarkFailed are compare-and-set transitions out of pending.
	// They report false when the intent was no longer pending.
	MarkVerified(ctx context.Context, tx Tx, id string, adminID int64, finalAmount decimal.Decimal, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx Tx, id string, adminID int64, note string, at time.Time) (bool, error)

	// ExpirePending moves every pending intent past its TTL to expired.
	ExpirePending(ctx context.Context, tx Tx, now time.Time) ([]*model.PaymentIntent, error)

	Revenue(ctx context.Context, tx Tx, since time.Time) (*model.RevenueSummary, error)
}
