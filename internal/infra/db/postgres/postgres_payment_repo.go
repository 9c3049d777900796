package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, reference_code, user_id, requested_tier, requested_amount, billing_period,
  campaign_code, status, created_at, expires_at, verified_at, verified_by, final_amount, note`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.ReferenceCode, p.UserID, string(p.RequestedTier), p.RequestedAmount, string(p.BillingPeriod),
		p.CampaignCode, string(p.Status), p.CreatedAt, p.ExpiresAt, p.VerifiedAt, p.VerifiedBy,
		nullDecimal(p.FinalAmount), p.Note)
	return err
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	q := locking(`SELECT `+paymentColumns+` FROM payment_intents WHERE id=$1`, tx)
	return r.queryOne(ctx, tx, q, id)
}

func (r *paymentRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentIntent, error) {
	q := locking(`SELECT `+paymentColumns+` FROM payment_intents WHERE reference_code=$1`, tx)
	return r.queryOne(ctx, tx, q, ref)
}

// LatestPendingByUser breaks created_at ties on the ULID, which sorts by time too.
func (r *paymentRepo) LatestPendingByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.PaymentIntent, error) {
	q := locking(`
SELECT `+paymentColumns+` FROM payment_intents
 WHERE user_id=$1 AND status='pending'
 ORDER BY created_at DESC, id DESC
 LIMIT 1`, tx)
	return r.queryOne(ctx, tx, q, userID)
}

func (r *paymentRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + paymentColumns + ` FROM payment_intents
 WHERE status='pending'
 ORDER BY created_at DESC, id DESC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntents(rows)
}

func (r *paymentRepo) MarkVerified(ctx context.Context, tx repository.Tx, id string, adminID int64, finalAmount decimal.Decimal, at time.Time) (bool, error) {
	const q = `
UPDATE payment_intents
   SET status='verified', verified_at=$2, verified_by=$3, final_amount=$4
 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at, adminID, finalAmount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, adminID int64, note string, at time.Time) (bool, error) {
	const q = `
UPDATE payment_intents
   SET status='failed', verified_at=$2, verified_by=$3, note=$4
 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at, adminID, note)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ExpirePending(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.PaymentIntent, error) {
	const q = `
UPDATE payment_intents SET status='expired'
 WHERE status='pending' AND expires_at < $1
RETURNING ` + paymentColumns + `;`
	rows, err := queryRows(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntents(rows)
}

func (r *paymentRepo) Revenue(ctx context.Context, tx repository.Tx, since time.Time) (*model.RevenueSummary, error) {
	const q = `
SELECT requested_tier,
       COUNT(*),
       COALESCE(SUM(final_amount), 0),
       COALESCE(SUM(final_amount) FILTER (WHERE verified_at >= $1), 0)
  FROM payment_intents
 WHERE status='verified'
 GROUP BY requested_tier;`
	rows, err := queryRows(ctx, r.pool, tx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sum := &model.RevenueSummary{
		Total:        decimal.Zero,
		Last30Days:   decimal.Zero,
		PendingTotal: decimal.Zero,
		ByTier:       map[model.Tier]model.TierRevenue{},
	}
	for rows.Next() {
		var (
			tier          string
			count         int
			total, recent decimal.Decimal
		)
		if err := rows.Scan(&tier, &count, &total, &recent); err != nil {
			return nil, scanErr(err)
		}
		sum.ByTier[model.Tier(tier)] = model.TierRevenue{Count: count, Sum: total}
		sum.Count += count
		sum.Total = sum.Total.Add(total)
		sum.Last30Days = sum.Last30Days.Add(recent)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*), COALESCE(SUM(requested_amount), 0) FROM payment_intents WHERE status='pending';`)
	if err != nil {
		return nil, err
	}
	if err := row.Scan(&sum.PendingCount, &sum.PendingTotal); err != nil {
		return nil, scanErr(err)
	}
	return sum, nil
}

func (r *paymentRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.PaymentIntent, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	var (
		p                    model.PaymentIntent
		tier, period, status string
		final                decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.ReferenceCode, &p.UserID, &tier, &p.RequestedAmount, &period,
		&p.CampaignCode, &status, &p.CreatedAt, &p.ExpiresAt, &p.VerifiedAt, &p.VerifiedBy, &final, &p.Note)
	if err != nil {
		return nil, scanErr(err)
	}
	p.RequestedTier = model.Tier(tier)
	p.BillingPeriod = model.BillingPeriod(period)
	p.Status = model.PaymentStatus(status)
	if final.Valid {
		p.FinalAmount = &final.Decimal
	}
	return &p, nil
}

func scanIntents(rows pgx.Rows) ([]*model.PaymentIntent, error) {
	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
