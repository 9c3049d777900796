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

var _ repository.AccountRepository = (*accountRepo)(nil)

// referralDepthLimit bounds the ancestor walk; chains are short in practice.
const referralDepthLimit = 64

const accountColumns = `user_id, username, first_name, language_code, tier, tier_expires_at,
  balance, total_spent, total_earned, referral_code, referred_by,
  monthly_transaction_count, monthly_listing_count, usage_period, joined_at, last_active_at`

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (` + accountColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`
	_, err := execSQL(ctx, r.pool, tx, q,
		a.UserID, a.Profile.Username, a.Profile.FirstName, a.Profile.LanguageCode,
		string(a.Tier), a.TierExpiresAt, a.Balance, a.TotalSpent, a.TotalEarned,
		a.ReferralCode, a.ReferredBy, a.MonthlyTransactionCount, a.MonthlyListingCount,
		a.UsagePeriod, a.JoinedAt, a.LastActiveAt)
	return err
}

// Save writes every mutable column. referred_by is excluded; SetReferrer owns it.
func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
UPDATE accounts SET
  username=$2, first_name=$3, language_code=$4, tier=$5, tier_expires_at=$6,
  balance=$7, total_spent=$8, total_earned=$9,
  monthly_transaction_count=$10, monthly_listing_count=$11, usage_period=$12, last_active_at=$13
WHERE user_id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		a.UserID, a.Profile.Username, a.Profile.FirstName, a.Profile.LanguageCode,
		string(a.Tier), a.TierExpiresAt, a.Balance, a.TotalSpent, a.TotalEarned,
		a.MonthlyTransactionCount, a.MonthlyListingCount, a.UsagePeriod, a.LastActiveAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return scanErr(pgx.ErrNoRows)
	}
	return nil
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, userID int64) (*model.Account, error) {
	q := locking(`SELECT `+accountColumns+` FROM accounts WHERE user_id=$1`, tx)
	return r.queryOne(ctx, tx, q, userID)
}

func (r *accountRepo) FindByReferralCode(ctx context.Context, tx repository.Tx, code string) (*model.Account, error) {
	q := locking(`SELECT `+accountColumns+` FROM accounts WHERE referral_code=$1`, tx)
	return r.queryOne(ctx, tx, q, code)
}

func (r *accountRepo) ReferralCodeExists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE referral_code=$1);`, code)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

func (r *accountRepo) SetReferrer(ctx context.Context, tx repository.Tx, userID, referrerID int64) (bool, error) {
	const q = `UPDATE accounts SET referred_by=$2 WHERE user_id=$1 AND referred_by IS NULL AND user_id <> $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, referrerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *accountRepo) IsAncestor(ctx context.Context, tx repository.Tx, userID, candidate int64) (bool, error) {
	const q = `
WITH RECURSIVE chain(user_id, referred_by, depth) AS (
  SELECT user_id, referred_by, 0 FROM accounts WHERE user_id=$1
  UNION ALL
  SELECT a.user_id, a.referred_by, c.depth+1
    FROM accounts a JOIN chain c ON a.user_id = c.referred_by
   WHERE c.depth < $3
)
SELECT EXISTS(SELECT 1 FROM chain WHERE referred_by=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, userID, candidate, referralDepthLimit)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

func (r *accountRepo) ResetUsage(ctx context.Context, tx repository.Tx, period string) (int, error) {
	const q = `
UPDATE accounts SET monthly_transaction_count=0, monthly_listing_count=0, usage_period=$1
 WHERE usage_period <> $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *accountRepo) DowngradeExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]int64, error) {
	const q = `
UPDATE accounts SET tier='basic', tier_expires_at=NULL
 WHERE tier <> 'basic' AND tier_expires_at < $1
RETURNING user_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListByEffectiveTier treats lapsed paid tiers as basic, matching Account.EffectiveTier.
func (r *accountRepo) ListByEffectiveTier(ctx context.Context, tx repository.Tx, tier *model.Tier, now time.Time) ([]int64, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if tier == nil {
		rows, err = queryRows(ctx, r.pool, tx, `SELECT user_id FROM accounts ORDER BY user_id;`)
	} else {
		const q = `
SELECT user_id FROM accounts
 WHERE (CASE WHEN tier <> 'basic' AND tier_expires_at >= $1 THEN tier ELSE 'basic' END) = $2
 ORDER BY user_id;`
		rows, err = queryRows(ctx, r.pool, tx, q, now, string(*tier))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *accountRepo) Stats(ctx context.Context, tx repository.Tx, now, activeSince time.Time) (*model.AccountStats, error) {
	const q = `
SELECT CASE WHEN tier <> 'basic' AND tier_expires_at >= $1 THEN tier ELSE 'basic' END AS effective,
       COUNT(*),
       COUNT(*) FILTER (WHERE last_active_at >= $2),
       COALESCE(SUM(balance), 0)
  FROM accounts
 GROUP BY effective;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, activeSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &model.AccountStats{ByTier: map[model.Tier]int{}, BalanceOwed: decimal.Zero}
	for rows.Next() {
		var (
			tier          string
			count, active int
			owed          decimal.Decimal
		)
		if err := rows.Scan(&tier, &count, &active, &owed); err != nil {
			return nil, scanErr(err)
		}
		st.ByTier[model.Tier(tier)] = count
		st.Total += count
		st.ActiveSince += active
		st.BalanceOwed = st.BalanceOwed.Add(owed)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return st, nil
}

func (r *accountRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Account, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a    model.Account
		tier string
	)
	err := row.Scan(&a.UserID, &a.Profile.Username, &a.Profile.FirstName, &a.Profile.LanguageCode,
		&tier, &a.TierExpiresAt, &a.Balance, &a.TotalSpent, &a.TotalEarned,
		&a.ReferralCode, &a.ReferredBy, &a.MonthlyTransactionCount, &a.MonthlyListingCount,
		&a.UsagePeriod, &a.JoinedAt, &a.LastActiveAt)
	if err != nil {
		return nil, scanErr(err)
	}
	a.Tier = model.Tier(tier)
	return &a, nil
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, scanErr(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return ids, nil
}
