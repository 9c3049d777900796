package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
)

var _ repository.CampaignRepository = (*campaignRepo)(nil)

const campaignColumns = `code, kind, value, max_uses, used_count, starts_at, ends_at, is_active, description, created_at`

type campaignRepo struct{ pool *pgxpool.Pool }

func NewCampaignRepo(pool *pgxpool.Pool) *campaignRepo {
	return &campaignRepo{pool: pool}
}

func (r *campaignRepo) Create(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	const q = `INSERT INTO campaigns (` + campaignColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.Code, string(c.Kind), c.Value, c.MaxUses, c.UsedCount, c.StartsAt, c.EndsAt, c.IsActive, c.Description, c.CreatedAt)
	return err
}

func (r *campaignRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
	q := locking(`SELECT `+campaignColumns+` FROM campaigns WHERE code=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, model.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	return scanCampaign(row)
}

func (r *campaignRepo) IncrementUsed(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	const q = `
UPDATE campaigns SET used_count = used_count + 1
 WHERE code=$1 AND is_active AND (max_uses IS NULL OR used_count < max_uses);`
	tag, err := execSQL(ctx, r.pool, tx, q, model.NormalizeCode(code))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *campaignRepo) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE campaigns SET is_active=$2 WHERE code=$1;`, model.NormalizeCode(code), active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return scanErr(pgx.ErrNoRows)
	}
	return nil
}

func (r *campaignRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Campaign, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+campaignColumns+` FROM campaigns WHERE is_active ORDER BY code;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var (
		c    model.Campaign
		kind string
	)
	err := row.Scan(&c.Code, &kind, &c.Value, &c.MaxUses, &c.UsedCount, &c.StartsAt, &c.EndsAt, &c.IsActive, &c.Description, &c.CreatedAt)
	if err != nil {
		return nil, scanErr(err)
	}
	c.Kind = model.CampaignKind(kind)
	return &c, nil
}
