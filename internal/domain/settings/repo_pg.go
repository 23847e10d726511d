package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sgss/medfund/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const snapshotCols = `id, version, annual_limit, critical_addon, fund_share_percent,
	clinic_outpatient_percent, waiting_period_days, submission_window_days,
	appeal_window_days, scales, procedure_tiers, active, created_at`

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	var scales, tiers []byte
	err := row.Scan(&s.ID, &s.Version, &s.AnnualLimit, &s.CriticalAddon, &s.FundSharePercent,
		&s.ClinicOutpatientPercent, &s.WaitingPeriodDays, &s.SubmissionWindowDays,
		&s.AppealWindowDays, &scales, &tiers, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scales, &s.Scales); err != nil {
		return nil, fmt.Errorf("decoding scales for version %d: %w", s.Version, err)
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &s.ProcedureTiers); err != nil {
			return nil, fmt.Errorf("decoding procedure tiers for version %d: %w", s.Version, err)
		}
	}
	return &s, nil
}

func (r *repoPG) GetActive(ctx context.Context) (*Snapshot, error) {
	return scanSnapshot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+snapshotCols+` FROM settings_snapshots WHERE active = true`))
}

func (r *repoPG) GetVersion(ctx context.Context, version int) (*Snapshot, error) {
	return scanSnapshot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+snapshotCols+` FROM settings_snapshots WHERE version = $1`, version))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Snapshot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM settings_snapshots`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+snapshotCols+` FROM settings_snapshots
		ORDER BY version DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Insert(ctx context.Context, s *Snapshot) error {
	scales, err := json.Marshal(s.Scales)
	if err != nil {
		return fmt.Errorf("encoding scales: %w", err)
	}
	tiers, err := json.Marshal(s.ProcedureTiers)
	if err != nil {
		return fmt.Errorf("encoding procedure tiers: %w", err)
	}

	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO settings_snapshots (id, version, annual_limit, critical_addon,
			fund_share_percent, clinic_outpatient_percent, waiting_period_days,
			submission_window_days, appeal_window_days, scales, procedure_tiers, active)
		VALUES ($1,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM settings_snapshots),
			$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING version, created_at`,
		s.ID, s.AnnualLimit, s.CriticalAddon,
		s.FundSharePercent, s.ClinicOutpatientPercent, s.WaitingPeriodDays,
		s.SubmissionWindowDays, s.AppealWindowDays, scales, tiers, s.Active).
		Scan(&s.Version, &s.CreatedAt)
}

func (r *repoPG) DeactivateAll(ctx context.Context) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE settings_snapshots SET active = false WHERE active = true`)
	return err
}
