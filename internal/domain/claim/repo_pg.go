package claim

import (
	"context"
	"fmt"
	"time"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Claim Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const claimCols = `id, member_id, type, status, date_of_first_visit, date_of_discharge,
	critical_illness, at_clinic, total_claimed, total_payable, member_payable,
	override_amount, settings_version, notes, submitted_at, decided_at,
	version_id, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.MemberID, &c.Type, &c.Status, &c.DateOfFirstVisit, &c.DateOfDischarge,
		&c.CriticalIllness, &c.AtClinic, &c.TotalClaimed, &c.TotalPayable, &c.MemberPayable,
		&c.OverrideAmount, &c.SettingsVersion, &c.Notes, &c.SubmittedAt, &c.DecidedAt,
		&c.VersionID, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	c.VersionID = 1
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO claims (id, member_id, type, status, date_of_first_visit,
			date_of_discharge, critical_illness, at_clinic, total_claimed,
			total_payable, member_payable, override_amount, settings_version,
			notes, submitted_at, decided_at, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`,
		c.ID, c.MemberID, c.Type, c.Status, c.DateOfFirstVisit,
		c.DateOfDischarge, c.CriticalIllness, c.AtClinic, c.TotalClaimed,
		c.TotalPayable, c.MemberPayable, c.OverrideAmount, c.SettingsVersion,
		c.Notes, c.SubmittedAt, c.DecidedAt, c.VersionID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertItems(ctx, c.ID, c.Items)
}

func (r *repoPG) insertItems(ctx context.Context, claimID uuid.UUID, items []*Item) error {
	for i, item := range items {
		item.ID = uuid.New()
		item.ClaimID = claimID
		item.Position = i
		_, err := connFor(ctx, r.pool).Exec(ctx, `
			INSERT INTO claim_items (id, claim_id, position, category, description, amount, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, item.ClaimID, item.Position, item.Category, item.Description,
			item.Amount, item.Quantity)
		if err != nil {
			return fmt.Errorf("inserting claim item %d: %w", i, err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := scanClaim(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+claimCols+` FROM claims WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	c.Items, err = r.itemsFor(ctx, id)
	return c, err
}

func (r *repoPG) itemsFor(ctx context.Context, claimID uuid.UUID) ([]*Item, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT id, claim_id, position, category, description, amount, quantity
		FROM claim_items WHERE claim_id = $1 ORDER BY position`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ClaimID, &it.Position, &it.Category,
			&it.Description, &it.Amount, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, c *Claim) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE claims SET status = $1, total_claimed = $2, total_payable = $3,
			member_payable = $4, override_amount = $5, settings_version = $6,
			notes = $7, submitted_at = $8, decided_at = $9,
			version_id = version_id + 1, updated_at = now()
		WHERE id = $10 AND version_id = $11`,
		c.Status, c.TotalClaimed, c.TotalPayable,
		c.MemberPayable, c.OverrideAmount, c.SettingsVersion,
		c.Notes, c.SubmittedAt, c.DecidedAt,
		c.ID, c.VersionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	c.VersionID++
	return nil
}

func (r *repoPG) ReplaceItems(ctx context.Context, claimID uuid.UUID, items []*Item) error {
	if _, err := connFor(ctx, r.pool).Exec(ctx,
		`DELETE FROM claim_items WHERE claim_id = $1`, claimID); err != nil {
		return err
	}
	return r.insertItems(ctx, claimID, items)
}

func (r *repoPG) ListByMember(ctx context.Context, memberID uuid.UUID, status string, limit, offset int) ([]*Claim, int, error) {
	where := "WHERE member_id = $1"
	args := []interface{}{memberID}
	if status != "" {
		where += " AND status = $2"
		args = append(args, status)
	}
	return r.list(ctx, where, args, limit, offset)
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = "WHERE status = $1"
		args = append(args, status)
	}
	return r.list(ctx, where, args, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Claim, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM claims "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := connFor(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM claims %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			claimCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repoPG) SumPayableForMember(ctx context.Context, memberID uuid.UUID, from, to time.Time) (int64, error) {
	var sum int64
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(total_payable), 0) FROM claims
		WHERE member_id = $1 AND status IN ('approved', 'paid')
		  AND decided_at >= $2 AND decided_at < $3`,
		memberID, from, to).Scan(&sum)
	return sum, err
}

// =========== Appeal Repository ===========

type appealRepoPG struct{ pool *pgxpool.Pool }

func NewAppealRepoPG(pool *pgxpool.Pool) AppealRepository { return &appealRepoPG{pool: pool} }

const appealCols = `id, claim_id, member_id, reason, status, decision,
	trustee_notes, override_amount, decided_at, created_at`

func scanAppeal(row pgx.Row) (*Appeal, error) {
	var a Appeal
	err := row.Scan(&a.ID, &a.ClaimID, &a.MemberID, &a.Reason, &a.Status, &a.Decision,
		&a.TrusteeNotes, &a.OverrideAmount, &a.DecidedAt, &a.CreatedAt)
	return &a, err
}

func (r *appealRepoPG) Create(ctx context.Context, a *Appeal) error {
	a.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appeals (id, claim_id, member_id, reason, status, decision,
			trustee_notes, override_amount, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		a.ID, a.ClaimID, a.MemberID, a.Reason, a.Status, a.Decision,
		a.TrusteeNotes, a.OverrideAmount, a.DecidedAt).
		Scan(&a.CreatedAt)
}

func (r *appealRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appeal, error) {
	return scanAppeal(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+appealCols+` FROM appeals WHERE id = $1`, id))
}

func (r *appealRepoPG) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Appeal, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+appealCols+` FROM appeals WHERE claim_id = $1 ORDER BY created_at`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Appeal
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *appealRepoPG) Update(ctx context.Context, a *Appeal) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE appeals SET status = $1, decision = $2, trustee_notes = $3,
			override_amount = $4, decided_at = $5
		WHERE id = $6`,
		a.Status, a.Decision, a.TrusteeNotes, a.OverrideAmount, a.DecidedAt, a.ID)
	return err
}

func (r *appealRepoPG) ListPending(ctx context.Context, limit, offset int) ([]*Appeal, int, error) {
	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM appeals WHERE status = 'pending'`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+appealCols+` FROM appeals WHERE status = 'pending'
		ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Appeal
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}
