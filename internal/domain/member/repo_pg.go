package member

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sgss/medfund/internal/platform/apperror"
	"github.com/sgss/medfund/internal/platform/db"
)

// ErrVersionConflict reports a lost optimistic-concurrency race on a
// member row.
var ErrVersionConflict = apperror.New(apperror.Conflict, "VersionConflict",
	"member was modified concurrently, reload and retry")

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

// =========== Member Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const memberCols = `id, user_id, full_name, membership_type_id, status,
	valid_from, valid_to, benefits_from, nhif_number, version_id, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.UserID, &m.FullName, &m.MembershipTypeID, &m.Status,
		&m.ValidFrom, &m.ValidTo, &m.BenefitsFrom, &m.NHIFNumber, &m.VersionID,
		&m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	m.VersionID = 1
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO members (id, user_id, full_name, membership_type_id, status,
			valid_from, valid_to, benefits_from, nhif_number, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		m.ID, m.UserID, m.FullName, m.MembershipTypeID, m.Status,
		m.ValidFrom, m.ValidTo, m.BenefitsFrom, m.NHIFNumber, m.VersionID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	return scanMember(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+memberCols+` FROM members WHERE id = $1`, id))
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Member, error) {
	return scanMember(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+memberCols+` FROM members WHERE user_id = $1`, userID))
}

func (r *repoPG) Update(ctx context.Context, m *Member) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE members SET status = $1, valid_from = $2, valid_to = $3,
			benefits_from = $4, nhif_number = $5, full_name = $6,
			version_id = version_id + 1, updated_at = now()
		WHERE id = $7 AND version_id = $8`,
		m.Status, m.ValidFrom, m.ValidTo, m.BenefitsFrom, m.NHIFNumber, m.FullName,
		m.ID, m.VersionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	m.VersionID++
	return nil
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Member, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = "WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM members "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := connFor(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM members %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			memberCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// =========== MembershipType Repository ===========

type typeRepoPG struct{ pool *pgxpool.Pool }

func NewTypeRepoPG(pool *pgxpool.Pool) TypeRepository { return &typeRepoPG{pool: pool} }

const typeCols = `id, key, name, entry_fee, term_years, annual_limit,
	fund_share_percent, notes, created_at`

func scanType(row pgx.Row) (*MembershipType, error) {
	var t MembershipType
	err := row.Scan(&t.ID, &t.Key, &t.Name, &t.EntryFee, &t.TermYears,
		&t.AnnualLimit, &t.FundSharePercent, &t.Notes, &t.CreatedAt)
	return &t, err
}

func (r *typeRepoPG) Create(ctx context.Context, t *MembershipType) error {
	t.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO membership_types (id, key, name, entry_fee, term_years,
			annual_limit, fund_share_percent, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		t.ID, t.Key, t.Name, t.EntryFee, t.TermYears,
		t.AnnualLimit, t.FundSharePercent, t.Notes).
		Scan(&t.CreatedAt)
}

func (r *typeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MembershipType, error) {
	return scanType(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+typeCols+` FROM membership_types WHERE id = $1`, id))
}

func (r *typeRepoPG) List(ctx context.Context) ([]*MembershipType, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+typeCols+` FROM membership_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MembershipType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =========== Dependant Repository ===========

type dependantRepoPG struct{ pool *pgxpool.Pool }

func NewDependantRepoPG(pool *pgxpool.Pool) DependantRepository {
	return &dependantRepoPG{pool: pool}
}

func (r *dependantRepoPG) Add(ctx context.Context, d *Dependant) error {
	d.ID = uuid.New()
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dependants (id, member_id, full_name, relationship, date_of_birth)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		d.ID, d.MemberID, d.FullName, d.Relationship, d.DateOfBirth).
		Scan(&d.CreatedAt)
}

func (r *dependantRepoPG) ListByMember(ctx context.Context, memberID uuid.UUID) ([]*Dependant, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT id, member_id, full_name, relationship, date_of_birth, created_at
		FROM dependants WHERE member_id = $1 ORDER BY created_at`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Dependant
	for rows.Next() {
		var d Dependant
		if err := rows.Scan(&d.ID, &d.MemberID, &d.FullName, &d.Relationship,
			&d.DateOfBirth, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *dependantRepoPG) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := connFor(ctx, r.pool).Exec(ctx,
		`DELETE FROM dependants WHERE id = $1`, id)
	return err
}
