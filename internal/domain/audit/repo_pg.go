package audit

import (
	"context"
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

const entryCols = `id, seq, actor_id, actor_label, role, action, note,
	claim_id, meeting_id, settings_version, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Seq, &e.ActorID, &e.ActorLabel, &e.Role, &e.Action, &e.Note,
		&e.ClaimID, &e.MeetingID, &e.SettingsVersion, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_entries (id, actor_id, actor_label, role, action, note,
			claim_id, meeting_id, settings_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING seq, created_at`,
		e.ID, e.ActorID, e.ActorLabel, e.Role, e.Action, e.Note,
		e.ClaimID, e.MeetingID, e.SettingsVersion).
		Scan(&e.Seq, &e.CreatedAt)
}

func (r *repoPG) ListByClaim(ctx context.Context, claimID uuid.UUID, desc bool, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "WHERE claim_id = $1", []interface{}{claimID}, desc, limit, offset)
}

func (r *repoPG) ListByMeeting(ctx context.Context, meetingID uuid.UUID, desc bool, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "WHERE meeting_id = $1", []interface{}{meetingID}, desc, limit, offset)
}

func (r *repoPG) List(ctx context.Context, desc bool, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "", nil, desc, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, desc bool, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM audit_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "ASC"
	if desc {
		order = "DESC"
	}
	q := fmt.Sprintf(`SELECT %s FROM audit_entries %s
		ORDER BY created_at %s, seq %s
		LIMIT $%d OFFSET $%d`,
		entryCols, where, order, order, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
