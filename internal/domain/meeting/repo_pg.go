package meeting

import (
	"context"
	"errors"
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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const meetingCols = `id, date, type, status, quorum_confirmed, notes,
	version_id, created_at, updated_at`

func scanMeeting(row pgx.Row) (*Meeting, error) {
	var m Meeting
	err := row.Scan(&m.ID, &m.Date, &m.Type, &m.Status, &m.QuorumConfirmed,
		&m.Notes, &m.VersionID, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Meeting) error {
	m.ID = uuid.New()
	m.VersionID = 1
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO meetings (id, date, type, status, quorum_confirmed, notes, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		m.ID, m.Date, m.Type, m.Status, m.QuorumConfirmed, m.Notes, m.VersionID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return scanMeeting(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+meetingCols+` FROM meetings WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *Meeting) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE meetings SET date = $1, type = $2, status = $3,
			quorum_confirmed = $4, notes = $5,
			version_id = version_id + 1, updated_at = now()
		WHERE id = $6 AND version_id = $7`,
		m.Date, m.Type, m.Status, m.QuorumConfirmed, m.Notes, m.ID, m.VersionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	m.VersionID++
	return nil
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Meeting, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = "WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := connFor(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM meetings "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := connFor(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM meetings %s ORDER BY date DESC LIMIT $%d OFFSET $%d`,
			meetingCols, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// Lock is the one-way barrier. The status condition makes it atomic with
// respect to concurrent link writes, which carry the mirror condition.
func (r *repoPG) Lock(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE meetings SET status = $1, version_id = version_id + 1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		StatusLocked, id, StatusRatified)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// =========== Claim links ===========

const linkCols = `id, meeting_id, claim_id, position, decision, notes, created_at, updated_at`

func scanLink(row pgx.Row) (*ClaimLink, error) {
	var l ClaimLink
	err := row.Scan(&l.ID, &l.MeetingID, &l.ClaimID, &l.Position, &l.Decision,
		&l.Notes, &l.CreatedAt, &l.UpdatedAt)
	return &l, err
}

// AddLink appends the claim at the tail of the queue. The EXISTS condition
// on the meeting's status is what keeps a concurrent lock honest: once the
// flag flips, the insert affects zero rows and fails instead of slipping in.
func (r *repoPG) AddLink(ctx context.Context, l *ClaimLink) error {
	l.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO meeting_claim_links (id, meeting_id, claim_id, position, decision, notes)
		SELECT $1, $2, $3,
			COALESCE((SELECT MAX(position) FROM meeting_claim_links WHERE meeting_id = $2), 0) + 1,
			$4, $5
		WHERE EXISTS (SELECT 1 FROM meetings WHERE id = $2 AND status = $6)
		RETURNING position, created_at, updated_at`,
		l.ID, l.MeetingID, l.ClaimID, l.Decision, l.Notes, StatusDraft).
		Scan(&l.Position, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMeetingLocked
	}
	return err
}

func (r *repoPG) GetLink(ctx context.Context, id uuid.UUID) (*ClaimLink, error) {
	return scanLink(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+linkCols+` FROM meeting_claim_links WHERE id = $1`, id))
}

func (r *repoPG) ListLinks(ctx context.Context, meetingID uuid.UUID) ([]*ClaimLink, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+linkCols+` FROM meeting_claim_links WHERE meeting_id = $1 ORDER BY position`,
		meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ClaimLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repoPG) UpdateLink(ctx context.Context, l *ClaimLink) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE meeting_claim_links l SET decision = $1, notes = $2, updated_at = now()
		FROM meetings m
		WHERE l.id = $3 AND m.id = l.meeting_id AND m.status = $4`,
		l.Decision, l.Notes, l.ID, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMeetingLocked
	}
	return nil
}

func (r *repoPG) RemoveLink(ctx context.Context, id uuid.UUID) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		DELETE FROM meeting_claim_links l
		USING meetings m
		WHERE l.id = $1 AND m.id = l.meeting_id AND m.status = $2`,
		id, StatusDraft)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMeetingLocked
	}
	return nil
}

func (r *repoPG) FindOpenLink(ctx context.Context, claimID uuid.UUID) (*ClaimLink, error) {
	l, err := scanLink(connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT l.id, l.meeting_id, l.claim_id, l.position, l.decision, l.notes,
			l.created_at, l.updated_at
		FROM meeting_claim_links l
		JOIN meetings m ON m.id = l.meeting_id
		WHERE l.claim_id = $1 AND m.status <> $2
		LIMIT 1`, claimID, StatusLocked))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// =========== Attendance ===========

func (r *repoPG) AddAttendance(ctx context.Context, a *Attendance) error {
	a.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO meeting_attendance (id, meeting_id, actor_id, name, present)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM meetings WHERE id = $2 AND status = $6)
		ON CONFLICT (meeting_id, actor_id)
		DO UPDATE SET present = EXCLUDED.present, name = EXCLUDED.name
		RETURNING id, created_at`,
		a.ID, a.MeetingID, a.ActorID, a.Name, a.Present, StatusDraft).
		Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMeetingLocked
	}
	return err
}

func (r *repoPG) ListAttendance(ctx context.Context, meetingID uuid.UUID) ([]*Attendance, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT id, meeting_id, actor_id, name, present, created_at
		FROM meeting_attendance WHERE meeting_id = $1 ORDER BY created_at`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Attendance
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.MeetingID, &a.ActorID, &a.Name,
			&a.Present, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
