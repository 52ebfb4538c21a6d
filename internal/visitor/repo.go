package visitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"visitordesk/internal/store"
)

const entryColumns = `id, name, email, person_to_meet, purpose, photo, status, notification_sent, approved_at, disapproved_at, created_at`

// PostgresRepository persists visitor entries in Postgres.
type PostgresRepository struct {
	db store.Queryer
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db store.Queryer) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create writes a new entry, minting its id when empty.
func (r *PostgresRepository) Create(ctx context.Context, e *Entry) (*Entry, error) {
	in := cloneEntry(e)
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = StatusPending
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO visitors (id, name, email, person_to_meet, purpose, photo, status, notification_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+entryColumns,
		in.ID, in.Name, in.Email, in.PersonToMeet, in.Purpose, in.Photo, string(in.Status), in.NotificationSent, in.CreatedAt)
	created, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("insert visitor: %w", err)
	}
	return created, nil
}

// FindByID returns a single entry by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM visitors WHERE id = $1`, id)
	return scanEntry(row)
}

// FindByNameAndEmail returns the newest entry with an exact name and email match.
func (r *PostgresRepository) FindByNameAndEmail(ctx context.Context, name, email string) (*Entry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM visitors
		WHERE name = $1 AND email = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, name, email)
	return scanEntry(row)
}

// Transition sets status and its timestamp on a pending entry.
func (r *PostgresRepository) Transition(ctx context.Context, id string, status Status, at time.Time) (*Entry, error) {
	var column string
	switch status {
	case StatusApproved:
		column = "approved_at"
	case StatusDisapproved:
		column = "disapproved_at"
	default:
		return nil, fmt.Errorf("%w: cannot transition to %q", ErrInvalidInput, status)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE visitors
		SET status = $2, `+column+` = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+entryColumns,
		id, string(status), at)
	updated, err := scanEntry(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update visitor status: %w", err)
	}

	// Nothing updated: either the entry is gone or it has already been decided.
	current, ferr := r.FindByID(ctx, id)
	if ferr != nil {
		return nil, ferr
	}
	return current, ErrAlreadyDecided
}

// MarkNotified records that the host notice was delivered.
func (r *PostgresRepository) MarkNotified(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE visitors SET notification_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark visitor notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns entries with basic filters, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Entry, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)

	query := `SELECT ` + entryColumns + ` FROM visitors`
	args := []any{}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += " WHERE status = $1"
	}
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	res := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e      Entry
		status string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.PersonToMeet, &e.Purpose, &e.Photo, &status, &e.NotificationSent, &e.ApprovedAt, &e.DisapprovedAt, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Status = Status(status)
	return &e, nil
}
