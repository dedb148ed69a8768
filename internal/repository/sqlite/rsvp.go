package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/model"
	"github.com/sakif/wedding-rsvp/internal/repository"
)

// compile-time check that *DB implements repository.RSVPRepository
var _ repository.RSVPRepository = (*DB)(nil)

const rsvpColumns = `id, user_id, full_name, email, attending, children, plus_one,
	dietary_requirements, song_requests, submitted_by, created_at`

// SaveSubmission writes a guest's own record together with any on-behalf
// records in a single transaction.
//
// UPSERT ON OWNER:
// The own record is written with INSERT ... ON CONFLICT(user_id) DO UPDATE,
// keyed on the unique index over user_id. Two concurrent submissions from the
// same account therefore end as one row; the existing id and created_at are
// kept and every other column takes the newer value.
//
// On success own (if non-nil) and every on-behalf record carry their stored
// id and created_at.
func (db *DB) SaveSubmission(ctx context.Context, own *model.RSVP, onBehalf []*model.RSVP) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		if own != nil {
			if !own.IsOwn() {
				return fmt.Errorf("sqlite: own rsvp requires an owner id")
			}
			if err := upsertOwn(ctx, tx, own, now); err != nil {
				return err
			}
		}

		for _, r := range onBehalf {
			r.UserID = nil
			if err := insertRSVP(ctx, tx, r, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertOwn(ctx context.Context, tx *sql.Tx, r *model.RSVP, now time.Time) error {
	children, plusOne, err := encodeSubRecords(r)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rsvps (`+rsvpColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			full_name            = excluded.full_name,
			email                = excluded.email,
			attending            = excluded.attending,
			children             = excluded.children,
			plus_one             = excluded.plus_one,
			dietary_requirements = excluded.dietary_requirements,
			song_requests        = excluded.song_requests,
			submitted_by         = excluded.submitted_by`,
		xid.New().String(),
		*r.UserID,
		r.FullName,
		r.Email,
		r.Attending,
		children,
		plusOne,
		r.Dietary,
		r.Songs,
		r.SubmittedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting rsvp for user %s: %w", *r.UserID, err)
	}

	stored, err := scanRSVP(tx.QueryRowContext(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps WHERE user_id = ?`, *r.UserID,
	))
	if err != nil {
		return fmt.Errorf("sqlite: reading back rsvp for user %s: %w", *r.UserID, err)
	}
	*r = *stored
	return nil
}

func insertRSVP(ctx context.Context, tx *sql.Tx, r *model.RSVP, now time.Time) error {
	children, plusOne, err := encodeSubRecords(r)
	if err != nil {
		return err
	}

	r.ID = xid.New().String()
	r.CreatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rsvps (`+rsvpColumns+`)
		 VALUES (?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.FullName,
		r.Email,
		r.Attending,
		children,
		plusOne,
		r.Dietary,
		r.Songs,
		r.SubmittedBy,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting on-behalf rsvp %q: %w", r.FullName, err)
	}
	return nil
}

// GetRSVPByID retrieves a single record.
// Returns apperror.ErrNotFound if it does not exist.
func (db *DB) GetRSVPByID(ctx context.Context, id string) (*model.RSVP, error) {
	r, err := scanRSVP(db.conn.QueryRowContext(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("rsvp", id)
		}
		return nil, fmt.Errorf("sqlite: getting rsvp %s: %w", id, err)
	}
	return r, nil
}

// GetRSVPByOwner returns the account's own record.
func (db *DB) GetRSVPByOwner(ctx context.Context, userID string) (*model.RSVP, error) {
	r, err := scanRSVP(db.conn.QueryRowContext(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps WHERE user_id = ?`, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage("RSVP not found")
		}
		return nil, fmt.Errorf("sqlite: getting rsvp for user %s: %w", userID, err)
	}
	return r, nil
}

// ListRSVPs returns every record, newest first.
func (db *DB) ListRSVPs(ctx context.Context) ([]model.RSVP, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing rsvps: %w", err)
	}
	defer rows.Close()

	rsvps := make([]model.RSVP, 0)
	for rows.Next() {
		r, err := scanRSVP(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning rsvp row: %w", err)
		}
		rsvps = append(rsvps, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating rsvp rows: %w", err)
	}
	return rsvps, nil
}

// UpdateRSVP applies a partial update. Only attending, dietary, songs,
// children and plus-one are written; name, email and ownership never change.
func (db *DB) UpdateRSVP(ctx context.Context, id string, patch model.RSVPPatch) (*model.RSVP, error) {
	var updated *model.RSVP

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanRSVP(tx.QueryRowContext(ctx,
			`SELECT `+rsvpColumns+` FROM rsvps WHERE id = ?`, id,
		))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("rsvp", id)
			}
			return fmt.Errorf("sqlite: loading rsvp %s: %w", id, err)
		}

		patch.Apply(current)

		children, plusOne, err := encodeSubRecords(current)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE rsvps
			 SET attending = ?, children = ?, plus_one = ?,
			     dietary_requirements = ?, song_requests = ?
			 WHERE id = ?`,
			current.Attending,
			children,
			plusOne,
			current.Dietary,
			current.Songs,
			id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating rsvp %s: %w", id, err)
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRSVP removes a record by id.
func (db *DB) DeleteRSVP(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM rsvps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting rsvp %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("rsvp", id)
	}
	return nil
}

// CountAttending is the confirmed guest count shown on the venue page.
func (db *DB) CountAttending(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rsvps WHERE attending = 1`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting attending rsvps: %w", err)
	}
	return n, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRSVP(s scanner) (*model.RSVP, error) {
	var (
		r        model.RSVP
		userID   sql.NullString
		children string
		plusOne  sql.NullString
	)
	err := s.Scan(
		&r.ID,
		&userID,
		&r.FullName,
		&r.Email,
		&r.Attending,
		&children,
		&plusOne,
		&r.Dietary,
		&r.Songs,
		&r.SubmittedBy,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.UserID = stringPtr(userID)

	if r.Children, err = model.DecodeChildren([]byte(children)); err != nil {
		return nil, fmt.Errorf("rsvp %s: %w", r.ID, err)
	}
	if r.PlusOne, err = model.DecodePlusOne([]byte(plusOne.String)); err != nil {
		return nil, fmt.Errorf("rsvp %s: %w", r.ID, err)
	}
	return &r, nil
}

func encodeSubRecords(r *model.RSVP) (string, sql.NullString, error) {
	children, err := model.EncodeChildren(r.Children)
	if err != nil {
		return "", sql.NullString{}, err
	}
	plusOne, err := model.EncodePlusOne(r.PlusOne)
	if err != nil {
		return "", sql.NullString{}, err
	}
	return children, nullString(plusOne), nil
}
