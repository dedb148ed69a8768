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

// compile-time check that *DB implements repository.MessageRepository
var _ repository.MessageRepository = (*DB)(nil)

const messageColumns = `id, user_id, name, message, media_url, is_public, approved, created_at`

func (db *DB) CreateMessage(ctx context.Context, msg *model.GuestMessage) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO guest_messages (`+messageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		nullStringPtr(msg.UserID),
		nullStringPtr(msg.Name),
		msg.Message,
		nullStringPtr(msg.MediaURL),
		msg.IsPublic,
		msg.Approved,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting guest message: %w", err)
	}
	return nil
}

func (db *DB) GetMessageByID(ctx context.Context, id string) (*model.GuestMessage, error) {
	m, err := scanMessage(db.conn.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM guest_messages WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", id)
		}
		return nil, fmt.Errorf("sqlite: getting message %s: %w", id, err)
	}
	return m, nil
}

// ListVisibleMessages returns approved, public messages, newest first.
// The visibility predicate lives in SQL so hidden rows never leave the store.
func (db *DB) ListVisibleMessages(ctx context.Context, opts repository.ListOptions) ([]model.GuestMessage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM guest_messages
		 WHERE approved = 1 AND is_public = 1
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.GuestMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating message rows: %w", err)
	}
	return messages, nil
}

func scanMessage(s scanner) (*model.GuestMessage, error) {
	var (
		m        model.GuestMessage
		userID   sql.NullString
		name     sql.NullString
		mediaURL sql.NullString
	)
	err := s.Scan(
		&m.ID,
		&userID,
		&name,
		&m.Message,
		&mediaURL,
		&m.IsPublic,
		&m.Approved,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.UserID = stringPtr(userID)
	m.Name = stringPtr(name)
	m.MediaURL = stringPtr(mediaURL)
	return &m, nil
}
