package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/wedding-rsvp/internal/model"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates an account and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, email, fullName string) *model.User {
	t.Helper()
	u := &model.User{Email: email, FullName: fullName, PasswordHash: "hash"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestNormalizeSubRecords_RewritesLegacyRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO rsvps (id, user_id, full_name, email, attending, children, plus_one, submitted_by)
		 VALUES ('legacy-1', NULL, 'Old Row', 'old@example.com', 1, ?, ?, 'someone')`,
		`"[{\"name\":\"Ava\",\"age\":4}]"`,
		`"{\"name\":\"Sam\",\"dietary\":\"\"}"`,
	)
	if err != nil {
		t.Fatalf("inserting legacy row: %v", err)
	}

	if err := db.normalizeSubRecords(); err != nil {
		t.Fatalf("normalizeSubRecords() error = %v", err)
	}

	var children, plusOne string
	err = db.conn.QueryRowContext(ctx,
		`SELECT children, plus_one FROM rsvps WHERE id = 'legacy-1'`,
	).Scan(&children, &plusOne)
	if err != nil {
		t.Fatalf("reading row back: %v", err)
	}

	if children != `[{"name":"Ava","age":"4"}]` {
		t.Errorf("children = %s, want canonical array", children)
	}
	if plusOne != `{"name":"Sam","dietary":""}` {
		t.Errorf("plus_one = %s, want canonical object", plusOne)
	}
}

func TestNormalizeSubRecords_LeavesUndecodableRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO rsvps (id, full_name, children, submitted_by)
		 VALUES ('broken', 'Broken Row', 'not json', 'someone')`,
	)
	if err != nil {
		t.Fatalf("inserting row: %v", err)
	}

	if err := db.normalizeSubRecords(); err != nil {
		t.Fatalf("normalizeSubRecords() error = %v", err)
	}

	var children string
	if err := db.conn.QueryRowContext(ctx, `SELECT children FROM rsvps WHERE id = 'broken'`).Scan(&children); err != nil {
		t.Fatalf("reading row back: %v", err)
	}
	if children != "not json" {
		t.Errorf("children = %q, want untouched", children)
	}
}
