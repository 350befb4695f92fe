package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sathvikchoudar61/EduStealth/internal/models"
)

// SQLiteStore handles SQLite database operations. Timestamps are stored as
// unix milliseconds so range comparisons are exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/edustealth.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/edustealth.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'text',
		image_url TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		read_at INTEGER,
		expires_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_expires ON messages(expires_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append persists a new message.
func (s *SQLiteStore) Append(ctx context.Context, msg *models.Message) error {
	if err := prepare(msg); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, kind, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, string(msg.Kind), msg.ImageURL, msg.CreatedAt.UnixMilli())
	return err
}

const sqliteSelectColumns = `id, sender_id, receiver_id, content, kind, image_url, created_at, read_at, expires_at`

// History returns messages between two users in either direction, oldest
// first, excluding messages past their self-destruct time.
func (s *SQLiteStore) History(ctx context.Context, userA, userB string, now time.Time) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteSelectColumns+`
		FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at ASC
	`, userA, userB, userB, userA, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteMessages(rows)
}

// MarkRead arms the self-destruct timer with a single conditional update.
func (s *SQLiteStore) MarkRead(ctx context.Context, id, readerID string, readAt, expiresAt time.Time) (*models.Message, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET read_at = ?, expires_at = ?
		WHERE id = ? AND receiver_id = ? AND read_at IS NULL
	`, readAt.UnixMilli(), expiresAt.UnixMilli(), id, readerID)
	if err != nil {
		return nil, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	msg, err := s.getMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, affected == 1, nil
}

// Remove deletes a message on behalf of its sender while still unread. The
// delete condition is atomic; the preceding select only classifies failures.
func (s *SQLiteStore) Remove(ctx context.Context, id, requesterID string) (*models.Message, error) {
	msg, err := s.getMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE id = ? AND sender_id = ? AND read_at IS NULL AND expires_at IS NULL
	`, id, requesterID)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 1 {
		return msg, nil
	}

	// The conditional delete lost: either a concurrent read armed the
	// timer, the requester is not the sender, or the row is already gone.
	if _, err := s.getMessage(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrForbidden
}

// Purge unconditionally deletes a message. Absent ids are a no-op.
func (s *SQLiteStore) Purge(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// FindExpired returns messages past their self-destruct time.
func (s *SQLiteStore) FindExpired(ctx context.Context, now time.Time) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteSelectColumns+`
		FROM messages
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteMessages(rows)
}

// Stats returns aggregate message counts.
func (s *SQLiteStore) Stats(ctx context.Context) (MessageStats, error) {
	var stats MessageStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN read_at IS NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN expires_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM messages
	`).Scan(&stats.Total, &stats.Unread, &stats.PendingExpiry)
	return stats, err
}

// getMessage retrieves a message by id, or ErrNotFound.
func (s *SQLiteStore) getMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteSelectColumns+`
		FROM messages WHERE id = ?
	`, id)

	msg, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var kind string
	var createdAt int64
	var readAt, expiresAt sql.NullInt64

	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&kind,
		&msg.ImageURL,
		&createdAt,
		&readAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Kind = models.Kind(kind)
	msg.CreatedAt = time.UnixMilli(createdAt).UTC()
	if readAt.Valid {
		t := time.UnixMilli(readAt.Int64).UTC()
		msg.ReadAt = &t
	}
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64).UTC()
		msg.ExpiresAt = &t
	}
	return msg, nil
}

func scanSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
