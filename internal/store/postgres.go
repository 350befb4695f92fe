package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sathvikchoudar61/EduStealth/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'text',
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		read_at TIMESTAMPTZ,
		expires_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_expires ON messages(expires_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Append persists a new message.
func (s *PostgresStore) Append(ctx context.Context, msg *models.Message) error {
	if err := prepare(msg); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, kind, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, string(msg.Kind), msg.ImageURL, msg.CreatedAt)
	return err
}

const pgSelectColumns = `id, sender_id, receiver_id, content, kind, image_url, created_at, read_at, expires_at`

// History returns messages between two users in either direction, oldest
// first, excluding messages past their self-destruct time.
func (s *PostgresStore) History(ctx context.Context, userA, userB string, now time.Time) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgSelectColumns+`
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at ASC
	`, userA, userB, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPgMessages(rows)
}

// MarkRead arms the self-destruct timer with a single conditional update.
func (s *PostgresStore) MarkRead(ctx context.Context, id, readerID string, readAt, expiresAt time.Time) (*models.Message, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET read_at = $1, expires_at = $2
		WHERE id = $3 AND receiver_id = $4 AND read_at IS NULL
	`, readAt, expiresAt, id, readerID)
	if err != nil {
		return nil, false, err
	}

	msg, err := s.getMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, tag.RowsAffected() == 1, nil
}

// Remove deletes a message on behalf of its sender while still unread. The
// delete condition is atomic and returns the removed row.
func (s *PostgresStore) Remove(ctx context.Context, id, requesterID string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM messages
		WHERE id = $1 AND sender_id = $2 AND read_at IS NULL AND expires_at IS NULL
		RETURNING `+pgSelectColumns+`
	`, id, requesterID)

	msg, err := scanPgMessage(row)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// The conditional delete lost: either a concurrent read armed the
	// timer, the requester is not the sender, or the row is already gone.
	if _, err := s.getMessage(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrForbidden
}

// Purge unconditionally deletes a message. Absent ids are a no-op.
func (s *PostgresStore) Purge(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FindExpired returns messages past their self-destruct time.
func (s *PostgresStore) FindExpired(ctx context.Context, now time.Time) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgSelectColumns+`
		FROM messages
		WHERE expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPgMessages(rows)
}

// Stats returns aggregate message counts.
func (s *PostgresStore) Stats(ctx context.Context) (MessageStats, error) {
	var stats MessageStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN read_at IS NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN expires_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM messages
	`).Scan(&stats.Total, &stats.Unread, &stats.PendingExpiry)
	return stats, err
}

// getMessage retrieves a message by id, or ErrNotFound.
func (s *PostgresStore) getMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgSelectColumns+`
		FROM messages WHERE id = $1
	`, id)

	msg, err := scanPgMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func scanPgMessage(row pgx.Row) (*models.Message, error) {
	msg := &models.Message{}
	var kind string
	var readAt, expiresAt *time.Time

	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&kind,
		&msg.ImageURL,
		&msg.CreatedAt,
		&readAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Kind = models.Kind(kind)
	msg.ReadAt = readAt
	msg.ExpiresAt = expiresAt
	return msg, nil
}

func scanPgMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		msg, err := scanPgMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
