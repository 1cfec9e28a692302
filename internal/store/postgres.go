package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/model/chat"
	"github.com/pulse-ai/pulse/internal/model/mood"
	"github.com/pulse-ai/pulse/internal/model/user"
)

//go:embed migrations.sql
var migrations embed.FS

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore implements Store on top of a managed Postgres instance.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore connects to databaseURL and applies the embedded schema.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &PostgresStore{db: db, logger: logger}
	if err := s.initializeSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info("postgres store ready")
	return s, nil
}

func (s *PostgresStore) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("execute migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snapshot mood.Snapshot) error {
	const query = `
		INSERT INTO moodsnapshot
			(id, user_id, source, raw_text, media_key, media_type, detected_emotion, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.UserID,
		snapshot.Source,
		nullString(snapshot.RawText),
		nullString(snapshot.MediaKey),
		nullString(snapshot.MediaType),
		nullString(snapshot.DetectedEmotion),
		nullFloat(snapshot.Confidence),
		snapshot.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `id, user_id, source, raw_text, media_key, media_type, detected_emotion, confidence, created_at`

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (mood.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM moodsnapshot WHERE id = $1`, id)
	snapshot, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mood.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return mood.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, userID string, limit int) ([]mood.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM moodsnapshot WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.querySnapshots(ctx, query, args...)
}

func (s *PostgresStore) ListPendingTranscriptions(ctx context.Context, olderThan time.Time, limit int) ([]mood.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM moodsnapshot m
		WHERE m.source = 'audio'
		  AND m.media_key IS NOT NULL
		  AND m.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM mood_transcripts t WHERE t.snapshot_id = m.id)
		ORDER BY m.created_at ASC`
	args := []any{olderThan}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.querySnapshots(ctx, query, args...)
}

func (s *PostgresStore) querySnapshots(ctx context.Context, query string, args ...any) ([]mood.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]mood.Snapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *PostgresStore) SaveTranscript(ctx context.Context, transcript mood.Transcript) error {
	const query = `
		INSERT INTO mood_transcripts (snapshot_id, text, engine, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, transcript.SnapshotID, transcript.Text, transcript.Engine, transcript.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTranscript(ctx context.Context, snapshotID string) (mood.Transcript, error) {
	const query = `SELECT snapshot_id, text, engine, created_at FROM mood_transcripts WHERE snapshot_id = $1`

	var t mood.Transcript
	err := s.db.QueryRowContext(ctx, query, snapshotID).Scan(&t.SnapshotID, &t.Text, &t.Engine, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return mood.Transcript{}, ErrNotFound
	}
	if err != nil {
		return mood.Transcript{}, fmt.Errorf("get transcript: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, message chat.Message) error {
	const query = `
		INSERT INTO chatmessage (id, user_id, session_id, role, content, detected_emotion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		message.ID,
		message.UserID,
		message.SessionID,
		message.Role,
		message.Content,
		nullString(message.DetectedEmotion),
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

const messageColumns = `id, user_id, session_id, role, content, detected_emotion, created_at`

func (s *PostgresStore) ListMessages(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM chatmessage WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryMessages(ctx, query, args...)
}

func (s *PostgresStore) ListSessionMessages(ctx context.Context, userID, sessionID string, limit int) ([]chat.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM chatmessage WHERE user_id = $1 AND session_id = $2 ORDER BY created_at DESC`
	args := []any{userID, sessionID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.queryMessages(ctx, query, args...)
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var (
			m       chat.Message
			emotion sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.Role, &m.Content, &emotion, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.DetectedEmotion = emotion.String
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return messages, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (user.User, error) {
	const query = `SELECT id, email, display_name, created_at FROM users WHERE id = $1`

	var (
		u           user.User
		email, name sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &email, &name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Email = email.String
	u.DisplayName = name.String
	return u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u user.User) (user.User, error) {
	const query = `
		INSERT INTO users (id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
			SET email = EXCLUDED.email, display_name = EXCLUDED.display_name
		RETURNING created_at`

	if err := s.db.QueryRowContext(ctx, query, u.ID, nullString(u.Email), nullString(u.DisplayName)).Scan(&u.CreatedAt); err != nil {
		return user.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (mood.Snapshot, error) {
	var (
		snapshot                               mood.Snapshot
		rawText, mediaKey, mediaType, emotion sql.NullString
		confidence                             sql.NullFloat64
	)
	err := row.Scan(
		&snapshot.ID,
		&snapshot.UserID,
		&snapshot.Source,
		&rawText,
		&mediaKey,
		&mediaType,
		&emotion,
		&confidence,
		&snapshot.CreatedAt,
	)
	if err != nil {
		return mood.Snapshot{}, err
	}
	snapshot.RawText = rawText.String
	snapshot.MediaKey = mediaKey.String
	snapshot.MediaType = mediaType.String
	snapshot.DetectedEmotion = emotion.String
	if confidence.Valid {
		value := confidence.Float64
		snapshot.Confidence = &value
	}
	return snapshot, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
