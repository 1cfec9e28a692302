package store

import (
	"context"
	"errors"
	"time"

	"github.com/pulse-ai/pulse/internal/model/chat"
	"github.com/pulse-ai/pulse/internal/model/mood"
	"github.com/pulse-ai/pulse/internal/model/user"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// MoodRepository persists mood snapshots and their transcripts.
type MoodRepository interface {
	CreateSnapshot(ctx context.Context, snapshot mood.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (mood.Snapshot, error)
	// ListSnapshots returns the user's snapshots newest first. limit <= 0 means no limit.
	ListSnapshots(ctx context.Context, userID string, limit int) ([]mood.Snapshot, error)
	SaveTranscript(ctx context.Context, transcript mood.Transcript) error
	GetTranscript(ctx context.Context, snapshotID string) (mood.Transcript, error)
	// ListPendingTranscriptions returns audio snapshots created before olderThan
	// that have no transcript yet, oldest first.
	ListPendingTranscriptions(ctx context.Context, olderThan time.Time, limit int) ([]mood.Snapshot, error)
}

// ChatRepository persists chat turns.
type ChatRepository interface {
	SaveMessage(ctx context.Context, message chat.Message) error
	// ListMessages returns the user's messages across sessions, newest first.
	ListMessages(ctx context.Context, userID string, limit int) ([]chat.Message, error)
	// ListSessionMessages returns one session's messages, newest first.
	ListSessionMessages(ctx context.Context, userID, sessionID string, limit int) ([]chat.Message, error)
}

// UserRepository persists backend user records.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (user.User, error)
	UpsertUser(ctx context.Context, u user.User) (user.User, error)
}

// Store bundles every repository behind one handle.
type Store interface {
	MoodRepository
	ChatRepository
	UserRepository
	Close() error
}
