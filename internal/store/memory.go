package store

import (
	"context"
	"sync"
	"time"

	"github.com/pulse-ai/pulse/internal/model/chat"
	"github.com/pulse-ai/pulse/internal/model/mood"
	"github.com/pulse-ai/pulse/internal/model/user"
)

// MemoryStore implements Store in process memory. Suitable for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	snapshots   []mood.Snapshot
	transcripts map[string]mood.Transcript
	messages    []chat.Message
	users       map[string]user.User
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make([]mood.Snapshot, 0, 16),
		transcripts: make(map[string]mood.Transcript),
		messages:    make([]chat.Message, 0, 32),
		users:       make(map[string]user.User),
	}
}

func (s *MemoryStore) CreateSnapshot(_ context.Context, snapshot mood.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.snapshots {
		if existing.ID == snapshot.ID {
			return ErrConflict
		}
	}
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (mood.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snapshot := range s.snapshots {
		if snapshot.ID == id {
			return snapshot, nil
		}
	}
	return mood.Snapshot{}, ErrNotFound
}

func (s *MemoryStore) ListSnapshots(_ context.Context, userID string, limit int) ([]mood.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mood.Snapshot, 0)
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].UserID != userID {
			continue
		}
		out = append(out, s.snapshots[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveTranscript(_ context.Context, transcript mood.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transcripts[transcript.SnapshotID]; ok {
		return ErrConflict
	}
	s.transcripts[transcript.SnapshotID] = transcript
	return nil
}

func (s *MemoryStore) GetTranscript(_ context.Context, snapshotID string) (mood.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, ok := s.transcripts[snapshotID]
	if !ok {
		return mood.Transcript{}, ErrNotFound
	}
	return transcript, nil
}

func (s *MemoryStore) ListPendingTranscriptions(_ context.Context, olderThan time.Time, limit int) ([]mood.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mood.Snapshot, 0)
	for _, snapshot := range s.snapshots {
		if snapshot.Source != mood.SourceAudio || snapshot.MediaKey == "" {
			continue
		}
		if !snapshot.CreatedAt.Before(olderThan) {
			continue
		}
		if _, done := s.transcripts[snapshot.ID]; done {
			continue
		}
		out = append(out, snapshot)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, message)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, userID string, limit int) ([]chat.Message, error) {
	return s.listMessages(func(m chat.Message) bool { return m.UserID == userID }, limit), nil
}

func (s *MemoryStore) ListSessionMessages(_ context.Context, userID, sessionID string, limit int) ([]chat.Message, error) {
	return s.listMessages(func(m chat.Message) bool {
		return m.UserID == userID && m.SessionID == sessionID
	}, limit), nil
}

func (s *MemoryStore) listMessages(match func(chat.Message) bool, limit int) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Message, 0)
	for i := len(s.messages) - 1; i >= 0; i-- {
		if !match(s.messages[i]) {
			continue
		}
		out = append(out, s.messages[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return u, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
