package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/model/chat"
	"github.com/pulse-ai/pulse/internal/model/recommendation"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
	"github.com/pulse-ai/pulse/internal/store"
)

var (
	ErrEmptyMessage         = errors.New("message content is required")
	ErrAssistantUnavailable = errors.New("assistant is not configured")
)

// Replier produces the companion's answer.
type Replier interface {
	Reply(ctx context.Context, history []chat.Message, userMessage string, guidance *emotionservice.Guidance) (string, error)
}

// Detector classifies the user's message.
type Detector interface {
	Detect(ctx context.Context, history []chat.Message, text string) emotionservice.Guidance
}

// Recommender suggests media for an emotion.
type Recommender interface {
	ForEmotion(ctx context.Context, emotion string) recommendation.Set
}

// Config tunes the conversation window.
type Config struct {
	HistoryLimit int
}

// Service runs one chat exchange: detect, persist, reply, recommend.
type Service struct {
	repo         store.ChatRepository
	replier      Replier
	detector     Detector
	recommender  Recommender
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

// NewService wires the chat service. replier and recommender may be nil.
func NewService(repo store.ChatRepository, replier Replier, detector Detector, recommender Recommender, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 6
	}
	return &Service{
		repo:         repo,
		replier:      replier,
		detector:     detector,
		recommender:  recommender,
		historyLimit: limit,
		logger:       logger.Named("chat"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Available reports whether replies can be generated.
func (s *Service) Available() bool {
	return s != nil && s.replier != nil
}

// Send handles one user message. An empty sessionID starts a new session.
func (s *Service) Send(ctx context.Context, userID, sessionID, content string) (chat.Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Reply{}, ErrEmptyMessage
	}
	if !s.Available() {
		return chat.Reply{}, ErrAssistantUnavailable
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}

	history, err := s.repo.ListSessionMessages(ctx, userID, sessionID, s.historyLimit)
	if err != nil {
		s.logger.Warn("load session history", zap.String("session_id", sessionID), zap.Error(err))
		history = nil
	}
	reverse(history)

	guidance := s.detector.Detect(ctx, history, content)
	emotion := string(guidance.Decision.Emotion)

	s.save(ctx, chat.Message{
		ID:              uuid.NewString(),
		UserID:          userID,
		SessionID:       sessionID,
		Role:            chat.RoleUser,
		Content:         content,
		DetectedEmotion: emotion,
		CreatedAt:       s.now(),
	})

	answer, err := s.replier.Reply(ctx, history, content, &guidance)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("generate reply: %w", err)
	}

	s.save(ctx, chat.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   answer,
		CreatedAt: s.now(),
	})

	reply := chat.Reply{
		SessionID: sessionID,
		AssistantMessage: chat.AssistantMessage{
			Content:         answer,
			DetectedEmotion: emotion,
		},
	}
	if s.recommender != nil && emotion != "" {
		set := s.recommender.ForEmotion(ctx, emotion)
		if !set.Empty() {
			reply.Recommendations = &set
		}
	}
	return reply, nil
}

// History returns the user's messages across sessions, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	messages, err := s.repo.ListMessages(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return messages, nil
}

// save persists a turn; failures are logged and do not abort the exchange.
func (s *Service) save(ctx context.Context, message chat.Message) {
	if err := s.repo.SaveMessage(ctx, message); err != nil {
		s.logger.Warn("save chat message",
			zap.String("session_id", message.SessionID),
			zap.String("role", message.Role),
			zap.Error(err))
	}
}

func reverse(messages []chat.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
