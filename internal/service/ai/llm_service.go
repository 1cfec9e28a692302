package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/config"
	"github.com/pulse-ai/pulse/internal/model/chat"
	"github.com/pulse-ai/pulse/internal/model/mood"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
)

var ErrEmptyReply = errors.New("model returned an empty reply")

// Service wraps the companion and insight chains around one chat model.
type Service struct {
	chatModel    model.ChatModel
	chain        compose.Runnable[map[string]any, *schema.Message]
	insightChain compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
	logger       *zap.Logger
}

// NewService creates the Ark chat model from cfg and compiles the chains.
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.HistoryLimit, logger)
}

// NewServiceWithModel compiles the chains around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, historyLimit int, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 6
	}

	replyTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(replyTemplate)
	chain.AppendChatModel(chatModel)
	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	insightTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(insightSystemPrompt),
		schema.UserMessage("{moods}"),
	)
	insight := compose.NewChain[map[string]any, *schema.Message]()
	insight.AppendChatTemplate(insightTemplate)
	insight.AppendChatModel(chatModel)
	insightRunnable, err := insight.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile insight chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		chain:        runnable,
		insightChain: insightRunnable,
		historyLimit: historyLimit,
		logger:       logger.Named("ai"),
	}, nil
}

// GetChatModel exposes the underlying model for other chains.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

// Reply generates the companion's answer. history is oldest first and does
// not include userMessage.
func (s *Service) Reply(ctx context.Context, history []chat.Message, userMessage string, guidance *emotionservice.Guidance) (string, error) {
	input := map[string]any{
		"system":  buildSystemPrompt(guidance),
		"history": s.buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run chat chain: %w", err)
	}
	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", ErrEmptyReply
	}

	s.logger.Debug("generated reply", zap.Int("history", len(history)), zap.Int("length", len(content)))
	return content, nil
}

// Summarize writes a short insight about the given snapshots (newest first).
func (s *Service) Summarize(ctx context.Context, moods []mood.Snapshot) (string, error) {
	response, err := s.insightChain.Invoke(ctx, map[string]any{"moods": formatMoods(moods)})
	if err != nil {
		return "", fmt.Errorf("run insight chain: %w", err)
	}
	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
