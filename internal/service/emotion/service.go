package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	analysis "github.com/pulse-ai/pulse/internal/analysis/emotion"
	"github.com/pulse-ai/pulse/internal/model/chat"
)

// Guidance sources.
const (
	SourceLLM      = "llm"
	SourceKeywords = "keywords"
)

// Config controls the classifier.
type Config struct {
	Enabled      bool
	HistoryLimit int
}

// Guidance is a detected emotion plus a tone hint for the reply.
type Guidance struct {
	Decision analysis.Decision
	Style    string
	Reason   string
	Source   string
}

// Service classifies text with the chat model and falls back to keyword rules.
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	fallback     func(text string) analysis.Decision
	historyLimit int
	logger       *zap.Logger
}

// NewService builds the classifier chain. A nil chatModel or a disabled config
// yields a keyword-only service.
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		fallback:     analysis.Analyze,
		historyLimit: historyLimit,
		logger:       logger,
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(emotionSystemPrompt),
		schema.UserMessage(emotionUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile emotion classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled reports whether the model classifier is active.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Detect classifies text given the preceding conversation (oldest first).
func (s *Service) Detect(ctx context.Context, history []chat.Message, text string) Guidance {
	if !s.Enabled() {
		return s.fallbackGuidance(text)
	}
	if strings.TrimSpace(text) == "" {
		return s.fallbackGuidance(text)
	}

	input := map[string]any{
		"history":      formatHistory(history, s.historyLimit),
		"user_message": strings.TrimSpace(text),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		s.logger.Warn("classifier invoke failed, using keywords", zap.Error(err))
		return s.fallbackGuidance(text)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallbackGuidance(text)
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		s.logger.Warn("classifier output unreadable, using keywords", zap.Error(err))
		return s.fallbackGuidance(text)
	}

	label, ok := analysis.Parse(result.Emotion)
	if !ok {
		return s.fallbackGuidance(text)
	}

	confidence := result.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	style := strings.TrimSpace(result.Style)
	if style == "" {
		style = defaultStyleByEmotion[label]
	}

	return Guidance{
		Decision: analysis.Decision{Emotion: label, Confidence: confidence, Score: 1},
		Style:    style,
		Reason:   strings.TrimSpace(result.Reason),
		Source:   SourceLLM,
	}
}

func (s *Service) fallbackGuidance(text string) Guidance {
	fallback := s.fallback
	if fallback == nil {
		fallback = analysis.Analyze
	}
	decision := fallback(text)
	style := defaultStyleByEmotion[decision.Emotion]
	if style == "" {
		style = "Keep a natural, friendly tone."
	}
	return Guidance{
		Decision: decision,
		Style:    style,
		Reason:   "keyword match",
		Source:   SourceKeywords,
	}
}

// parseClassifierOutput accepts a JSON object or a bare label word.
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		if _, ok := analysis.Parse(trimmed); ok {
			return &classifierPayload{Emotion: trimmed}, nil
		}
		return nil, errors.New("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func formatHistory(messages []chat.Message, limit int) string {
	if len(messages) == 0 {
		return "No earlier messages."
	}
	if limit < 1 {
		limit = 1
	}
	start := len(messages) - limit
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := "User"
		if msg.Role == chat.RoleAssistant {
			role = "Pulse"
		}
		lines = append(lines, role+": "+content)
	}
	if len(lines) == 0 {
		return "No earlier messages."
	}
	return strings.Join(lines, "\n")
}

type classifierPayload struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Style      string  `json:"style"`
	Reason     string  `json:"reason"`
}

const emotionSystemPrompt = "You are an emotion detector for a wellbeing companion. Read the recent conversation and the newest user message and decide how the user feels right now.\n" +
	"Reply with a single JSON object and nothing else. Fields: emotion (one of happy, sad, anxious, angry, calm, tired, neutral), confidence (0 to 1), style (one sentence on the tone the reply should take), reason (a short explanation)."

const emotionUserPrompt = "Recent conversation:\n{history}\n\nNewest user message:\n{user_message}"

var defaultStyleByEmotion = map[analysis.Label]string{
	analysis.Neutral: "Stay warm and clear, and invite the user to share more.",
	analysis.Calm:    "Match the calm, affirm what is going well.",
	analysis.Happy:   "Be light and encouraging, celebrate with the user.",
	analysis.Sad:     "Be gentle and validating, offer comfort before suggestions.",
	analysis.Angry:   "Stay steady, acknowledge the frustration, then help it settle.",
	analysis.Anxious: "Slow the pace, offer grounding such as a breathing exercise.",
	analysis.Tired:   "Keep it short and soft, suggest rest.",
}
