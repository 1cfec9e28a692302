package mood

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/blob"
	"github.com/pulse-ai/pulse/internal/events"
	"github.com/pulse-ai/pulse/internal/model/chat"
	"github.com/pulse-ai/pulse/internal/model/mood"
	"github.com/pulse-ai/pulse/internal/service/ai"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
	"github.com/pulse-ai/pulse/internal/service/transcribe"
	"github.com/pulse-ai/pulse/internal/store"
)

var (
	ErrEmptySubmission  = errors.New("either text or a file is required")
	ErrUnsupportedMedia = errors.New("only audio or image files are supported")
	ErrSnapshotNotFound = errors.New("mood snapshot not found")
	ErrEmptyTranscript  = errors.New("transcribed text is required")
)

// InsightWindow is how many recent snapshots an insight considers.
const InsightWindow = 20

// Detector classifies free text.
type Detector interface {
	Detect(ctx context.Context, history []chat.Message, text string) emotionservice.Guidance
}

// Summarizer writes an insight for a set of snapshots.
type Summarizer interface {
	Summarize(ctx context.Context, moods []mood.Snapshot) (string, error)
}

// Queue accepts audio snapshots for transcription.
type Queue interface {
	Enqueue(job transcribe.Job) bool
}

// Publisher pushes live events to a user.
type Publisher interface {
	Publish(userID, eventType string, data any)
}

// Deps are the collaborators of Service. Summarizer, Queue and Events may be nil.
type Deps struct {
	Repo       store.MoodRepository
	Blobs      blob.Store
	Detector   Detector
	Summarizer Summarizer
	Queue      Queue
	Events     Publisher
	Logger     *zap.Logger
}

// Submission is one mood check-in. Media is optional.
type Submission struct {
	Text      string
	Media     io.Reader
	MediaName string
	MediaType string
	MediaSize int64
}

// Service ingests mood snapshots and derives insights from them.
type Service struct {
	repo       store.MoodRepository
	blobs      blob.Store
	detector   Detector
	summarizer Summarizer
	queue      Queue
	events     Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires a mood service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       deps.Repo,
		blobs:      deps.Blobs,
		detector:   deps.Detector,
		summarizer: deps.Summarizer,
		queue:      deps.Queue,
		events:     deps.Events,
		logger:     logger.Named("mood"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var mediaTypesByExt = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".webm": "audio/webm",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
}

// contentTypeFor prefers an explicit content type and falls back to the extension.
func contentTypeFor(contentType, filename string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if known, ok := mediaTypesByExt[ext]; ok {
		return known
	}
	return mime.TypeByExtension(ext)
}

// MediaSource maps a content type or file name to a snapshot source.
func MediaSource(contentType, filename string) (string, bool) {
	ct := contentTypeFor(contentType, filename)
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return mood.SourceAudio, true
	case strings.HasPrefix(ct, "image/"):
		return mood.SourceImage, true
	default:
		return "", false
	}
}

// Submit stores a snapshot, detects its emotion and returns a supportive reply.
func (s *Service) Submit(ctx context.Context, userID string, sub Submission) (mood.Result, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" && sub.Media == nil {
		return mood.Result{}, ErrEmptySubmission
	}

	snapshot := mood.Snapshot{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    mood.SourceText,
		RawText:   text,
		CreatedAt: s.now(),
	}

	if sub.Media != nil {
		source, ok := MediaSource(sub.MediaType, sub.MediaName)
		if !ok {
			return mood.Result{}, ErrUnsupportedMedia
		}
		contentType := contentTypeFor(sub.MediaType, sub.MediaName)

		key := fmt.Sprintf("%s/%s%s", userID, snapshot.ID, strings.ToLower(filepath.Ext(sub.MediaName)))
		if err := s.blobs.Put(ctx, key, sub.Media, sub.MediaSize, contentType); err != nil {
			return mood.Result{}, fmt.Errorf("store media: %w", err)
		}
		snapshot.Source = source
		snapshot.MediaKey = key
		snapshot.MediaType = contentType
	}

	guidance := s.detector.Detect(ctx, nil, text)
	confidence := guidance.Decision.Confidence
	snapshot.DetectedEmotion = string(guidance.Decision.Emotion)
	snapshot.Confidence = &confidence

	if err := s.repo.CreateSnapshot(ctx, snapshot); err != nil {
		return mood.Result{}, fmt.Errorf("save snapshot: %w", err)
	}

	if snapshot.Source == mood.SourceAudio && s.queue != nil {
		s.queue.Enqueue(transcribe.Job{SnapshotID: snapshot.ID, UserID: userID, MediaKey: snapshot.MediaKey})
	}
	if s.events != nil {
		s.events.Publish(userID, events.TypeMoodCreated, snapshot)
	}

	s.logger.Info("mood snapshot stored",
		zap.String("snapshot_id", snapshot.ID),
		zap.String("source", snapshot.Source),
		zap.String("emotion", snapshot.DetectedEmotion),
		zap.String("detector", guidance.Source))

	return mood.Result{
		Snapshot:         snapshot,
		AssistantMessage: ai.EmpathyMessage(snapshot.DetectedEmotion),
	}, nil
}

// History returns the user's snapshots newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]mood.Snapshot, error) {
	snapshots, err := s.repo.ListSnapshots(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

// Insight summarizes the most recent InsightWindow snapshots. When moods is
// empty the user's stored history is used.
func (s *Service) Insight(ctx context.Context, userID string, moods []mood.Snapshot) (string, error) {
	if len(moods) == 0 {
		stored, err := s.History(ctx, userID, InsightWindow)
		if err != nil {
			return "", err
		}
		moods = stored
	}
	moods = recent(moods, InsightWindow)
	if len(moods) == 0 {
		return "No mood check-ins yet. Share how you feel to start seeing patterns.", nil
	}

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, moods)
		if err == nil {
			return summary, nil
		}
		s.logger.Warn("insight generation failed, using heuristic", zap.Error(err))
	}
	return HeuristicInsight(moods), nil
}

// AttachTranscript records the speech-to-text result of an audio snapshot.
// An empty userID skips the ownership check.
func (s *Service) AttachTranscript(ctx context.Context, userID, snapshotID, text, engine string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTranscript
	}

	snapshot, err := s.repo.GetSnapshot(ctx, snapshotID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSnapshotNotFound
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if userID != "" && snapshot.UserID != userID {
		return ErrSnapshotNotFound
	}

	if engine == "" {
		engine = "external"
	}
	transcript := mood.Transcript{
		SnapshotID: snapshotID,
		Text:       text,
		Engine:     engine,
		CreatedAt:  s.now(),
	}
	if err := s.repo.SaveTranscript(ctx, transcript); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return err
		}
		return fmt.Errorf("save transcript: %w", err)
	}

	if s.events != nil {
		s.events.Publish(snapshot.UserID, events.TypeMoodTranscribed, transcript)
	}
	s.logger.Info("transcript attached", zap.String("snapshot_id", snapshotID), zap.String("engine", engine))
	return nil
}

// Transcript returns the transcript of one of the user's snapshots.
func (s *Service) Transcript(ctx context.Context, userID, snapshotID string) (mood.Transcript, error) {
	snapshot, err := s.repo.GetSnapshot(ctx, snapshotID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && snapshot.UserID != userID) {
		return mood.Transcript{}, ErrSnapshotNotFound
	}
	if err != nil {
		return mood.Transcript{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s.repo.GetTranscript(ctx, snapshotID)
}

func recent(moods []mood.Snapshot, n int) []mood.Snapshot {
	sorted := make([]mood.Snapshot, len(moods))
	copy(sorted, moods)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
