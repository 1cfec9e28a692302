package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/blob"
	"github.com/pulse-ai/pulse/internal/config"
	"github.com/pulse-ai/pulse/internal/events"
	"github.com/pulse-ai/pulse/internal/handler"
	"github.com/pulse-ai/pulse/internal/identity"
	"github.com/pulse-ai/pulse/internal/logging"
	"github.com/pulse-ai/pulse/internal/model/user"
	"github.com/pulse-ai/pulse/internal/scheduler"
	"github.com/pulse-ai/pulse/internal/service/ai"
	"github.com/pulse-ai/pulse/internal/service/chat"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
	"github.com/pulse-ai/pulse/internal/service/mood"
	"github.com/pulse-ai/pulse/internal/service/recommend"
	"github.com/pulse-ai/pulse/internal/service/transcribe"
	userservice "github.com/pulse-ai/pulse/internal/service/user"
	"github.com/pulse-ai/pulse/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Debug("no .env file loaded, using system environment only", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	repo, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	blobs, err := openBlobs(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	verifier := newVerifier(cfg.Auth, logger)

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn("failed to initialize AI service, continuing without chat replies", zap.Error(err))
			aiService = nil
		} else {
			logger.Info("AI service initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("Ark credentials not configured, skipping AI initialization")
	}

	// Emotion detection: LLM classifier when enabled, keywords otherwise
	emotionCfg := emotionservice.Config{
		Enabled:      cfg.AI.EmotionLLMEnabled,
		HistoryLimit: cfg.AI.EmotionHistoryLimit,
	}
	var chatModelForEmotion model.ChatModel
	if aiService != nil {
		chatModelForEmotion = aiService.GetChatModel()
	}
	emotionSvc, err := emotionservice.NewService(ctx, chatModelForEmotion, emotionCfg, logger)
	if err != nil {
		return err
	}
	if emotionSvc.Enabled() {
		logger.Info("emotion classifier enabled")
	} else if emotionCfg.Enabled {
		logger.Warn("emotion classifier requested but chat model unavailable, using keywords")
	}

	hub := events.NewHub(16, logger.Named("events"))

	moodDeps := mood.Deps{
		Repo:     repo,
		Blobs:    blobs,
		Detector: emotionSvc,
		Events:   hub,
		Logger:   logger,
	}
	var (
		replier     chat.Replier
		recommender chat.Recommender
	)
	if aiService != nil {
		moodDeps.Summarizer = aiService
		replier = aiService
	}

	recommendSvc := recommend.NewService(cfg.Recommend, recommend.Options{}, logger)
	if recommendSvc.Enabled() {
		recommender = recommendSvc
		logger.Info("recommendations enabled")
	}

	var pool *transcribe.Pool
	if cfg.Transcribe.Enabled() {
		pool = transcribe.NewPool(
			transcribe.NewWhisper(cfg.Transcribe.OpenAIAPIKey, cfg.Transcribe.OpenAIBaseURL),
			blobs,
			cfg.Transcribe.Workers,
			cfg.Transcribe.QueueSize,
			logger,
		)
		moodDeps.Queue = pool
	} else {
		logger.Info("OPENAI_API_KEY not set, audio snapshots wait for external transcription")
	}

	moodSvc := mood.NewService(moodDeps)
	chatSvc := chat.NewService(repo, replier, emotionSvc, recommender, chat.Config{HistoryLimit: cfg.AI.HistoryLimit}, logger)
	userSvc := userservice.NewService(repo, verifier, logger)

	jobs := scheduler.New(time.Minute, logger)
	if pool != nil {
		pool.Start(ctx, moodSvc)
		err := jobs.Add(cfg.Transcribe.SweepSchedule, "transcription-sweep", func(jobCtx context.Context) {
			pool.Sweep(jobCtx, repo, cfg.Transcribe.SweepAge, cfg.Transcribe.QueueSize)
		})
		if err != nil {
			return err
		}
	}
	jobs.Start()

	router := handler.NewRouter(handler.Deps{
		Verifier:    verifier,
		MoodSvc:     moodSvc,
		ChatSvc:     chatSvc,
		UserSvc:     userSvc,
		Hub:         hub,
		ServiceKey:  cfg.Auth.ServiceKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     cfg.Server.Version,
		Logger:      logger,
	})

	addr, err := cfg.Server.ListenAddr()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Pulse backend listening", zap.String("addr", addr), zap.String("version", cfg.Server.Version))
	serveErr := runServer(ctx, srv)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	jobs.Stop(stopCtx)
	if pool != nil {
		pool.Wait()
	}
	return serveErr
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (store.Store, error) {
	if cfg.Driver == "postgres" {
		return store.NewPostgresStore(ctx, cfg.URL, logger)
	}
	logger.Warn("using in-memory store, data is lost on restart")
	return store.NewMemoryStore(), nil
}

func openBlobs(ctx context.Context, cfg config.StorageConfig) (blob.Store, error) {
	if cfg.Driver == "s3" {
		return blob.NewS3Store(ctx, blob.S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	}
	return blob.NewFSStore(cfg.Dir)
}

func newVerifier(cfg config.AuthConfig, logger *zap.Logger) identity.Verifier {
	if cfg.Mode == "dev" {
		logger.Warn("AUTH_MODE=dev accepts any bearer token", zap.String("user_id", cfg.DevUserID))
		return identity.DevVerifier{Identity: user.Identity{ID: cfg.DevUserID, Email: cfg.DevUserEmail}}
	}
	return identity.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey, &http.Client{Timeout: 10 * time.Second})
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
