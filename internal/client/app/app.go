// Package app wires the client components together.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/client/chatflow"
	"github.com/pulse-ai/pulse/internal/client/config"
	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/handoff"
	"github.com/pulse-ai/pulse/internal/client/identity"
	"github.com/pulse-ai/pulse/internal/client/insight"
	"github.com/pulse-ai/pulse/internal/client/moodflow"
	"github.com/pulse-ai/pulse/internal/logging"
)

const syncTimeout = 10 * time.Second

// App holds one client session's components.
type App struct {
	Identity *identity.Provider
	Gateway  *gateway.Client
	Mailbox  *handoff.Mailbox[gateway.MoodResult]
	Mood     *moodflow.Flow
	Chat     *chatflow.Flow
	Insight  *insight.View

	logger      *zap.Logger
	stopListen  func()
	unsubscribe func()
}

// New builds the client. httpClient may be nil.
func New(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := identity.New(identity.Config{
		URL:         cfg.SupabaseURL,
		AnonKey:     cfg.SupabaseAnonKey,
		RedirectURL: cfg.RedirectURL,
		Store:       identity.NewFileStore(cfg.SessionPath),
		HTTPClient:  httpClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	opts := []gateway.Option{gateway.WithLogger(logger)}
	if httpClient != nil {
		opts = append(opts, gateway.WithHTTPClient(httpClient))
	}
	gw, err := gateway.New(cfg.APIBaseURL, provider, opts...)
	if err != nil {
		return nil, err
	}

	mailbox := handoff.New[gateway.MoodResult]()
	a := &App{
		Identity: provider,
		Gateway:  gw,
		Mailbox:  mailbox,
		Mood:     moodflow.New(gw, mailbox, logger),
		Chat:     chatflow.New(gw, logger),
		Insight:  insight.New(gw, logger),
		logger:   logger.Named("app"),
	}
	a.stopListen = a.Chat.Listen(mailbox)
	a.unsubscribe = provider.OnSessionChange(a.onSessionChange)
	return a, nil
}

// onSessionChange mirrors each new sign-in into the backend user table.
func (a *App) onSessionChange(event identity.Event, session *identity.Session) {
	if event != identity.SignedIn || session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	user, err := a.Gateway.SyncUser(ctx)
	if err != nil {
		a.logger.Warn("user sync failed", zap.String("user_id", session.User.ID), zap.Error(err))
		return
	}
	a.logger.Info("user synced", zap.String("user_id", user.ID))
}

// Close releases subscriptions.
func (a *App) Close() {
	a.unsubscribe()
	a.stopListen()
}

// NewLogger writes client logs to cfg.LogPath so they stay off the terminal.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return logging.New(logging.Options{Level: cfg.LogLevel, Format: "json", OutputPath: cfg.LogPath})
}
