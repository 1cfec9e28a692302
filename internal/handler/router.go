package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/events"
	"github.com/pulse-ai/pulse/internal/handler/chat"
	eventsHandler "github.com/pulse-ai/pulse/internal/handler/events"
	"github.com/pulse-ai/pulse/internal/handler/mood"
	"github.com/pulse-ai/pulse/internal/handler/users"
	"github.com/pulse-ai/pulse/internal/identity"
	middlewarePkg "github.com/pulse-ai/pulse/internal/middleware"
	chatService "github.com/pulse-ai/pulse/internal/service/chat"
	moodService "github.com/pulse-ai/pulse/internal/service/mood"
	userService "github.com/pulse-ai/pulse/internal/service/user"
	"github.com/pulse-ai/pulse/pkg/utils"
)

// Deps are the services exposed over HTTP.
type Deps struct {
	Verifier    identity.Verifier
	MoodSvc     *moodService.Service
	ChatSvc     *chatService.Service
	UserSvc     *userService.Service
	Hub         *events.Hub
	ServiceKey  string
	CORSOrigins []string
	Version     string
	Logger      *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.CORSOrigins))

	moodHandler := mood.New(deps.MoodSvc, logger)
	chatHandler := chat.New(deps.ChatSvc, logger)
	usersHandler := users.New(deps.UserSvc, logger)
	authenticate := middlewarePkg.Authenticate(deps.Verifier, false, logger)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "Pulse backend is running",
			"version": deps.Version,
		})
	})

	r.Group(func(authed chi.Router) {
		authed.Use(authenticate)
		moodHandler.RegisterHistoryRoutes(authed)
	})

	r.Route("/api", func(api chi.Router) {
		// Public routes
		chatHandler.RegisterPublicRoutes(api)
		usersHandler.RegisterRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(authenticate)
			moodHandler.RegisterRoutes(authed)
			chatHandler.RegisterRoutes(authed)
		})

		// Transcription worker callbacks
		api.Group(func(internal chi.Router) {
			internal.Use(middlewarePkg.RequireServiceKey(deps.ServiceKey))
			moodHandler.RegisterCallbackRoutes(internal)
		})

		if deps.Hub != nil {
			api.Group(func(ws chi.Router) {
				ws.Use(middlewarePkg.Authenticate(deps.Verifier, true, logger))
				eventsHandler.NewWebSocketHandler(deps.Hub, logger).RegisterRoutes(ws)
				eventsHandler.NewStreamHandler(deps.Hub, logger).RegisterRoutes(ws)
			})
		}
	})

	return r
}
