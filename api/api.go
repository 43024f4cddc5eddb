package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/worker"
)

// Server is the HTTP API server for the flightdesk assistant.
type Server struct {
	config Config
	pool   *worker.Pool
	store  conversation.Store
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The pool and store are injected so
// they can be shared with other components and swapped in tests.
func NewServer(config Config, pool *worker.Pool, store conversation.Store, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		pool:   pool,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/messages", s.handlePostMessage)
	app.Post("/v1/messages/async", s.handlePostMessageAsync)
	app.Get("/v1/conversations/:user_id", s.handleGetConversation)
	app.Delete("/v1/conversations/:user_id", s.handleDeleteConversation)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
