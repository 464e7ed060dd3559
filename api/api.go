package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/novelassist/vectord/pkg/vector"
)

// VectorService is the slice of the vector client the server forwards to.
// *vector.Client satisfies it.
type VectorService interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateEmbedding(ctx context.Context, collection string, doc vector.Document) error
	CreateEmbeddingBatch(ctx context.Context, collection string, batch vector.Batch) error
	QuerySimilar(ctx context.Context, collection string, q vector.Query) ([]vector.Match, error)
	DeleteByIDs(ctx context.Context, collection string, ids []string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	DeleteCollection(ctx context.Context, name string) error
	Stop(ctx context.Context) error
	State() vector.State
}

// Server is the HTTP boundary in front of the vector client.
type Server struct {
	config  Config
	service VectorService
	logger  *slog.Logger
	app     *fiber.App

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewServer creates a new API server. The service is injected so the serve
// command can share the client between the server and its own teardown path.
func NewServer(config Config, service VectorService, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:     config,
		service:    service,
		logger:     logger,
		app:        app,
		shutdownCh: make(chan struct{}),
	}

	app.Use(s.requestLogger)

	app.Get("/ping", s.handlePing)
	app.Get("/collections", s.handleListCollections)
	app.Post("/embeddings", s.handleCreateEmbedding)
	app.Post("/embeddings/batch", s.handleCreateEmbeddingBatch)
	app.Post("/query", s.handleQuery)
	app.Post("/delete", s.handleDelete)
	app.Delete("/collections/:name", s.handleDeleteCollection)
	app.Post("/shutdown", s.handleShutdown)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShutdownRequested is closed when a client asked the service to exit via
// POST /shutdown. The serve command listens on it alongside OS signals.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("X-Request-ID", requestID)

	start := time.Now()
	err := c.Next()

	s.logger.Info("request",
		"id", requestID,
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}
