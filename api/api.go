// Package api exposes the knowledge engine over HTTP: graph upserts and
// extraction submission on the write side, cross-session context, search and
// pattern queries on the read side.
package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/ingest"
	"github.com/loomery/weft/pkg/patterns"
	"github.com/loomery/weft/pkg/retrieval"
)

// Server is the HTTP server for the weft system
type Server struct {
	config    Config
	ingestor  *ingest.Service
	retriever *retrieval.Orchestrator
	miner     *patterns.Miner
	logger    *zap.Logger
	app       *fiber.App
}

// NewServer creates a new API server. The services are injected to allow
// sharing with other components.
func NewServer(config Config, ingestor *ingest.Service, retriever *retrieval.Orchestrator, miner *patterns.Miner, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		ingestor:  ingestor,
		retriever: retriever,
		miner:     miner,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/users", s.handleUpsertUser)
	v1.Post("/nodes", s.handleUpsertNode)
	v1.Post("/sessions", s.handleUpsertSession)
	v1.Post("/activities", s.handleUpsertActivity)
	v1.Post("/activities/:id/entities", s.handleSubmitEntities)
	v1.Post("/activities/:id/concepts", s.handleSubmitConcepts)
	v1.Get("/context/:userID/:nodeID", s.handleContext)
	v1.Get("/search/entities", s.handleSearchEntities)
	v1.Get("/search/concepts", s.handleSearchConcepts)
	v1.Get("/patterns/:userID", s.handlePatterns)
	v1.Get("/health", s.handleHealth)

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
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
