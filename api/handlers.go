package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/ingest"
	"github.com/loomery/weft/pkg/patterns"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UpsertResponse reports whether a session or activity vertex was newly
// created by an idempotent upsert.
type UpsertResponse struct {
	Created bool `json:"created"`
}

// ExtractionRequest is the body of an extraction submission. SessionID and
// UserID are optional passthroughs stamped onto the persisted event.
type ExtractionRequest struct {
	SessionID string                 `json:"session_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Items     []ingest.ExtractedItem `json:"items"`
}

// writeErr maps domain errors onto HTTP statuses.
func (s *Server) writeErr(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case graph.IsValidation(err):
		status = fiber.StatusBadRequest
	case graph.IsTimeout(err):
		status = fiber.StatusGatewayTimeout
	case graph.IsConnection(err):
		status = fiber.StatusBadGateway
	}

	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleUpsertUser(c *fiber.Ctx) error {
	var user graph.User
	if err := c.BodyParser(&user); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := s.ingestor.UpsertUser(c.Context(), user); err != nil {
		return s.writeErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleUpsertNode(c *fiber.Ctx) error {
	var node graph.TimelineNode
	if err := c.BodyParser(&node); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := s.ingestor.UpsertNode(c.Context(), node); err != nil {
		return s.writeErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleUpsertSession(c *fiber.Ctx) error {
	var session graph.Session
	if err := c.BodyParser(&session); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	created, err := s.ingestor.UpsertSession(c.Context(), session)
	if err != nil {
		return s.writeErr(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(UpsertResponse{Created: created})
}

func (s *Server) handleUpsertActivity(c *fiber.Ctx) error {
	var activity graph.Activity
	if err := c.BodyParser(&activity); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	created, err := s.ingestor.UpsertActivity(c.Context(), activity)
	if err != nil {
		return s.writeErr(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(UpsertResponse{Created: created})
}

func (s *Server) handleSubmitEntities(c *fiber.Ctx) error {
	return s.submitExtractions(c, ingest.KindEntity)
}

func (s *Server) handleSubmitConcepts(c *fiber.Ctx) error {
	return s.submitExtractions(c, ingest.KindConcept)
}

// submitExtractions queues the batch for async resolution. 202 means
// accepted, not resolved; resolution is idempotent so clients may resubmit.
func (s *Server) submitExtractions(c *fiber.Ctx, kind string) error {
	activityID := c.Params("id")

	var req ExtractionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	for i := range req.Items {
		req.Items[i].Kind = kind
	}

	err := s.ingestor.SubmitExtractions(c.Context(), ingest.Batch{
		ActivityID: activityID,
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		Items:      req.Items,
	})
	if err != nil {
		return s.writeErr(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"queued": len(req.Items),
	})
}

func (s *Server) handleContext(c *fiber.Ctx) error {
	userID := c.Params("userID")
	nodeID := c.Params("nodeID")

	opts := s.config.RetrievalDefaults
	if v := c.Query("lookback_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid lookback_days"})
		}
		opts.LookbackDays = n
	}
	if v := c.Query("max_depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid max_depth"})
		}
		opts.MaxDepth = n
	}
	if v := c.Query("min_frequency"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid min_frequency"})
		}
		opts.MinFrequency = n
	}
	if v := c.Query("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid top_k"})
		}
		opts.TopK = n
	}

	bundle, err := s.retriever.CrossSessionContext(c.Context(), userID, nodeID, opts)
	if err != nil {
		return s.writeErr(c, err)
	}
	return c.JSON(bundle)
}

func (s *Server) handleSearchEntities(c *fiber.Ctx) error {
	return s.search(c, true)
}

func (s *Server) handleSearchConcepts(c *fiber.Ctx) error {
	return s.search(c, false)
}

func (s *Server) search(c *fiber.Ctx, entities bool) error {
	query := c.Query("q")
	topK := c.QueryInt("top_k")

	var err error
	var results any
	if entities {
		results, err = s.retriever.SearchEntities(c.Context(), query, topK)
	} else {
		results, err = s.retriever.SearchConcepts(c.Context(), query, topK)
	}
	if err != nil {
		return s.writeErr(c, err)
	}
	return c.JSON(fiber.Map{"results": results})
}

func (s *Server) handlePatterns(c *fiber.Ctx) error {
	userID := c.Params("userID")

	now := time.Now().UTC()
	timeRange := patterns.TimeRange{From: now.AddDate(0, 0, -30), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid from, want RFC3339"})
		}
		timeRange.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid to, want RFC3339"})
		}
		timeRange.To = t
	}

	minFrequency := c.QueryInt("min_frequency", 1)

	mined, err := s.miner.WorkflowPatterns(c.Context(), userID, timeRange, minFrequency)
	if err != nil {
		return s.writeErr(c, err)
	}
	return c.JSON(fiber.Map{"patterns": mined})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	health := s.retriever.HealthCheck(c.Context())

	status := fiber.StatusOK
	if health.GraphStore != "ok" || health.VectorStore != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(health)
}
