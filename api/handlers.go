package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/novelassist/vectord/pkg/vector"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the uniform success body for mutations.
type StatusResponse struct {
	Status string `json:"status"`
}

// EmbeddingRequest stores one document.
type EmbeddingRequest struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
	Embedding  []float32      `json:"embedding"`
}

// BatchEmbeddingRequest stores many documents via parallel arrays.
type BatchEmbeddingRequest struct {
	Collection string           `json:"collection"`
	IDs        []string         `json:"ids"`
	Texts      []string         `json:"texts"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

// QueryRequest runs a similarity search.
type QueryRequest struct {
	Collection string         `json:"collection"`
	Text       string         `json:"text"`
	Limit      int            `json:"limit"`
	Filter     map[string]any `json:"filter"`
	Embedding  []float32      `json:"embedding"`
}

// QueryResponse carries the matches in backend ranking order.
type QueryResponse struct {
	Results []vector.Match `json:"results"`
	Count   int            `json:"count"`
}

// DeleteRequest removes documents by ids or by filter, never both.
type DeleteRequest struct {
	Collection string         `json:"collection"`
	IDs        []string       `json:"ids"`
	Filter     map[string]any `json:"filter"`
}

// handlePing reports the server and worker state.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"worker": s.service.State().String(),
	})
}

func (s *Server) handleListCollections(c *fiber.Ctx) error {
	names, err := s.service.ListCollections(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"collections": names})
}

func (s *Server) handleCreateEmbedding(c *fiber.Ctx) error {
	var req EmbeddingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	err := s.service.CreateEmbedding(c.Context(), req.Collection, vector.Document{
		ID:        req.ID,
		Text:      req.Text,
		Metadata:  req.Metadata,
		Embedding: req.Embedding,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(StatusResponse{Status: "success"})
}

func (s *Server) handleCreateEmbeddingBatch(c *fiber.Ctx) error {
	var req BatchEmbeddingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	err := s.service.CreateEmbeddingBatch(c.Context(), req.Collection, vector.Batch{
		IDs:        req.IDs,
		Texts:      req.Texts,
		Metadatas:  req.Metadatas,
		Embeddings: req.Embeddings,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(StatusResponse{Status: "success"})
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	matches, err := s.service.QuerySimilar(c.Context(), req.Collection, vector.Query{
		Text:      req.Text,
		Limit:     req.Limit,
		Filter:    req.Filter,
		Embedding: req.Embedding,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	if matches == nil {
		matches = []vector.Match{}
	}
	return c.JSON(QueryResponse{Results: matches, Count: len(matches)})
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	var req DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	var err error
	switch {
	case len(req.IDs) > 0 && len(req.Filter) > 0:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "provide ids or a filter, not both"})
	case len(req.IDs) > 0:
		err = s.service.DeleteByIDs(c.Context(), req.Collection, req.IDs)
	case len(req.Filter) > 0:
		err = s.service.DeleteByFilter(c.Context(), req.Collection, req.Filter)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "provide ids or a filter"})
	}
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(StatusResponse{Status: "success"})
}

func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := s.service.DeleteCollection(c.Context(), name); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(StatusResponse{Status: "success"})
}

// handleShutdown tears the worker down and asks the serve loop to exit. The
// response is written before the server itself stops.
func (s *Server) handleShutdown(c *fiber.Ctx) error {
	if err := s.service.Stop(c.Context()); err != nil {
		return s.respondError(c, err)
	}
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	return c.JSON(StatusResponse{Status: "shutting down"})
}

// respondError maps client errors onto HTTP statuses: bad arguments are the
// caller's fault, worker rejections and unreachable workers are upstream
// failures, everything else is ours.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	var backendErr *vector.BackendError

	switch {
	case errors.Is(err, vector.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.As(err, &backendErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":           "worker rejected the request",
			"upstream_status": backendErr.StatusCode,
			"upstream_body":   backendErr.Body,
		})
	case errors.Is(err, vector.ErrTransport),
		errors.Is(err, vector.ErrSpawn),
		errors.Is(err, vector.ErrReadinessTimeout),
		errors.Is(err, vector.ErrUnexpectedExit):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}
