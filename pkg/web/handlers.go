package web

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-pocketbench/pkg/hub"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
)

const (
	defaultOutcomeLimit = 20
	maxOutcomeLimit     = 500
)

// handleStatus returns the current watcher state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleOutcomes returns recent outcomes, newest first
func (s *Server) handleOutcomes(c *fiber.Ctx) error {
	limit := defaultOutcomeLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		limit = min(n, maxOutcomeLimit)
	}

	if s.history != nil {
		recs, err := s.history.Recent(c.UserContext(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(recs)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.recent))
	out := make([]pipeline.Event, 0, n)
	for i := len(s.recent) - 1; i >= len(s.recent)-n; i-- {
		out = append(out, s.recent[i])
	}
	return c.JSON(out)
}

// handleStats returns aggregate shot statistics
func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "history not enabled"})
	}
	st, err := s.history.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(st)
}

// handleConfig returns the loaded configuration
func (s *Server) handleConfig(c *fiber.Ctx) error {
	if s.settings == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.settings)
}

// handleGetTurn returns the live turn-detection parameters
func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	if s.tuning == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "tuning not enabled"})
	}
	return c.JSON(s.tuning.JSON())
}

// handleUpdateTurn changes the parameters used from the next turn on
func (s *Server) handleUpdateTurn(c *fiber.Ctx) error {
	if s.tuning == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "tuning not enabled"})
	}

	var params map[string]interface{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := s.tuning.Update(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info("turn tuning updated", "config", s.tuning.Config(), "preset", s.tuning.Preset())
	return c.JSON(s.tuning.JSON())
}

// handleEventsWS streams pipeline events. The current status is sent first.
// ?types=outcome,fallback limits the stream to those event types.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.Status()); err != nil {
		return
	}
	var topics []string
	if types := c.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			topics = append(topics, strings.TrimSpace(t))
		}
	}
	hub.NewClient(s.events, c, topics...).Run()
}
