package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/llm/completion"
	"github.com/flightdeskco/flightdesk/pkg/worker"
)

// ErrorResponse is the JSON error body returned by all failing endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageRequest is the inbound message payload.
type MessageRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Text     string `json:"text"`
}

// ConversationResponse contains a user's stored message log.
type ConversationResponse struct {
	UserID   string `json:"user_id"`
	Messages any    `json:"messages"`
	Count    int    `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handlePostMessage runs one assistant exchange synchronously and returns
// the final answer. The job still goes through the worker pool so that
// messages for the same user are processed in order.
func (s *Server) handlePostMessage(c *fiber.Ctx) error {
	req, err := parseMessageRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	done := make(chan worker.Outcome, 1)
	ok := s.pool.Enqueue(worker.Job{
		UserID:   req.UserID,
		UserName: req.UserName,
		Text:     req.Text,
		Done:     done,
	})
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "server busy, try again later"})
	}

	select {
	case outcome := <-done:
		if outcome.Err != nil {
			status := fiber.StatusInternalServerError
			if completion.IsTransport(outcome.Err) {
				status = fiber.StatusBadGateway
			}
			s.logger.Error("exchange failed",
				zap.String("user_id", req.UserID),
				zap.Error(outcome.Err),
			)
			return c.Status(status).JSON(ErrorResponse{Error: "assistant temporarily unavailable"})
		}
		return c.JSON(outcome.Reply)
	case <-c.Context().Done():
		return c.Context().Err()
	}
}

// handlePostMessageAsync enqueues an exchange without waiting for it.
func (s *Server) handlePostMessageAsync(c *fiber.Ctx) error {
	req, err := parseMessageRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	ok := s.pool.Enqueue(worker.Job{
		UserID:   req.UserID,
		UserName: req.UserName,
		Text:     req.Text,
	})
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "server busy, try again later"})
	}

	return c.Status(fiber.StatusAccepted).JSON(map[string]any{"queued": true})
}

// handleGetConversation returns a user's message log and refreshes its TTL.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id parameter required"})
	}

	messages, err := s.store.Get(c.Context(), userID)
	if err != nil {
		var nf conversation.ErrNotFound
		if errors.As(err, &nf) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
		}
		s.logger.Error("failed to load conversation",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load conversation"})
	}

	if err := s.store.Touch(c.Context(), userID); err != nil {
		s.logger.Warn("failed to refresh conversation TTL",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return c.JSON(ConversationResponse{
		UserID:   userID,
		Messages: messages,
		Count:    len(messages),
	})
}

// handleDeleteConversation removes a user's conversation. Deleting an
// absent conversation is a no-op.
func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id parameter required"})
	}

	if err := s.store.Delete(c.Context(), userID); err != nil {
		s.logger.Error("failed to delete conversation",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to delete conversation"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func parseMessageRequest(c *fiber.Ctx) (*MessageRequest, error) {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	if req.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	if req.Text == "" {
		return nil, errors.New("text is required")
	}
	return &req, nil
}
