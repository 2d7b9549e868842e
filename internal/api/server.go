// Package api provides the local HTTP control API for task sessions.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/session"
	"github.com/mfateev/temporal-mirror-agent/internal/version"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

// Sessions is the part of session.Controller the API serves.
type Sessions interface {
	Start(ctx context.Context, task string, opts session.StartOptions) (string, error)
	Pause(ctx context.Context) (models.State, error)
	Resume(ctx context.Context) (models.State, error)
	Cancel(ctx context.Context) (models.State, error)
	Status(ctx context.Context) (workflow.SessionStatus, error)
	Conversation(ctx context.Context) ([]models.Message, error)
}

// StartRequest is the body of POST /session.
type StartRequest struct {
	Task   string `json:"task"`
	APIKey string `json:"api_key,omitempty"`
}

// StartResponse is returned when a session starts.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// ControlResponse is returned by the pause, resume and cancel endpoints.
type ControlResponse struct {
	State models.State `json:"state"`
}

// Handler handles HTTP requests.
type Handler struct {
	sessions Sessions
	logger   *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(sessions Sessions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/session", h.StartSession)
	e.GET("/session", h.GetStatus)
	e.POST("/session/pause", h.PauseSession)
	e.POST("/session/resume", h.ResumeSession)
	e.POST("/session/cancel", h.CancelSession)
	e.GET("/session/conversation", h.GetConversation)

	e.GET("/health", h.Health)
}

// NewServer returns an echo server with the API routes and standard middleware.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			h.logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))
	h.RegisterRoutes(e)
	return e
}

// StartSession starts a new task session.
// POST /session
func (h *Handler) StartSession(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Task) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "task is required"})
	}

	id, err := h.sessions.Start(c.Request().Context(), req.Task, session.StartOptions{APIKey: req.APIKey})
	if err != nil {
		return h.fail(c, "start session", err)
	}
	return c.JSON(http.StatusCreated, StartResponse{SessionID: id})
}

// GetStatus returns the status of the current or most recent session.
// GET /session
func (h *Handler) GetStatus(c echo.Context) error {
	status, err := h.sessions.Status(c.Request().Context())
	if err != nil {
		return h.fail(c, "get status", err)
	}
	return c.JSON(http.StatusOK, status)
}

// GetConversation returns the session conversation. Image blocks carry
// screenshot references, not image data.
// GET /session/conversation
func (h *Handler) GetConversation(c echo.Context) error {
	messages, err := h.sessions.Conversation(c.Request().Context())
	if err != nil {
		return h.fail(c, "get conversation", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

// PauseSession pauses the running session.
// POST /session/pause
func (h *Handler) PauseSession(c echo.Context) error {
	return h.control(c, "pause", h.sessions.Pause)
}

// ResumeSession resumes a paused session.
// POST /session/resume
func (h *Handler) ResumeSession(c echo.Context) error {
	return h.control(c, "resume", h.sessions.Resume)
}

// CancelSession cancels the live session.
// POST /session/cancel
func (h *Handler) CancelSession(c echo.Context) error {
	return h.control(c, "cancel", h.sessions.Cancel)
}

func (h *Handler) control(c echo.Context, op string, fn func(context.Context) (models.State, error)) error {
	state, err := fn(c.Request().Context())
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(http.StatusOK, ControlResponse{State: state})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.String(),
	})
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, session.ErrAlreadyRunning):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrNotRunning):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrEmptyTask):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to " + op})
}
