// Package session is the client side of a task session: it starts the
// session workflow, enforces the single-active-session rule, and forwards
// pause, resume, cancel and status requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/credentials"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

const (
	// TaskQueue is the Temporal task queue served by the worker.
	TaskQueue = "mirror-agent"

	// WorkflowID is shared by every session so that at most one runs at a time.
	WorkflowID = "mirror-agent-session"

	// WorkflowName is the registered workflow type.
	WorkflowName = "TaskSessionWorkflow"
)

var (
	// ErrAlreadyRunning is returned when a task is started while another
	// session is still live.
	ErrAlreadyRunning = errors.New("a task session is already running")
	// ErrNotRunning is returned when there is no session to control.
	ErrNotRunning = errors.New("no task session is running")
	// ErrEmptyTask is returned for a blank task description.
	ErrEmptyTask = errors.New("task description must not be empty")
)

// WorkflowClient is the subset of client.Client the controller needs.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	UpdateWorkflow(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
	GetWorkflow(ctx context.Context, workflowID string, runID string) client.WorkflowRun
}

// Controller drives task sessions through Temporal.
type Controller struct {
	client      WorkflowClient
	credentials credentials.Store
	config      models.SessionConfig
	logger      *zap.Logger
	timeout     time.Duration
}

// NewController creates a Controller. creds may be nil to skip the
// credential pre-check.
func NewController(c WorkflowClient, creds credentials.Store, cfg models.SessionConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client:      c,
		credentials: creds,
		config:      cfg,
		logger:      logger,
		timeout:     30 * time.Second,
	}
}

// StartOptions customizes one Start call.
type StartOptions struct {
	// APIKey, when set, is saved to the credential store before starting.
	APIKey string
}

// Start launches a session for task. It fails with ErrAlreadyRunning while
// another session is live, leaving that session untouched.
func (c *Controller) Start(ctx context.Context, task string, opts StartOptions) (string, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return "", ErrEmptyTask
	}
	if err := c.ensureCredential(ctx, opts.APIKey); err != nil {
		return "", err
	}

	sessionID := uuid.NewString()
	input := workflow.SessionInput{
		SessionID: sessionID,
		Task:      task,
		Config:    c.config,
	}
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       WorkflowID,
		TaskQueue:                                TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, WorkflowName, input)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return "", ErrAlreadyRunning
		}
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	c.logger.Info("session started",
		zap.String("session_id", sessionID),
		zap.String("run_id", run.GetRunID()),
		zap.String("task", task))
	return sessionID, nil
}

func (c *Controller) ensureCredential(ctx context.Context, apiKey string) error {
	if c.credentials == nil {
		return nil
	}
	name := c.config.CredentialName
	if name == "" {
		name = credentials.DefaultAPIKeyName
	}
	if apiKey != "" {
		if err := c.credentials.Set(ctx, name, apiKey); err != nil {
			return fmt.Errorf("save credential: %w", err)
		}
	}
	if _, err := c.credentials.Get(ctx, name); err != nil {
		return fmt.Errorf("credential %q unavailable: %w", name, err)
	}
	return nil
}

// Pause asks the running session to pause.
func (c *Controller) Pause(ctx context.Context) (models.State, error) {
	return c.control(ctx, workflow.UpdatePause)
}

// Resume continues a paused session.
func (c *Controller) Resume(ctx context.Context) (models.State, error) {
	return c.control(ctx, workflow.UpdateResume)
}

// Cancel ends the live session as cancelled.
func (c *Controller) Cancel(ctx context.Context) (models.State, error) {
	return c.control(ctx, workflow.UpdateCancel)
}

func (c *Controller) control(ctx context.Context, update string) (models.State, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	handle, err := c.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   WorkflowID,
		UpdateName:   update,
		Args:         []interface{}{workflow.ControlRequest{}},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return "", mapNotFound(err)
	}
	var resp workflow.ControlResponse
	if err := handle.Get(ctx, &resp); err != nil {
		return "", mapNotFound(err)
	}
	c.logger.Info("session control applied", zap.String("update", update), zap.String("state", string(resp.State)))
	return resp.State, nil
}

// Status returns the status of the current or most recent session.
func (c *Controller) Status(ctx context.Context) (workflow.SessionStatus, error) {
	var status workflow.SessionStatus
	err := c.query(ctx, workflow.QueryGetStatus, &status)
	return status, err
}

// Conversation returns the conversation of the current or most recent session.
func (c *Controller) Conversation(ctx context.Context) ([]models.Message, error) {
	var messages []models.Message
	err := c.query(ctx, workflow.QueryGetConversation, &messages)
	return messages, err
}

func (c *Controller) query(ctx context.Context, name string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.QueryWorkflow(ctx, WorkflowID, "", name)
	if err != nil {
		return mapNotFound(err)
	}
	return resp.Get(out)
}

// Wait blocks until the session ends and returns its result.
func (c *Controller) Wait(ctx context.Context) (workflow.SessionResult, error) {
	var result workflow.SessionResult
	if err := c.client.GetWorkflow(ctx, WorkflowID, "").Get(ctx, &result); err != nil {
		return workflow.SessionResult{}, mapNotFound(err)
	}
	return result, nil
}

func mapNotFound(err error) error {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return ErrNotRunning
	}
	return err
}
