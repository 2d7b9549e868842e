package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

// assign copies v into ptr through JSON, like a data converter would.
func assign(v, ptr interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, ptr)
}

type fakeRun struct {
	result interface{}
	err    error
}

func (r *fakeRun) GetID() string    { return WorkflowID }
func (r *fakeRun) GetRunID() string { return "run-1" }
func (r *fakeRun) Get(_ context.Context, valuePtr interface{}) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.result, valuePtr)
}
func (r *fakeRun) GetWithOptions(ctx context.Context, valuePtr interface{}, _ client.WorkflowRunGetOptions) error {
	return r.Get(ctx, valuePtr)
}

type fakeUpdate struct {
	result interface{}
}

func (u *fakeUpdate) WorkflowID() string { return WorkflowID }
func (u *fakeUpdate) RunID() string      { return "run-1" }
func (u *fakeUpdate) UpdateID() string   { return "update-1" }
func (u *fakeUpdate) Get(_ context.Context, valuePtr interface{}) error {
	return assign(u.result, valuePtr)
}

type fakeValue struct{ v interface{} }

func (f fakeValue) HasValue() bool { return f.v != nil }
func (f fakeValue) Get(valuePtr interface{}) error {
	return assign(f.v, valuePtr)
}

// fakeClient models one workflow ID that is either running or not.
type fakeClient struct {
	running bool
	state   models.State
	starts  []workflow.SessionInput
	opts    []client.StartWorkflowOptions
	updates []string
	result  workflow.SessionResult
}

func (f *fakeClient) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, _ interface{}, args ...interface{}) (client.WorkflowRun, error) {
	if f.running {
		return nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "run-0")
	}
	f.running = true
	f.state = models.StateIdle
	f.opts = append(f.opts, options)
	f.starts = append(f.starts, args[0].(workflow.SessionInput))
	return &fakeRun{}, nil
}

func (f *fakeClient) UpdateWorkflow(_ context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error) {
	if !f.running {
		return nil, serviceerror.NewNotFound("workflow execution already completed")
	}
	f.updates = append(f.updates, options.UpdateName)
	switch options.UpdateName {
	case workflow.UpdatePause:
		f.state = models.StatePaused
	case workflow.UpdateResume:
		f.state = models.StateRunning
	case workflow.UpdateCancel:
		f.state = models.StateCancelled
		f.running = false
	}
	return &fakeUpdate{result: workflow.ControlResponse{State: f.state}}, nil
}

func (f *fakeClient) QueryWorkflow(_ context.Context, workflowID, _ string, queryType string, _ ...interface{}) (converter.EncodedValue, error) {
	if len(f.starts) == 0 {
		return nil, serviceerror.NewNotFound("workflow not found")
	}
	switch queryType {
	case workflow.QueryGetStatus:
		return fakeValue{workflow.SessionStatus{Task: f.starts[len(f.starts)-1].Task, State: f.state}}, nil
	case workflow.QueryGetConversation:
		return fakeValue{[]models.Message{{Role: models.RoleUser, Content: []models.ContentBlock{models.TextBlock("hi")}}}}, nil
	}
	return nil, errors.New("unknown query")
}

func (f *fakeClient) GetWorkflow(_ context.Context, _, _ string) client.WorkflowRun {
	if len(f.starts) == 0 {
		return &fakeRun{err: serviceerror.NewNotFound("workflow not found")}
	}
	return &fakeRun{result: f.result}
}

type memStore map[string]string

func (m memStore) Get(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m memStore) Set(_ context.Context, name, secret string) error {
	m[name] = secret
	return nil
}

func newTestController(fc *fakeClient, creds memStore) *Controller {
	return NewController(fc, creds, models.DefaultSessionConfig(), nil)
}

func TestStart(t *testing.T) {
	fc := &fakeClient{}
	c := newTestController(fc, memStore{"anthropic_api_key": "sk"})

	id, err := c.Start(context.Background(), "  open settings ", StartOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, fc.starts, 1)
	assert.Equal(t, "open settings", fc.starts[0].Task)
	assert.Equal(t, id, fc.starts[0].SessionID)
	assert.Equal(t, WorkflowID, fc.opts[0].ID)
	assert.Equal(t, TaskQueue, fc.opts[0].TaskQueue)
	assert.True(t, fc.opts[0].WorkflowExecutionErrorWhenAlreadyStarted)
}

func TestStart_RejectsWhileRunning(t *testing.T) {
	fc := &fakeClient{}
	c := newTestController(fc, memStore{"anthropic_api_key": "sk"})

	_, err := c.Start(context.Background(), "open settings", StartOptions{})
	require.NoError(t, err)
	_, err = c.Pause(context.Background())
	require.NoError(t, err)

	_, err = c.Start(context.Background(), "open mail", StartOptions{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	require.Len(t, fc.starts, 1)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open settings", status.Task)
	assert.Equal(t, models.StatePaused, status.State)
}

func TestStart_AfterCancelStartsFresh(t *testing.T) {
	fc := &fakeClient{}
	c := newTestController(fc, memStore{"anthropic_api_key": "sk"})
	ctx := context.Background()

	first, err := c.Start(ctx, "open settings", StartOptions{})
	require.NoError(t, err)
	state, err := c.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, state)

	second, err := c.Start(ctx, "open mail", StartOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestStart_EmptyTask(t *testing.T) {
	c := newTestController(&fakeClient{}, memStore{})
	_, err := c.Start(context.Background(), "   ", StartOptions{})
	assert.ErrorIs(t, err, ErrEmptyTask)
}

func TestStart_MissingCredential(t *testing.T) {
	fc := &fakeClient{}
	c := newTestController(fc, memStore{})

	_, err := c.Start(context.Background(), "open settings", StartOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic_api_key")
	assert.Empty(t, fc.starts)
}

func TestStart_SavesProvidedKey(t *testing.T) {
	creds := memStore{}
	c := newTestController(&fakeClient{}, creds)

	_, err := c.Start(context.Background(), "open settings", StartOptions{APIKey: "sk-new"})
	require.NoError(t, err)
	assert.Equal(t, "sk-new", creds["anthropic_api_key"])
}

func TestControl_NotRunning(t *testing.T) {
	c := newTestController(&fakeClient{}, memStore{})

	_, err := c.Pause(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = c.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = c.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestPauseResume(t *testing.T) {
	fc := &fakeClient{}
	c := newTestController(fc, memStore{"anthropic_api_key": "sk"})
	ctx := context.Background()

	_, err := c.Start(ctx, "open settings", StartOptions{})
	require.NoError(t, err)

	state, err := c.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatePaused, state)

	state, err = c.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, state)
	assert.Equal(t, []string{workflow.UpdatePause, workflow.UpdateResume}, fc.updates)
}

func TestConversationAndWait(t *testing.T) {
	fc := &fakeClient{result: workflow.SessionResult{State: models.StateCompleted, Reason: "settings opened"}}
	c := newTestController(fc, memStore{"anthropic_api_key": "sk"})
	ctx := context.Background()

	_, err := c.Start(ctx, "open settings", StartOptions{})
	require.NoError(t, err)

	msgs, err := c.Conversation(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content[0].Text)

	result, err := c.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, result.State)
	assert.Equal(t, "settings opened", result.Reason)
}
