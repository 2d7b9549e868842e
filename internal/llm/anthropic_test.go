package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/screenshots"
)

const overloadedBody = `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`

const invalidRequestBody = `{"type":"error","error":{"type":"invalid_request_error","message":"messages: roles must alternate"}}`

const toolUseResponse = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [
    {"type": "text", "text": "Settings is to the right. "},
    {"type": "text", "text": "Moving there."},
    {"type": "tool_use", "id": "toolu_01", "name": "move_cursor", "input": {"direction": "right", "distance": 50}},
    {"type": "tool_use", "id": "toolu_02", "name": "swipe", "input": {"direction": "up"}},
    {"type": "tool_use", "id": "toolu_03", "name": "click_cursor", "input": {}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 100, "output_tokens": 20}
}`

// fakeAPI serves scripted responses and records request bodies.
type fakeAPI struct {
	mu       sync.Mutex
	statuses []int
	bodies   []string
	requests []map[string]interface{}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var decoded map[string]interface{}
	_ = json.Unmarshal(raw, &decoded)

	f.mu.Lock()
	idx := len(f.requests)
	f.requests = append(f.requests, decoded)
	status, body := http.StatusOK, toolUseResponse
	if idx < len(f.statuses) {
		status, body = f.statuses[idx], f.bodies[idx]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestGateway(t *testing.T, api *fakeAPI, log audit.Logger) (*AnthropicGateway, *recordingSleeper, Request) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := screenshots.NewMemoryStore()
	ref, err := store.Put(context.Background(), "s1", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	sleeper := &recordingSleeper{}
	g := NewAnthropicGateway(AnthropicConfig{
		APIKey:  "sk-ant-api03-test-key-1234",
		BaseURL: srv.URL,
		Images:  store,
		Audit:   log,
		Sleep:   sleeper.sleep,
	})

	req := Request{
		SessionID:   "s1",
		Task:        "open settings",
		ModelConfig: models.DefaultModelConfig(),
		Conversation: []models.Message{{
			Role: models.RoleUser,
			Content: []models.ContentBlock{
				models.TextBlock("open settings"),
				models.ImageBlock(ref, "image/jpeg"),
			},
		}},
		ScreenshotRef: ref,
	}
	return g, sleeper, req
}

func TestSend_ParsesReply(t *testing.T) {
	api := &fakeAPI{}
	g, sleeper, req := newTestGateway(t, api, nil)

	reply, err := g.Send(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Settings is to the right. Moving there.", reply.Message)
	assert.Equal(t, "tool_use", reply.StopReason)
	require.Len(t, reply.Commands, 2, "unknown tool is dropped")
	assert.Equal(t, models.MoveCursor("toolu_01", models.DirectionRight, 50), reply.Commands[0])
	assert.Equal(t, models.ClickCursor("toolu_03"), reply.Commands[1])

	require.Len(t, reply.RawContent, 5)
	assert.Equal(t, models.BlockToolUse, reply.RawContent[3].Type)
	assert.Equal(t, "swipe", reply.RawContent[3].ToolName)
	assert.JSONEq(t, `{"direction":"right","distance":50}`, string(reply.RawContent[2].Input))

	unmapped := reply.UnmappedToolUses()
	require.Len(t, unmapped, 1)
	assert.Equal(t, "toolu_02", unmapped[0].ToolUseID)
	assert.Empty(t, sleeper.delays)
}

func TestSend_MalformedMoveIsKept(t *testing.T) {
	api := &fakeAPI{
		statuses: []int{http.StatusOK},
		bodies: []string{`{
  "id": "msg_02",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [
    {"type": "tool_use", "id": "toolu_10", "name": "move_cursor", "input": {"direction": "right", "distance": "50"}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 100, "output_tokens": 20}
}`},
	}
	g, _, req := newTestGateway(t, api, nil)

	reply, err := g.Send(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, reply.Commands, 1)
	assert.Equal(t, models.CommandMoveCursor, reply.Commands[0].Type)
	assert.Equal(t, "toolu_10", reply.Commands[0].ToolUseID)
	assert.NotEmpty(t, reply.Commands[0].Invalid)
	assert.Empty(t, reply.UnmappedToolUses())
}

func TestSend_RequestShape(t *testing.T) {
	api := &fakeAPI{}
	g, _, req := newTestGateway(t, api, nil)

	_, err := g.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, api.calls())

	body := api.requests[0]
	assert.Equal(t, "claude-3-5-sonnet-20241022", body["model"])
	assert.EqualValues(t, 1024, body["max_tokens"])
	assert.Contains(t, body, "temperature")
	assert.Contains(t, body, "system")

	toolDefs, ok := body["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, toolDefs, 3)
	var names []string
	for _, td := range toolDefs {
		def := td.(map[string]interface{})
		names = append(names, def["name"].(string))
		assert.Contains(t, def, "input_schema")
	}
	assert.Equal(t, []string{"move_cursor", "click_cursor", "done"}, names)

	messages := body["messages"].([]interface{})
	require.Len(t, messages, 1)
	content := messages[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 2)
	image := content[1].(map[string]interface{})
	assert.Equal(t, "image", image["type"])
	source := image["source"].(map[string]interface{})
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/jpeg", source["media_type"])
	assert.Equal(t, "/9j/", source["data"])
}

func TestSend_RetriesOverloadWithBackoff(t *testing.T) {
	api := &fakeAPI{
		statuses: []int{529, 529, 529},
		bodies:   []string{overloadedBody, overloadedBody, overloadedBody},
	}
	log := &audit.Recorder{}
	g, sleeper, req := newTestGateway(t, api, log)

	reply, err := g.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, reply.Commands, 2)
	assert.Equal(t, 4, api.calls())

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.delays)
	var total time.Duration
	for _, d := range sleeper.delays {
		total += d
	}
	assert.Equal(t, 7*time.Second, total)

	responses := log.Responses()
	require.Len(t, responses, 4)
	assert.Equal(t, models.KindGatewayOverloaded, responses[0].ErrorKind)
	assert.Empty(t, responses[3].Error)
}

func TestSend_OverloadExhausted(t *testing.T) {
	api := &fakeAPI{
		statuses: []int{529, 529, 529, 529},
		bodies:   []string{overloadedBody, overloadedBody, overloadedBody, overloadedBody},
	}
	g, sleeper, req := newTestGateway(t, api, nil)

	_, err := g.Send(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, models.KindGatewayOverloaded, models.KindOf(err))
	assert.Equal(t, 4, api.calls())
	assert.Len(t, sleeper.delays, 3)
}

func TestSend_OtherErrorsAreNotRetried(t *testing.T) {
	api := &fakeAPI{
		statuses: []int{http.StatusBadRequest},
		bodies:   []string{invalidRequestBody},
	}
	g, sleeper, req := newTestGateway(t, api, nil)

	_, err := g.Send(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, models.KindGatewayRequestFailed, models.KindOf(err))
	assert.Equal(t, 1, api.calls())
	assert.Empty(t, sleeper.delays)
}

func TestSend_MissingScreenshotFailsBeforeCalling(t *testing.T) {
	api := &fakeAPI{}
	g, _, req := newTestGateway(t, api, nil)
	req.Conversation[0].Content[1].ImageRef = "s1/missing.jpg"

	_, err := g.Send(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, models.KindGatewayRequestFailed, models.KindOf(err))
	assert.Equal(t, 0, api.calls())
}

func TestSend_AuditRedactsAndNeverAborts(t *testing.T) {
	api := &fakeAPI{}
	log := &audit.Recorder{Err: errors.New("audit sink down")}
	g, _, req := newTestGateway(t, api, log)

	_, err := g.Send(context.Background(), req)
	require.NoError(t, err)

	requests := log.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "sk-ant-...1234", requests[0].RedactedCredential)
	assert.Equal(t, "open settings", requests[0].Task)
	assert.Equal(t, 3, requests[0].ScreenshotBytes)
	assert.NotContains(t, requests[0].RedactedCredential, "test-key")
}

func TestImagesToKeep(t *testing.T) {
	conv := []models.Message{
		{Role: models.RoleUser, Content: []models.ContentBlock{models.ImageBlock("a", "")}},
		{Role: models.RoleAssistant},
		{Role: models.RoleUser, Content: []models.ContentBlock{models.ImageBlock("b", "")}},
		{Role: models.RoleAssistant},
		{Role: models.RoleUser, Content: []models.ContentBlock{models.ImageBlock("c", "")}},
	}
	assert.Equal(t, map[string]bool{"b": true, "c": true}, imagesToKeep(conv, 2))
	assert.Len(t, imagesToKeep(conv, 0), 3)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}
