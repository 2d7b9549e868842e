package activities

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/credentials"
	"github.com/mfateev/temporal-mirror-agent/internal/device"
	"github.com/mfateev/temporal-mirror-agent/internal/imaging"
	"github.com/mfateev/temporal-mirror-agent/internal/llm"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/screenshots"
)

// fakeCapture serves a solid grey frame for a window at rect.
type fakeCapture struct {
	rect      models.Rect
	size      image.Point
	findErr   error
	activated int
}

func (f *fakeCapture) FindTargetWindow(_ context.Context, title string) (device.WindowHandle, error) {
	if f.findErr != nil {
		return device.WindowHandle{}, f.findErr
	}
	return device.WindowHandle{ID: "0x1", Title: title}, nil
}

func (f *fakeCapture) Capture(_ context.Context, _ device.WindowHandle) (device.Frame, error) {
	img := image.NewRGBA(image.Rect(0, 0, f.size.X, f.size.Y))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 128}}, image.Point{}, draw.Src)
	return device.Frame{Image: img, Rect: f.rect}, nil
}

func (f *fakeCapture) Activate(_ context.Context, _ device.WindowHandle) error {
	f.activated++
	return nil
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 180 && g>>8 < 90 && b>>8 < 90
}

func TestCaptureScreenshot_DefaultsCursorToWindowCentre(t *testing.T) {
	capture := &fakeCapture{
		rect: models.Rect{X: 100, Y: 50, Width: 100, Height: 200},
		size: image.Pt(200, 400),
	}
	store := screenshots.NewMemoryStore()
	acts := NewDeviceActivities(capture, device.NewRecorder(nil), store, nil, nil, nil)

	out, err := acts.CaptureScreenshot(context.Background(), CaptureInput{
		SessionID:   "s1",
		WindowTitle: "iPhone Mirroring",
		Codec:       models.DefaultCodecConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Point{X: 150, Y: 150}, out.Cursor)
	assert.Equal(t, capture.rect, out.WindowRect)
	assert.True(t, out.WithinCeiling)
	assert.Equal(t, 90, out.Quality)
	assert.Equal(t, 1, capture.activated)

	data, err := store.Get(context.Background(), out.ScreenshotRef)
	require.NoError(t, err)
	assert.Equal(t, out.Bytes, len(data))

	img, err := imaging.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 400), img.Bounds().Size())
	// Window centre maps to the image centre at 2x scale.
	assert.True(t, isRed(img.At(100, 200)), "marker at cursor")
	assert.False(t, isRed(img.At(10, 10)), "background untouched")
}

func TestCaptureScreenshot_UsesTrackedCursor(t *testing.T) {
	capture := &fakeCapture{
		rect: models.Rect{Width: 300, Height: 300},
		size: image.Pt(300, 300),
	}
	store := screenshots.NewMemoryStore()
	acts := NewDeviceActivities(capture, device.NewRecorder(nil), store, nil, nil, nil)

	out, err := acts.CaptureScreenshot(context.Background(), CaptureInput{
		SessionID: "s1",
		Cursor:    &models.Point{X: 60, Y: 240},
	})
	require.NoError(t, err)
	assert.Equal(t, models.Point{X: 60, Y: 240}, out.Cursor)

	data, err := store.Get(context.Background(), out.ScreenshotRef)
	require.NoError(t, err)
	img, err := imaging.Decode(data)
	require.NoError(t, err)
	assert.True(t, isRed(img.At(60, 240)))
	assert.False(t, isRed(img.At(150, 150)))
}

func TestCaptureScreenshot_WindowMissing(t *testing.T) {
	capture := &fakeCapture{findErr: device.ErrWindowNotFound}
	acts := NewDeviceActivities(capture, device.NewRecorder(nil), screenshots.NewMemoryStore(), nil, nil, nil)

	_, err := acts.CaptureScreenshot(context.Background(), CaptureInput{SessionID: "s1", WindowTitle: "nope"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, models.KindCaptureUnavailable, models.KindOf(err))
}

func TestExecuteCommand_MoveAndClick(t *testing.T) {
	rec := device.NewRecorder(nil)
	log := &audit.Recorder{}
	acts := NewDeviceActivities(&fakeCapture{}, rec, screenshots.NewMemoryStore(), log, nil, nil)
	ctx := context.Background()

	res, err := acts.ExecuteCommand(ctx, ExecuteCommandInput{
		SessionID: "s1",
		Command:   models.MoveCursor("t1", models.DirectionUp, 30),
		Cursor:    models.Point{X: 100, Y: 100},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, models.Point{X: 100, Y: 70}, res.Cursor)

	res, err = acts.ExecuteCommand(ctx, ExecuteCommandInput{
		SessionID: "s1",
		Command:   models.ClickCursor("t2"),
		Cursor:    res.Cursor,
	})
	require.NoError(t, err)
	assert.Equal(t, "Clicked at (100, 70)", res.Text)

	events := rec.Events()
	require.Len(t, events, 4, "move warps; click warps, presses and releases")
	assert.Equal(t, device.EventWarp, events[0].Kind)
	assert.Equal(t, device.EventWarp, events[1].Kind)
	assert.Equal(t, device.EventPress, events[2].Kind)
	assert.Equal(t, device.EventRelease, events[3].Kind)
	assert.Equal(t, models.Point{X: 100, Y: 70}, events[2].Point)
	assert.Len(t, log.Commands(), 2)
}

func TestExecuteCommand_InvalidDirectionIsNotAnError(t *testing.T) {
	acts := NewDeviceActivities(&fakeCapture{}, device.NewRecorder(nil), screenshots.NewMemoryStore(), nil, nil, nil)

	res, err := acts.ExecuteCommand(context.Background(), ExecuteCommandInput{
		Command: models.MoveCursor("t1", models.Direction("sideways"), 10),
		Cursor:  models.Point{X: 5, Y: 5},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, models.KindInvalidDirection, res.Kind)
	assert.Equal(t, models.Point{X: 5, Y: 5}, res.Cursor)
}

type countingNotifier struct{ messages []string }

func (n *countingNotifier) Signal(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return errors.New("no speaker")
}

func TestAnnounceStart_IgnoresNotifierFailure(t *testing.T) {
	n := &countingNotifier{}
	acts := NewDeviceActivities(&fakeCapture{}, device.NewRecorder(nil), screenshots.NewMemoryStore(), nil, n, nil)

	require.NoError(t, acts.AnnounceStart(context.Background(), AnnounceInput{SessionID: "s1", Message: "taking control"}))
	assert.Equal(t, []string{"taking control"}, n.messages)
}

// stubGateway returns a fixed reply or error and records the last request.
type stubGateway struct {
	apiKey  string
	reply   models.ModelReply
	err     error
	request llm.Request
}

func (g *stubGateway) Send(_ context.Context, request llm.Request) (models.ModelReply, error) {
	g.request = request
	return g.reply, g.err
}

type mapStore map[string]string

func (m mapStore) Get(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", credentials.ErrCredentialNotFound
	}
	return v, nil
}

func (m mapStore) Set(_ context.Context, name, secret string) error {
	m[name] = secret
	return nil
}

func TestCallModel_UsesStoredCredential(t *testing.T) {
	gw := &stubGateway{reply: models.ModelReply{
		Message:  "done",
		Commands: []models.Command{models.Done("t1", models.DoneCompleted, "ok")},
	}}
	acts := NewModelActivities(mapStore{"anthropic_api_key": "sk-test"}, func(apiKey string) llm.Gateway {
		gw.apiKey = apiKey
		return gw
	}, nil)

	reply, err := acts.CallModel(context.Background(), ModelInput{
		SessionID:     "s1",
		Task:          "open settings",
		ScreenshotRef: "s1/ref.jpg",
		ModelConfig:   models.DefaultModelConfig(),
		MaxImages:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Message)
	assert.Equal(t, "sk-test", gw.apiKey)
	assert.Equal(t, "open settings", gw.request.Task)
	assert.Equal(t, 3, gw.request.MaxImages)
}

func TestCallModel_MissingCredential(t *testing.T) {
	acts := NewModelActivities(mapStore{}, func(string) llm.Gateway {
		t.Fatal("gateway must not be built without a key")
		return nil
	}, nil)

	_, err := acts.CallModel(context.Background(), ModelInput{SessionID: "s1"})
	require.Error(t, err)
	assert.Equal(t, models.KindGatewayRequestFailed, models.KindOf(err))
}

func TestCallModel_OverloadBecomesNonRetryable(t *testing.T) {
	gw := &stubGateway{err: models.NewGatewayOverloadedError("still overloaded")}
	acts := NewModelActivities(mapStore{"anthropic_api_key": "k"}, func(string) llm.Gateway { return gw }, nil)

	_, err := acts.CallModel(context.Background(), ModelInput{SessionID: "s1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, string(models.KindGatewayOverloaded), appErr.Type())
}
