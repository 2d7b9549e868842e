package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/device"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

type failingInput struct {
	device.Recorder
}

func (f *failingInput) WarpPointer(context.Context, models.Point) error {
	return errors.New("no display")
}

func TestExecute_MoveUpdatesCursor(t *testing.T) {
	rec := device.NewRecorder(nil)
	log := &audit.Recorder{}
	e := New(rec, log, nil, "s1", models.Point{X: 100, Y: 100})

	res, err := e.Execute(context.Background(), models.MoveCursor("t1", models.DirectionRight, 50))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Moved cursor right by 50 pixels to (150, 100)", res.Text)
	assert.Equal(t, models.Point{X: 150, Y: 100}, e.Cursor())

	res, err = e.Execute(context.Background(), models.MoveCursor("t2", models.DirectionUp, 30))
	require.NoError(t, err)
	assert.Equal(t, models.Point{X: 150, Y: 70}, res.Cursor)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, device.EventWarp, events[1].Kind)
	assert.Equal(t, models.Point{X: 150, Y: 70}, events[1].Point)

	cmds := log.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "s1", cmds[0].SessionID)
	assert.Equal(t, models.CommandMoveCursor, cmds[0].Command.Type)
	assert.Contains(t, cmds[0].Result, "right by 50")
}

func TestExecute_ClickAtTrackedPosition(t *testing.T) {
	rec := device.NewRecorder(nil)
	e := New(rec, nil, nil, "s1", models.Point{X: 12, Y: 34})

	res, err := e.Execute(context.Background(), models.ClickCursor("t1"))
	require.NoError(t, err)
	assert.Equal(t, "Clicked at (12, 34)", res.Text)

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, device.EventWarp, events[0].Kind)
	assert.Equal(t, device.EventPress, events[1].Kind)
	assert.Equal(t, device.EventRelease, events[2].Kind)
	for _, ev := range events {
		assert.Equal(t, models.Point{X: 12, Y: 34}, ev.Point)
	}
}

func TestExecute_InvalidInputIsResultText(t *testing.T) {
	rec := device.NewRecorder(nil)
	log := &audit.Recorder{}
	e := New(rec, log, nil, "s1", models.Point{X: 7, Y: 8})

	cmd := models.InvalidCommand("t1", models.CommandMoveCursor, "distance is a string")
	res, err := e.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Invalid move_cursor input: distance is a string", res.Text)
	assert.Equal(t, models.KindInvalidDirection, res.Kind)
	assert.Equal(t, models.Point{X: 7, Y: 8}, res.Cursor)
	assert.Empty(t, rec.Events())
	assert.Len(t, log.Commands(), 1)

	res, err = e.Execute(context.Background(), models.InvalidCommand("t2", models.CommandDone, "not an object"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "Invalid done input")
}

func TestExecute_InvalidDirectionIsResultText(t *testing.T) {
	rec := device.NewRecorder(nil)
	log := &audit.Recorder{}
	e := New(rec, log, nil, "s1", models.Point{X: 1, Y: 1})

	res, err := e.Execute(context.Background(), models.MoveCursor("t1", models.Direction("diagonal"), 10))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, models.KindInvalidDirection, res.Kind)
	assert.Contains(t, res.Text, "diagonal")
	assert.Empty(t, rec.Events())
	assert.Equal(t, models.Point{X: 1, Y: 1}, e.Cursor())
	assert.Len(t, log.Commands(), 1, "invalid commands are still audited")

	res, err = e.Execute(context.Background(), models.MoveCursor("t2", models.DirectionLeft, 0))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestExecute_DoneIsNotExecutable(t *testing.T) {
	e := New(device.NewRecorder(nil), nil, nil, "s1", models.Point{})
	_, err := e.Execute(context.Background(), models.Done("t1", models.DoneCompleted, "ok"))
	assert.ErrorIs(t, err, ErrNotExecutable)
}

func TestExecute_InputFailure(t *testing.T) {
	log := &audit.Recorder{}
	e := New(&failingInput{}, log, nil, "s1", models.Point{X: 5, Y: 5})

	res, err := e.Execute(context.Background(), models.MoveCursor("t1", models.DirectionDown, 5))
	require.Error(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, models.Point{X: 5, Y: 5}, e.Cursor())
	assert.Len(t, log.Commands(), 1)
}

func TestExecute_AuditFailureDoesNotAbort(t *testing.T) {
	log := &audit.Recorder{Err: errors.New("disk full")}
	e := New(device.NewRecorder(nil), log, nil, "s1", models.Point{})

	res, err := e.Execute(context.Background(), models.ClickCursor("t1"))
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
