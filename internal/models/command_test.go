package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirection_Offset(t *testing.T) {
	tests := []struct {
		dir  Direction
		want Point
	}{
		{DirectionUp, Point{X: 0, Y: -30}},
		{DirectionDown, Point{X: 0, Y: 30}},
		{DirectionLeft, Point{X: -30, Y: 0}},
		{DirectionRight, Point{X: 30, Y: 0}},
		{Direction("sideways"), Point{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dir.Offset(30))
		})
	}
}

func TestDirection_Valid(t *testing.T) {
	assert.True(t, DirectionUp.Valid())
	assert.True(t, DirectionRight.Valid())
	assert.False(t, Direction("UP").Valid())
	assert.False(t, Direction("").Valid())
}

func TestModelReply_FirstDoneWins(t *testing.T) {
	reply := ModelReply{
		Commands: []Command{
			MoveCursor("t1", DirectionUp, 10),
			Done("t2", DoneCompleted, "first"),
			Done("t3", DoneFailed, "second"),
		},
	}
	done, ok := reply.FirstDone()
	assert.True(t, ok)
	assert.Equal(t, "t2", done.ToolUseID)
	assert.Equal(t, "first", done.Reason)

	_, ok = ModelReply{Commands: []Command{ClickCursor("t1")}}.FirstDone()
	assert.False(t, ok)
}

func TestModelReply_UnmappedToolUses(t *testing.T) {
	reply := ModelReply{
		Commands: []Command{ClickCursor("t1")},
		RawContent: []ContentBlock{
			TextBlock("thinking"),
			ToolUseBlock("t1", "click_cursor", json.RawMessage(`{}`)),
			ToolUseBlock("t2", "swipe", json.RawMessage(`{"dir":"up"}`)),
		},
	}
	unmapped := reply.UnmappedToolUses()
	assert.Len(t, unmapped, 1)
	assert.Equal(t, "t2", unmapped[0].ToolUseID)
	assert.Equal(t, "swipe", unmapped[0].ToolName)
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "move_cursor(left, 25)", MoveCursor("a", DirectionLeft, 25).String())
	assert.Equal(t, "click_cursor()", ClickCursor("b").String())
	assert.Equal(t, `done(completed, "ok")`, Done("c", DoneCompleted, "ok").String())
	assert.Equal(t, "move_cursor(invalid: bad distance)", InvalidCommand("d", CommandMoveCursor, "bad distance").String())
}

func TestModelReply_FirstDoneSkipsInvalid(t *testing.T) {
	reply := ModelReply{Commands: []Command{
		InvalidCommand("t1", CommandDone, "not an object"),
		Done("t2", DoneCompleted, "ok"),
	}}
	done, ok := reply.FirstDone()
	require.True(t, ok)
	assert.Equal(t, "t2", done.ToolUseID)

	_, ok = ModelReply{Commands: reply.Commands[:1]}.FirstDone()
	assert.False(t, ok)
}

func TestMessage_Accessors(t *testing.T) {
	msg := Message{
		Role: RoleUser,
		Content: []ContentBlock{
			ToolResultBlock("t1", "moved", false),
			ImageBlock("ref-1", "image/jpeg"),
		},
	}
	assert.Len(t, msg.ToolResults(), 1)
	assert.Empty(t, msg.ToolUses())
	assert.Equal(t, []string{"ref-1"}, msg.ImageRefs())
}
