package models

import "fmt"

// CommandType is the variant tag of a Command.
type CommandType string

const (
	CommandMoveCursor  CommandType = "move_cursor"
	CommandClickCursor CommandType = "click_cursor"
	CommandDone        CommandType = "done"
)

// Direction names a cursor movement direction.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Valid reports whether d is one of the four known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	}
	return false
}

// Offset returns the screen-space displacement for moving distance pixels
// in direction d. Screen Y grows downward, so "up" is negative Y.
func (d Direction) Offset(distance int) Point {
	switch d {
	case DirectionUp:
		return Point{Y: -distance}
	case DirectionDown:
		return Point{Y: distance}
	case DirectionLeft:
		return Point{X: -distance}
	case DirectionRight:
		return Point{X: distance}
	}
	return Point{}
}

// DoneStatus is the outcome a model reports with the done tool.
type DoneStatus string

const (
	DoneCompleted DoneStatus = "completed"
	DoneFailed    DoneStatus = "failed"
)

// Command is a model-issued action. Different fields are populated
// depending on Type.
//
//	MoveCursor:  Direction, Distance
//	ClickCursor: (none)
//	Done:        Status, Reason
//
// ToolUseID always carries the id of the tool_use block that produced it.
// Invalid is set when the tool was recognized but its input could not be
// decoded; such a command is answered with an error result and never acts.
type Command struct {
	Type      CommandType `json:"type"`
	ToolUseID string      `json:"tool_use_id"`

	Direction Direction `json:"direction,omitempty"`
	Distance  int       `json:"distance,omitempty"`

	Status DoneStatus `json:"status,omitempty"`
	Reason string     `json:"reason,omitempty"`

	Invalid string `json:"invalid,omitempty"`
}

// MoveCursor returns a MoveCursor command.
func MoveCursor(toolUseID string, direction Direction, distance int) Command {
	return Command{Type: CommandMoveCursor, ToolUseID: toolUseID, Direction: direction, Distance: distance}
}

// ClickCursor returns a ClickCursor command.
func ClickCursor(toolUseID string) Command {
	return Command{Type: CommandClickCursor, ToolUseID: toolUseID}
}

// Done returns a Done command.
func Done(toolUseID string, status DoneStatus, reason string) Command {
	return Command{Type: CommandDone, ToolUseID: toolUseID, Status: status, Reason: reason}
}

// InvalidCommand returns a command of type t whose input failed to decode.
func InvalidCommand(toolUseID string, t CommandType, problem string) Command {
	return Command{Type: t, ToolUseID: toolUseID, Invalid: problem}
}

// String renders the command for logs and status display.
func (c Command) String() string {
	if c.Invalid != "" {
		return fmt.Sprintf("%s(invalid: %s)", c.Type, c.Invalid)
	}
	switch c.Type {
	case CommandMoveCursor:
		return fmt.Sprintf("move_cursor(%s, %d)", c.Direction, c.Distance)
	case CommandClickCursor:
		return "click_cursor()"
	case CommandDone:
		return fmt.Sprintf("done(%s, %q)", c.Status, c.Reason)
	default:
		return string(c.Type)
	}
}

// ModelReply is the parsed result of one model call.
type ModelReply struct {
	// Message is the concatenation of the reply's text blocks.
	Message    string    `json:"message"`
	Commands   []Command `json:"commands"`
	StopReason string    `json:"stop_reason,omitempty"`
	// RawContent is the reply's content in order, replayed verbatim as the
	// assistant message. It includes tool uses that did not map to a Command.
	RawContent []ContentBlock `json:"raw_content"`
}

// FirstDone returns the first well-formed Done command in the reply, if any.
func (r ModelReply) FirstDone() (Command, bool) {
	for _, c := range r.Commands {
		if c.Type == CommandDone && c.Invalid == "" {
			return c, true
		}
	}
	return Command{}, false
}

// UnmappedToolUses returns the tool_use blocks in RawContent that produced
// no Command, which happens only when the tool name is unknown.
func (r ModelReply) UnmappedToolUses() []ContentBlock {
	mapped := make(map[string]bool, len(r.Commands))
	for _, c := range r.Commands {
		mapped[c.ToolUseID] = true
	}
	var out []ContentBlock
	for _, b := range r.RawContent {
		if b.Type == BlockToolUse && !mapped[b.ToolUseID] {
			out = append(out, b)
		}
	}
	return out
}
