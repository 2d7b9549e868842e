package tools

import "errors"

// ErrUnknownTool is returned when a tool_use names a tool outside the fixed set.
var ErrUnknownTool = errors.New("unknown tool")
