// Package tools defines the tools offered to the model and decodes the
// model's tool_use blocks into typed commands.
package tools

import (
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// ToolSpec describes a tool (sent to the model in every request).
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// ToolParameter defines a parameter for a tool.
type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// InputSchema renders the parameters as a JSON schema object.
func (s ToolSpec) InputSchema() (properties map[string]interface{}, required []string) {
	properties = make(map[string]interface{}, len(s.Parameters))
	required = make([]string, 0)
	for _, param := range s.Parameters {
		prop := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}
	return properties, required
}

// NewMoveCursorToolSpec creates the definition of the move_cursor tool.
func NewMoveCursorToolSpec() ToolSpec {
	return ToolSpec{
		Name:        string(models.CommandMoveCursor),
		Description: "Move the cursor on the phone screen by a number of pixels in one direction. The red circle and crosshair in the screenshot mark the current cursor position.",
		Parameters: []ToolParameter{
			{
				Name:        "direction",
				Type:        "string",
				Description: "The direction to move the cursor",
				Required:    true,
				Enum:        []string{"up", "down", "left", "right"},
			},
			{
				Name:        "distance",
				Type:        "integer",
				Description: "The number of pixels to move the cursor",
				Required:    true,
			},
		},
	}
}

// NewClickCursorToolSpec creates the definition of the click_cursor tool.
func NewClickCursorToolSpec() ToolSpec {
	return ToolSpec{
		Name:        string(models.CommandClickCursor),
		Description: "Click at the current cursor position.",
		Parameters:  []ToolParameter{},
	}
}

// NewDoneToolSpec creates the definition of the done tool.
func NewDoneToolSpec() ToolSpec {
	return ToolSpec{
		Name:        string(models.CommandDone),
		Description: "Finish the task. Call this when the task has been completed or cannot be completed.",
		Parameters: []ToolParameter{
			{
				Name:        "status",
				Type:        "string",
				Description: "Whether the task was completed or failed",
				Required:    true,
				Enum:        []string{"completed", "failed"},
			},
			{
				Name:        "reason",
				Type:        "string",
				Description: "A short explanation of the outcome",
				Required:    true,
			},
		},
	}
}

// DefaultToolSpecs returns the fixed tool set in the order it is sent.
func DefaultToolSpecs() []ToolSpec {
	return []ToolSpec{
		NewMoveCursorToolSpec(),
		NewClickCursorToolSpec(),
		NewDoneToolSpec(),
	}
}
