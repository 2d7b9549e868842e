package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

type moveCursorInput struct {
	Direction string  `json:"direction"`
	Distance  float64 `json:"distance"`
}

type doneInput struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Decode maps a tool_use block to a Command.
//
// Known tools are decoded leniently. A missing or unrecognized direction is
// carried through so the executor can report it back to the model, and
// input that does not decode at all yields a command marked Invalid rather
// than an error. Only unknown tool names return ErrUnknownTool. A nil
// logger discards warnings.
func Decode(toolUseID, name string, input json.RawMessage, logger *zap.Logger) (models.Command, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch models.CommandType(name) {
	case models.CommandMoveCursor:
		var in moveCursorInput
		if err := unmarshalInput(input, &in); err != nil {
			return models.InvalidCommand(toolUseID, models.CommandMoveCursor, err.Error()), nil
		}
		return models.MoveCursor(toolUseID, models.Direction(in.Direction), int(math.Round(in.Distance))), nil

	case models.CommandClickCursor:
		return models.ClickCursor(toolUseID), nil

	case models.CommandDone:
		var in doneInput
		if err := unmarshalInput(input, &in); err != nil {
			return models.InvalidCommand(toolUseID, models.CommandDone, err.Error()), nil
		}
		status := models.DoneStatus(in.Status)
		if status != models.DoneCompleted && status != models.DoneFailed {
			logger.Warn("done has unrecognized status, treating as failed",
				zap.String("tool_use_id", toolUseID),
				zap.String("status", in.Status),
				zap.String("reason", in.Reason))
			status = models.DoneFailed
		}
		return models.Done(toolUseID, status, in.Reason), nil

	default:
		return models.Command{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func unmarshalInput(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		return nil
	}
	return json.Unmarshal(input, v)
}
