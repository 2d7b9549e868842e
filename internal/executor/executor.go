// Package executor applies model commands to the device through the input
// synthesizer while tracking the cursor position.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/device"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// ErrNotExecutable is returned for commands the session handles itself.
var ErrNotExecutable = errors.New("command is not executable")

// Result is the outcome of one command, fed back to the model as a tool result.
type Result struct {
	Text    string           `json:"text"`
	IsError bool             `json:"is_error"`
	Kind    models.ErrorKind `json:"kind,omitempty"`
	Cursor  models.Point     `json:"cursor"`
}

// Executor runs commands for one session starting from a known cursor position.
type Executor struct {
	input     device.InputSynthesizer
	audit     audit.Logger
	logger    *zap.Logger
	sessionID string
	cursor    models.Point
	now       func() time.Time
}

// New creates an Executor. auditLogger and logger may be nil.
func New(input device.InputSynthesizer, auditLogger audit.Logger, logger *zap.Logger, sessionID string, cursor models.Point) *Executor {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		input:     input,
		audit:     auditLogger,
		logger:    logger,
		sessionID: sessionID,
		cursor:    cursor,
		now:       time.Now,
	}
}

// Cursor returns the tracked cursor position.
func (e *Executor) Cursor() models.Point {
	return e.cursor
}

// Execute applies cmd. Malformed commands produce an error Result rather than
// an error; the returned error is reserved for input synthesis failures and
// non-executable commands.
func (e *Executor) Execute(ctx context.Context, cmd models.Command) (Result, error) {
	var (
		res Result
		err error
	)
	switch {
	case cmd.Invalid != "":
		res = Result{
			Text:    fmt.Sprintf("Invalid %s input: %s", cmd.Type, cmd.Invalid),
			IsError: true,
			Kind:    models.KindInvalidDirection,
			Cursor:  e.cursor,
		}
	case cmd.Type == models.CommandMoveCursor:
		res, err = e.move(ctx, cmd)
	case cmd.Type == models.CommandClickCursor:
		res, err = e.click(ctx)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrNotExecutable, cmd.Type)
	}
	if err != nil {
		res = Result{Text: err.Error(), IsError: true, Kind: models.KindInternal, Cursor: e.cursor}
	}

	if logErr := e.audit.LogCommand(ctx, audit.CommandRecord{
		SessionID: e.sessionID,
		Command:   cmd,
		Result:    res.Text,
		Cursor:    res.Cursor,
		Time:      e.now(),
	}); logErr != nil {
		e.logger.Warn("failed to record command", zap.Error(logErr))
	}
	return res, err
}

func (e *Executor) move(ctx context.Context, cmd models.Command) (Result, error) {
	if !cmd.Direction.Valid() {
		return Result{
			Text:    fmt.Sprintf("Invalid direction %q: must be one of up, down, left, right", cmd.Direction),
			IsError: true,
			Kind:    models.KindInvalidDirection,
			Cursor:  e.cursor,
		}, nil
	}
	if cmd.Distance <= 0 {
		return Result{
			Text:    fmt.Sprintf("Invalid distance %d: must be a positive number of pixels", cmd.Distance),
			IsError: true,
			Kind:    models.KindInvalidDirection,
			Cursor:  e.cursor,
		}, nil
	}

	target := e.cursor.Add(cmd.Direction.Offset(cmd.Distance))
	if err := e.input.WarpPointer(ctx, target); err != nil {
		return Result{}, fmt.Errorf("move cursor: %w", err)
	}
	e.cursor = target
	e.logger.Debug("moved cursor", zap.String("direction", string(cmd.Direction)),
		zap.Int("distance", cmd.Distance), zap.Int("x", target.X), zap.Int("y", target.Y))
	return Result{
		Text:   fmt.Sprintf("Moved cursor %s by %d pixels to %s", cmd.Direction, cmd.Distance, target),
		Cursor: target,
	}, nil
}

func (e *Executor) click(ctx context.Context) (Result, error) {
	p := e.cursor
	if err := device.Click(ctx, e.input, p); err != nil {
		return Result{}, fmt.Errorf("click: %w", err)
	}
	e.logger.Debug("clicked", zap.Int("x", p.X), zap.Int("y", p.Y))
	return Result{Text: fmt.Sprintf("Clicked at %s", p), Cursor: p}, nil
}
