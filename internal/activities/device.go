// Package activities contains Temporal activity implementations.
package activities

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/device"
	"github.com/mfateev/temporal-mirror-agent/internal/executor"
	"github.com/mfateev/temporal-mirror-agent/internal/imaging"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/screenshots"
)

// CaptureInput is the input for the CaptureScreenshot activity.
type CaptureInput struct {
	SessionID   string             `json:"session_id"`
	WindowTitle string             `json:"window_title"`
	Codec       models.CodecConfig `json:"codec"`
	// Cursor is the tracked position in screen coordinates. Nil places the
	// cursor at the centre of the window.
	Cursor *models.Point `json:"cursor,omitempty"`
}

// CaptureOutput is the output of the CaptureScreenshot activity. The image
// itself stays in the screenshot store; only its reference travels through
// workflow history.
type CaptureOutput struct {
	ScreenshotRef string       `json:"screenshot_ref"`
	WindowRect    models.Rect  `json:"window_rect"`
	Cursor        models.Point `json:"cursor"`
	Bytes         int          `json:"bytes"`
	Quality       int          `json:"quality"`
	WithinCeiling bool         `json:"within_ceiling"`
}

// ExecuteCommandInput is the input for the ExecuteCommand activity.
type ExecuteCommandInput struct {
	SessionID string         `json:"session_id"`
	Command   models.Command `json:"command"`
	Cursor    models.Point   `json:"cursor"`
}

// AnnounceInput is the input for the AnnounceStart activity.
type AnnounceInput struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// DeviceActivities captures the mirrored window and drives input on it.
type DeviceActivities struct {
	capture  device.CaptureProvider
	input    device.InputSynthesizer
	store    screenshots.Store
	audit    audit.Logger
	notifier device.Notifier
	logger   *zap.Logger
}

// NewDeviceActivities creates a new DeviceActivities instance. auditLogger,
// notifier and logger may be nil.
func NewDeviceActivities(
	capture device.CaptureProvider,
	input device.InputSynthesizer,
	store screenshots.Store,
	auditLogger audit.Logger,
	notifier device.Notifier,
	logger *zap.Logger,
) *DeviceActivities {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceActivities{
		capture:  capture,
		input:    input,
		store:    store,
		audit:    auditLogger,
		notifier: notifier,
		logger:   logger,
	}
}

// CaptureScreenshot finds the target window, captures it, draws the cursor
// marker, compresses the result under the byte ceiling and stores it.
func (a *DeviceActivities) CaptureScreenshot(ctx context.Context, input CaptureInput) (CaptureOutput, error) {
	out, err := a.captureScreenshot(ctx, input)
	if err != nil {
		a.logger.Warn("capture failed", zap.String("session_id", input.SessionID), zap.Error(err))
		return CaptureOutput{}, models.ToApplicationError(models.NewCaptureUnavailableError(err.Error()))
	}
	return out, nil
}

func (a *DeviceActivities) captureScreenshot(ctx context.Context, input CaptureInput) (CaptureOutput, error) {
	window, err := a.capture.FindTargetWindow(ctx, input.WindowTitle)
	if err != nil {
		return CaptureOutput{}, fmt.Errorf("find window %q: %w", input.WindowTitle, err)
	}
	if activator, ok := a.capture.(device.WindowActivator); ok {
		if err := activator.Activate(ctx, window); err != nil {
			a.logger.Debug("window activation failed", zap.String("window", window.ID), zap.Error(err))
		}
	}
	frame, err := a.capture.Capture(ctx, window)
	if err != nil {
		return CaptureOutput{}, fmt.Errorf("capture window %s: %w", window.ID, err)
	}
	if frame.Image == nil || frame.Image.Bounds().Empty() {
		return CaptureOutput{}, errors.New("captured frame is empty")
	}

	cursor := frame.Rect.Center()
	if input.Cursor != nil {
		cursor = *input.Cursor
	}
	marked := imaging.Overlay(frame.Image, imaging.ScreenToImage(cursor, frame.Rect, frame.Image.Bounds()))

	cfg := input.Codec
	if cfg == (models.CodecConfig{}) {
		cfg = models.DefaultCodecConfig()
	}
	compressed := imaging.NewCodec(cfg).Compress(marked, cfg.ByteCeiling, cfg.StartQuality)
	if !compressed.WithinCeiling {
		a.logger.Warn("screenshot exceeds byte ceiling at quality floor",
			zap.Int("bytes", len(compressed.Data)),
			zap.Int("ceiling", cfg.ByteCeiling),
			zap.Int("quality", compressed.Quality))
	}

	ref, err := a.store.Put(ctx, input.SessionID, compressed.Data)
	if err != nil {
		return CaptureOutput{}, fmt.Errorf("store screenshot: %w", err)
	}

	return CaptureOutput{
		ScreenshotRef: ref,
		WindowRect:    frame.Rect,
		Cursor:        cursor,
		Bytes:         len(compressed.Data),
		Quality:       compressed.Quality,
		WithinCeiling: compressed.WithinCeiling,
	}, nil
}

// ExecuteCommand applies one move or click command starting from the given
// cursor. Invalid commands come back as error results, not activity errors.
func (a *DeviceActivities) ExecuteCommand(ctx context.Context, input ExecuteCommandInput) (executor.Result, error) {
	exec := executor.New(a.input, a.audit, a.logger, input.SessionID, input.Cursor)
	res, err := exec.Execute(ctx, input.Command)
	if err != nil {
		return executor.Result{}, fmt.Errorf("execute %s: %w", input.Command, err)
	}
	return res, nil
}

// AnnounceStart signals the operator that the agent is about to take control.
func (a *DeviceActivities) AnnounceStart(ctx context.Context, input AnnounceInput) error {
	a.logger.Info("session starting", zap.String("session_id", input.SessionID))
	if a.notifier == nil {
		return nil
	}
	if err := a.notifier.Signal(ctx, input.Message); err != nil {
		a.logger.Warn("start signal failed", zap.Error(err))
	}
	return nil
}
