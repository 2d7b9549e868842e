// Package app assembles the device, storage and audit components from
// configuration. The worker and mirrorctl share it.
package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/activities"
	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/config"
	"github.com/mfateev/temporal-mirror-agent/internal/credentials"
	"github.com/mfateev/temporal-mirror-agent/internal/device"
	"github.com/mfateev/temporal-mirror-agent/internal/screenshots"
)

// Components holds everything built from a Config.
type Components struct {
	Config      config.Config
	Capture     device.CaptureProvider
	Input       device.InputSynthesizer
	Notifier    device.Notifier
	Screenshots *screenshots.DirStore
	Audit       audit.Logger
	Credentials credentials.Store

	closers []io.Closer
	logger  *zap.Logger
}

// Build creates the components described by cfg. Close releases them.
func Build(cfg config.Config, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{
		Config:   cfg,
		Notifier: device.BellNotifier{W: os.Stderr},
		logger:   logger,
	}

	switch cfg.Device.Backend {
	case config.BackendDryRun:
		c.Capture = &device.FileCapture{Path: cfg.Device.DryRunImage}
		c.Input = device.NewRecorder(logger.Named("dryrun"))
	case config.BackendX11, "":
		x := device.NewX11(device.ExecRunner{}, logger.Named("x11"))
		c.Capture = x
		c.Input = x
	default:
		return nil, fmt.Errorf("unknown device backend %q", cfg.Device.Backend)
	}

	store, err := screenshots.NewDirStore(cfg.Storage.ScreenshotDir)
	if err != nil {
		return nil, err
	}
	c.Screenshots = store

	var sinks audit.Multi
	if cfg.Storage.AuditJSONL != "" {
		jsonl, err := audit.NewJSONLLogger(cfg.Storage.AuditJSONL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, jsonl)
	}
	if cfg.Storage.AuditSQLite != "" {
		db, err := audit.NewSQLiteLogger(cfg.Storage.AuditSQLite)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
		c.closers = append(c.closers, db)
	}
	c.Audit = sinks

	c.Credentials = credentials.NewEnvFallback(credentials.NewFileStore(cfg.Storage.CredentialsPath))
	return c, nil
}

// DeviceActivities returns the device activities bound to these components.
func (c *Components) DeviceActivities() *activities.DeviceActivities {
	return activities.NewDeviceActivities(c.Capture, c.Input, c.Screenshots, c.Audit, c.Notifier, c.logger.Named("device"))
}

// ModelActivities returns the model activities bound to these components.
func (c *Components) ModelActivities() *activities.ModelActivities {
	factory := activities.AnthropicGatewayFactory(c.Config.Anthropic.BaseURL, c.Screenshots, c.Audit, c.logger.Named("llm"))
	return activities.NewModelActivities(c.Credentials, factory, c.logger.Named("model"))
}

// Close releases the audit sinks.
func (c *Components) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
