// Worker executable for temporal-mirror-agent
//
// This starts a Temporal worker that hosts the task session workflow and the
// device and model activities.
package main

import (
	"flag"
	"os"

	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/app"
	"github.com/mfateev/temporal-mirror-agent/internal/config"
	"github.com/mfateev/temporal-mirror-agent/internal/logging"
	"github.com/mfateev/temporal-mirror-agent/internal/session"
	"github.com/mfateev/temporal-mirror-agent/internal/temporalclient"
	"github.com/mfateev/temporal-mirror-agent/internal/version"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

func main() {
	var (
		configPath string
		hostPort   string
		namespace  string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	flag.StringVar(&hostPort, "temporal-address", "", "Temporal frontend host:port (overrides envconfig)")
	flag.StringVar(&namespace, "namespace", "", "Temporal namespace (overrides envconfig)")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	logger := logging.Must(verbose)
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if hostPort == "" {
		hostPort = cfg.Temporal.HostPort
	}
	if namespace == "" {
		namespace = cfg.Temporal.Namespace
	}

	components, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up device and storage", zap.Error(err))
	}
	defer components.Close()

	if cfg.Device.Backend == config.BackendDryRun {
		logger.Warn("Dry-run backend: input is recorded, not sent", zap.String("image", cfg.Device.DryRunImage))
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		logger.Info("ANTHROPIC_API_KEY not set; the stored credential will be used",
			zap.String("credentials", cfg.Storage.CredentialsPath))
	}

	c, err := temporalclient.Dial(hostPort, namespace, logger)
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	// Device input is serialized: one activity at a time.
	w := worker.New(c, session.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     1,
		MaxConcurrentWorkflowTaskExecutionSize: 2,
	})

	w.RegisterWorkflow(workflow.TaskSessionWorkflow)

	deviceActivities := components.DeviceActivities()
	w.RegisterActivity(deviceActivities.AnnounceStart)
	w.RegisterActivity(deviceActivities.CaptureScreenshot)
	w.RegisterActivity(deviceActivities.ExecuteCommand)

	modelActivities := components.ModelActivities()
	w.RegisterActivity(modelActivities.CallModel)

	logger.Info("Starting worker",
		zap.String("version", version.String()),
		zap.String("task_queue", session.TaskQueue),
		zap.String("backend", cfg.Device.Backend),
		zap.String("window", cfg.Session.WindowTitle))

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("Worker stopped with error", zap.Error(err))
	}
	logger.Info("Worker stopped")
}
