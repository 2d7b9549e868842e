package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/config"
	"github.com/mfateev/temporal-mirror-agent/internal/credentials"
	"github.com/mfateev/temporal-mirror-agent/internal/logging"
	"github.com/mfateev/temporal-mirror-agent/internal/session"
	"github.com/mfateev/temporal-mirror-agent/internal/temporalclient"
)

var (
	configPath string
	verbose    bool
	noColor    bool
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
)

var rootCmd = &cobra.Command{
	Use:   "mirrorctl",
	Short: "Drive a mirrored phone window with a vision model",
	Long: `mirrorctl starts and controls task sessions run by the mirror agent worker.

Usage:
  mirrorctl start "Open Settings and turn on Airplane Mode" --watch
  mirrorctl pause | resume | cancel
  mirrorctl status`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(startCmd, pauseCmd, resumeCmd, cancelCmd, statusCmd, watchCmd, transcriptCmd)
	rootCmd.AddCommand(keyCmd, pressCmd, swipeCmd, doubleClickCmd, captureCmd)
	rootCmd.AddCommand(serveCmd, mcpCmd)
	rootCmd.AddCommand(configCmd, versionCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// createLogger logs to stderr; only warnings unless --verbose.
func createLogger() *zap.Logger {
	if verbose {
		return logging.Must(true)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func credentialStore(cfg config.Config) credentials.Store {
	return credentials.NewEnvFallback(credentials.NewFileStore(cfg.Storage.CredentialsPath))
}

// controller bundles a session.Controller with the client it owns.
type controller struct {
	*session.Controller
	client client.Client
}

func (c *controller) Close() {
	c.client.Close()
}

func newController() (*controller, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	logger := createLogger()
	c, err := temporalclient.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace, logger)
	if err != nil {
		return nil, cfg, err
	}
	ctl := session.NewController(c, credentialStore(cfg), cfg.Session, logger)
	return &controller{Controller: ctl, client: c}, cfg, nil
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, render(errorStyle, "Error: "+err.Error()))
}

func render(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}
