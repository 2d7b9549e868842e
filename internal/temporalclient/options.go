// Package temporalclient provides Temporal client configuration loading
// using the SDK's envconfig contrib package.
//
// This enables configuration via environment variables (TEMPORAL_ADDRESS,
// TEMPORAL_NAMESPACE, TEMPORAL_TLS_CERT, etc.) and the envconfig TOML file.
package temporalclient

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/envconfig"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/logging"
)

// LoadClientOptions loads Temporal client options using the envconfig system.
//
// If hostPortOverride is non-empty, it overrides the host:port from envconfig.
// If namespaceOverride is non-empty, it overrides the namespace.
// A non-nil logger replaces the SDK's default logger.
func LoadClientOptions(hostPortOverride, namespaceOverride string, logger *zap.Logger) (client.Options, error) {
	opts, err := envconfig.LoadClientOptions(envconfig.LoadClientOptionsRequest{})
	if err != nil {
		return client.Options{}, err
	}

	if hostPortOverride != "" {
		opts.HostPort = hostPortOverride
	}
	if namespaceOverride != "" {
		opts.Namespace = namespaceOverride
	}
	if logger != nil {
		opts.Logger = logging.NewTemporalLogger(logger.Named("temporal"))
	}

	return opts, nil
}

// Dial loads options and connects.
func Dial(hostPortOverride, namespaceOverride string, logger *zap.Logger) (client.Client, error) {
	opts, err := LoadClientOptions(hostPortOverride, namespaceOverride, logger)
	if err != nil {
		return nil, fmt.Errorf("load Temporal client options: %w", err)
	}
	c, err := client.Dial(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to Temporal at %s: %w", opts.HostPort, err)
	}
	return c, nil
}
