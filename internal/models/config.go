package models

import "time"

// ModelConfig configures the remote model parameters.
type ModelConfig struct {
	Model       string  `json:"model" yaml:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultModelConfig returns the model settings the agent was tuned with.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:       "claude-3-5-sonnet-20241022",
		Temperature: 0,
		MaxTokens:   1024,
	}
}

// CodecConfig controls screenshot compression.
type CodecConfig struct {
	// ByteCeiling is the maximum encoded size in bytes.
	ByteCeiling int `json:"byte_ceiling" yaml:"byte_ceiling" mapstructure:"byte_ceiling"`
	// StartQuality is the first JPEG quality tried (1-100).
	StartQuality int `json:"start_quality" yaml:"start_quality" mapstructure:"start_quality"`
	// DecayFactor multiplies the quality after every oversized attempt. Must be in (0, 1).
	DecayFactor float64 `json:"decay_factor" yaml:"decay_factor" mapstructure:"decay_factor"`
	// QualityFloor stops the search once quality falls below it.
	QualityFloor int `json:"quality_floor" yaml:"quality_floor" mapstructure:"quality_floor"`
}

// DefaultCodecConfig returns the default compression settings.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		ByteCeiling:  1_000_000,
		StartQuality: 90,
		DecayFactor:  0.8,
		QualityFloor: 10,
	}
}

// SessionConfig holds per-session loop settings.
type SessionConfig struct {
	Model ModelConfig `json:"model" yaml:"model" mapstructure:"model"`
	Codec CodecConfig `json:"codec" yaml:"codec" mapstructure:"codec"`

	// MaxMessages is the conversation ceiling (user + assistant messages).
	MaxMessages int `json:"max_messages" yaml:"max_messages" mapstructure:"max_messages"`
	// MaxImages caps how many screenshots are sent per request; older ones
	// are replaced by a placeholder. Zero sends all of them.
	MaxImages int `json:"max_images" yaml:"max_images" mapstructure:"max_images"`
	// SettleDelay is the grace period before the first capture.
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay" mapstructure:"settle_delay"`
	// IterationDelay is the pause between loop iterations.
	IterationDelay time.Duration `json:"iteration_delay" yaml:"iteration_delay" mapstructure:"iteration_delay"`

	// WindowTitle selects the mirrored window.
	WindowTitle string `json:"window_title" yaml:"window_title" mapstructure:"window_title"`
	// CredentialName is the credential store key holding the API key.
	CredentialName string `json:"credential_name" yaml:"credential_name" mapstructure:"credential_name"`
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:          DefaultModelConfig(),
		Codec:          DefaultCodecConfig(),
		MaxMessages:    40,
		MaxImages:      5,
		SettleDelay:    2 * time.Second,
		IterationDelay: time.Second,
		WindowTitle:    "iPhone Mirroring",
		CredentialName: "anthropic_api_key",
	}
}
