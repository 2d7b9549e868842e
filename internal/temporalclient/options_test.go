package temporalclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadClientOptions_Overrides(t *testing.T) {
	t.Setenv("TEMPORAL_CONFIG_FILE", "")
	opts, err := LoadClientOptions("temporal.example:7233", "mirror", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "temporal.example:7233", opts.HostPort)
	assert.Equal(t, "mirror", opts.Namespace)
	assert.NotNil(t, opts.Logger)
}

func TestLoadClientOptions_NoLogger(t *testing.T) {
	opts, err := LoadClientOptions("", "", nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Logger)
}
