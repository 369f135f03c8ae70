package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BEANSTALK_SERVERS", "")
	os.Unsetenv("BEANSTALK_SERVERS")

	config, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, []string{"127.0.0.1:11300"}, config.Servers)
	assert.Equal(t, "default", config.Tube)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("BEANSTALK_SERVERS", "10.0.0.1:11300,10.0.0.2:11300")
	t.Setenv("BEANSTALK_TUBE", "emails")
	t.Setenv("BEANSTALK_DIAL_TIMEOUT", "250ms")

	config, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1:11300", "10.0.0.2:11300"}, config.Servers)
	assert.Equal(t, "emails", config.Tube)
	assert.Equal(t, 250*time.Millisecond, config.DialTimeout)
}

func TestLoadConfigFromDotenv(t *testing.T) {
	t.Setenv("BEANSTALK_LOG_LEVEL", "")
	os.Unsetenv("BEANSTALK_LOG_LEVEL")

	file := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, os.WriteFile(file, []byte("BEANSTALK_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BEANSTALK_LOG_LEVEL") })

	config, err := loadConfig(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestMakeLogger(t *testing.T) {
	logger, err := MakeLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(1))

	_, err = MakeLogger("verbose")
	require.ErrorContains(t, err, "invalid log level")
}
