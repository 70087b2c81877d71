package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv_Default(t *testing.T) {
	t.Setenv(EnvHost, "")
	assert.Equal(t, defaultHost, getEnv(EnvHost, defaultHost))
}

func TestGetEnv_Override(t *testing.T) {
	t.Setenv(EnvHost, "nats.internal:4222")
	assert.Equal(t, "nats.internal:4222", getEnv(EnvHost, defaultHost))
}

func TestGetTimeout_Default(t *testing.T) {
	t.Setenv(EnvRPCTimeout, "")
	assert.Equal(t, defaultTimeout, getTimeout())
}

func TestGetTimeout_Override(t *testing.T) {
	t.Setenv(EnvRPCTimeout, "1500")
	assert.Equal(t, 1500*time.Millisecond, getTimeout())
}

func TestGetTimeout_InvalidFallsBackToDefault(t *testing.T) {
	t.Setenv(EnvRPCTimeout, "not-a-number")
	assert.Equal(t, defaultTimeout, getTimeout())
}
