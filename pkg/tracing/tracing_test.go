package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("enrollment-api")
	assert.Equal(t, "enrollment-api", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Enabled)
}

func TestInitTracer_DisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracer_ReturnsNamedTracer(t *testing.T) {
	tracer := Tracer("payment")
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "VerifyPayment")
	assert.NotNil(t, span)
	span.End()
}
