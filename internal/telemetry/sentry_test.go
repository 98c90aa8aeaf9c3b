package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSN(t *testing.T) {
	shutdown, err := Init(Config{})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestSampleRateFor(t *testing.T) {
	assert.Equal(t, 1.0, SampleRateFor(""))
	assert.Equal(t, 1.0, SampleRateFor("development"))
	assert.Equal(t, 0.1, SampleRateFor("production"))
}

func TestStartSpan_WithoutSentry(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "TranscriptionService.TranscribeAudio", SpanAttributes{
		UserID:    "alice",
		Operation: "transcribe",
	})
	defer span.End()

	assert.NotNil(t, ctx)
	span.SetData("chunks", 3)
	span.SetError(errors.New("boom"))
	span.SetError(nil)
}

func TestSpan_NilInnerIsSafe(t *testing.T) {
	span := &Span{}
	span.SetData("k", "v")
	span.SetError(errors.New("boom"))
	span.End()
}
