package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopWithoutApplication(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, ctx, NewContext(ctx, nil))

	// None of these should panic without New Relic configured.
	RecordCount(ctx, "count", 1)
	RecordDuration(ctx, "duration", time.Second)
	RecordEvent(ctx, "event", map[string]interface{}{"k": "v"})

	trace := StartTrace(ctx, "component", "method")
	require.NotNil(t, trace)
	assert.Nil(t, trace.txn)
	trace.AddAttributes(map[string]interface{}{"k": "v"})
	trace.Fail(errors.New("failure"))
	trace.End()
	trace.End()
}

func TestTrace_Elapsed(t *testing.T) {
	trace := StartTrace(context.Background(), "component", "method")
	trace.start = trace.start.Add(-time.Second)
	assert.True(t, trace.Elapsed() >= time.Second)
}

func TestForwardedMessage(t *testing.T) {
	logger := logrus.New()

	e := logrus.NewEntry(logger)
	e.Message = "plain"
	assert.Equal(t, "plain", forwardedMessage(e))

	e = logger.WithError(errors.New("boom")).WithField("operation", "mint")
	e.Message = "failed"
	assert.Equal(t, `message="failed", error="boom", data={"operation":"mint"}`, forwardedMessage(e))
}
