package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	logger, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	require.NotNil(t, logger.Logger)

	named := logger.Named("stream")
	assert.NotNil(t, named.Logger)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil).Logger)
	assert.NotNil(t, OrNop(&Logger{}).Logger)

	l := NewDefault()
	assert.Same(t, l, OrNop(l))
}

func TestFieldKeys(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core)}

	l.With(StreamID("s1")).Debug("status updated",
		Endpoint("config"),
		RequestID("r1"),
		Event("notify"),
		User("admin"),
		Status(8, 3))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "s1", fields["stream_id"])
	assert.Equal(t, "config", fields["endpoint"])
	assert.Equal(t, "r1", fields["request_id"])
	assert.Equal(t, "notify", fields["event"])
	assert.Equal(t, "admin", fields["user"])
	assert.Equal(t, map[string]interface{}{"code": int64(8), "page": int64(3)}, fields["status"])
}
