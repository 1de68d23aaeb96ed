package requestctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	assert.Equal(t, "", RequestID(context.Background()))
	assert.Equal(t, "req-1", RequestID(WithRequestID(context.Background(), "req-1")))
}

func TestLoggerTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	Logger(WithRequestID(context.Background(), "req-7")).Info("hello")
	assert.Contains(t, buf.String(), "requestId=req-7")

	buf.Reset()
	Logger(context.Background()).Info("hello")
	assert.NotContains(t, buf.String(), "requestId")
}
