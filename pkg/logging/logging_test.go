package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestLoggerRoundTripsThroughContext(t *testing.T) {
	is := is.New(t)

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).With().Str("component", "test").Logger()

	ctx := NewContextWithLogger(context.Background(), logger)
	fromCtx := GetLoggerFromContext(ctx)
	fromCtx.Info().Msg("hello")

	is.True(strings.Contains(buf.String(), `"component":"test"`))
	is.True(strings.Contains(buf.String(), `"message":"hello"`))
}

func TestMissingLoggerFallsBackToGlobal(t *testing.T) {
	is := is.New(t)

	logger := GetLoggerFromContext(context.Background())
	is.True(logger.GetLevel() <= zerolog.InfoLevel)
}

func TestNewLoggerTagsService(t *testing.T) {
	is := is.New(t)

	ctx, _ := NewLogger(context.Background(), "Alarm-Clock", "1.0")
	logger := GetLoggerFromContext(ctx)

	buf := &bytes.Buffer{}
	logger = logger.Output(buf)
	logger.Info().Msg("started")
	is.True(strings.Contains(buf.String(), `"service":"alarm-clock"`))
}
