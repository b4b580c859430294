package slogx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var b bytes.Buffer
	log, err := New(&b, Options{Level: "warn"})
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown", Err(errors.New("boom")))
	assert.NotContains(t, b.String(), "hidden")
	assert.Contains(t, b.String(), "shown")
	assert.Contains(t, b.String(), "err=boom")

	b.Reset()
	log, err = New(&b, Options{JSON: true})
	require.NoError(t, err)
	log.Info("hello")
	assert.Contains(t, b.String(), `"msg":"hello"`)

	_, err = New(&b, Options{Level: "loud"})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	l := DiscardLogger()
	assert.True(t, IsDiscard(l))
	assert.False(t, IsDiscard(slog.Default()))
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
