package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentAlerts, JSON: true, Output: &buf})

	fields := NewFields().WithFamily("fam-1").WithBudgetAlert("b-1", "warning", 85).WithError(errors.New("boom"))
	logger.Info("Budget alert", fields.ToSlice()...)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ComponentAlerts, entry[FieldComponent])
	assert.Equal(t, "fam-1", entry[FieldFamilyID])
	assert.Equal(t, "b-1", entry[FieldBudgetID])
	assert.Equal(t, 85.0, entry[FieldPercentage])
	assert.Equal(t, "boom", entry[FieldError])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, JSON: true, Output: &buf})

	ctx := NewContext(context.Background(), base.With(FieldRequestID, "req_1"))
	FromContext(ctx).Info("inside")

	assert.Contains(t, buf.String(), `"request_id":"req_1"`)
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{JSON: true, Output: &buf}).WithComponent(ComponentWorker)
	l.Info("hello")

	assert.Equal(t, ComponentWorker, l.Component())
	assert.Contains(t, buf.String(), `"component":"worker"`)
}
