package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{input: "debug", want: zapcore.DebugLevel},
		{input: "INFO", want: zapcore.InfoLevel},
		{input: "", want: zapcore.InfoLevel},
		{input: "warning", want: zapcore.WarnLevel},
		{input: "error", want: zapcore.ErrorLevel},
		{input: "verbose", want: zapcore.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitWithOptionsWritesJSON(t *testing.T) {
	previous := log
	t.Cleanup(func() { log = previous })

	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, InitWithOptions(Options{Level: "debug", Encoding: "json", OutputPaths: []string{path}}))

	Debug("hello", zap.String("format", "kubernetes"))
	require.NoError(t, Sync())
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))
}

func TestNopBeforeInit(t *testing.T) {
	previous := log
	t.Cleanup(func() { log = previous })

	log = zap.NewNop()
	assert.NotPanics(t, func() {
		Info("ignored")
		With(zap.String("k", "v")).Warn("ignored")
	})
}
