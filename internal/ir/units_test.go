package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeconds(t *testing.T) {
	tests := []struct {
		value   any
		want    int64
		wantErr bool
	}{
		{int64(30), 30, false},
		{"30s", 30, false},
		{"1m30s", 90, false},
		{"500ms", 0, true},
		{"1.5s", 0, true},
		{"soon", 0, true},
		{3.5, 0, true},
	}
	for _, tt := range tests {
		got, err := Seconds(tt.value)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.value)
			continue
		}
		if assert.NoError(t, err, "%v", tt.value) {
			assert.Equal(t, tt.want, got)
		}
	}
}
