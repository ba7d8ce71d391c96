package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{" warn ", WARN},
		{"warning", WARN},
		{"Error", ERROR},
		{"", INFO},
		{"verbose", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Use(New(&buf, WARN))

	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warn("shown %d", 3)
	WithError(errors.New("boom"), "failed to stage %s", "a.csv")
	WithError(nil, "never logged")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "shown 3")
	assert.Contains(t, out, "failed to stage a.csv: boom")
	assert.NotContains(t, out, "never logged")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestCallerIsReported(t *testing.T) {
	var buf bytes.Buffer
	Use(New(&buf, DEBUG))

	Info("hello")

	assert.Contains(t, buf.String(), "logger_test.go:")
}
