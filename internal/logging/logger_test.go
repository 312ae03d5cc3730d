package logging

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "api key", input: "1wgv7h2pw1vta2a7dnzk370ger03nnakkq33sex2a1jmbbnz3h8cJD"},
		{name: "empty", input: ""},
		{name: "host login", input: "host/ansible/ansible-1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, "[REDACTED]", Secret(tt.input).String())
			assert.Equal(t, "[REDACTED]", Secret(tt.input).GoString())
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", Secret(tt.input)))
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", Secret(tt.input)))
		})
	}
}

func TestLoggerWritesPrefixes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	logger.Info("authenticated as %s", Secret("host/app"))
	logger.Warn("account not set, using %q", "conjur")
	logger.Error("request failed")
	logger.Debug("GET %s", "https://conjur.example.com/secrets/acme/variable/db%2Fpassword")

	out := buf.String()
	assert.Contains(t, out, "✓ authenticated as [REDACTED]\n")
	assert.Contains(t, out, "⚠ account not set, using \"conjur\"\n")
	assert.Contains(t, out, "✗ request failed\n")
	assert.Contains(t, out, "[DEBUG] GET https://conjur.example.com/")
	assert.NotContains(t, out, "host/app")
	assert.NotContains(t, out, "\033[")
}

func TestLoggerDebugDisabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)
	logger.Debug("should not appear")

	assert.Empty(t, buf.String())
	assert.False(t, logger.DebugEnabled())
}

func TestLoggerColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter(&buf, false, false).Warn("colored")
	assert.True(t, strings.HasPrefix(buf.String(), "\033[33m⚠\033[0m "))
}

func TestNilAndDiscardLoggers(t *testing.T) {
	t.Parallel()

	var nilLogger *Logger
	assert.NotPanics(t, func() {
		nilLogger.Info("ignored")
		nilLogger.Debug("ignored")
	})
	assert.NotPanics(t, func() { Discard().Error("ignored") })
	assert.NotPanics(t, func() { NewWithWriter(nil, true, true).Debug("ignored") })
}

func TestRedact(t *testing.T) {
	t.Parallel()

	token := `{"protected":"fakeid","payload":"abc"}`
	msg := "authn response: " + token + " key=abc"

	got := Redact(msg, []string{token, "abc", ""})
	assert.Equal(t, "authn response: [REDACTED] key=abc", got)
}
