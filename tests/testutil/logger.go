package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/conjurvar/internal/logging"
)

// TestLogger captures the output of a logging.Logger for validation in tests.
//
// It lets tests verify that secrets are properly redacted and that expected
// log messages are produced. The buffer is safe for concurrent writers.
//
// Example usage:
//
//	logs := testutil.NewTestLogger(t)
//	lookuper := &lookup.Lookuper{Logger: logs.Logger()}
//	// ...
//	logs.AssertNoSecretLeak(t, "s3cret", "api-key")
type TestLogger struct {
	mu     sync.Mutex
	buffer bytes.Buffer
	logger *logging.Logger
}

// NewTestLogger creates a TestLogger with debug output and no color
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()

	l := &TestLogger{}
	l.logger = logging.NewWithWriter(l, true, true)
	return l
}

// Logger returns the logger whose output is captured
func (l *TestLogger) Logger() *logging.Logger {
	return l.logger
}

// Write implements io.Writer
func (l *TestLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.Write(p)
}

// Output returns everything logged so far
func (l *TestLogger) Output() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.String()
}

// Lines returns the captured output split into lines
func (l *TestLogger) Lines() []string {
	out := strings.TrimRight(l.Output(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// AssertContains checks that the output contains substr
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.Output(), substr)
}

// AssertNoSecretLeak checks that none of the secret values were logged
func (l *TestLogger) AssertNoSecretLeak(t *testing.T, secrets ...string) {
	t.Helper()

	out := l.Output()
	for _, secret := range secrets {
		assert.NotContains(t, out, secret,
			"Secret %q should be redacted, but appears in output", secret)
	}
}
