package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/conjurvar/internal/metrics"
	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
	"github.com/systmms/conjurvar/tests/fakes"
)

const secretsPrefix = "/secrets/"

func TestFetchSecretRequestShape(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeConjur()
	defer f.Close()
	f.SetSecret("variable", "the-value")

	c := newTestClient(t, f, nil)
	value, err := c.FetchSecret(context.Background(), "variable", newToken(t, `{"protected":"fakeid"}`))
	require.NoError(t, err)
	assert.Equal(t, "the-value", value)

	reqs := f.RequestsTo(secretsPrefix)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/secrets/myaccount/variable/variable", reqs[0].Path)
	assert.Equal(t, `Token token="eyJwcm90ZWN0ZWQiOiJmYWtlaWQifQ=="`, reqs[0].Header.Get("Authorization"))
	assert.Equal(t, TelemetryValue(), reqs[0].Header.Get(TelemetryHeader))
}

func TestFetchSecretEncodesPath(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeConjur()
	defer f.Close()
	f.SetSecret("my app/db password", "spaced")

	value, err := newTestClient(t, f, nil).FetchSecret(context.Background(), "my app/db password", newToken(t, f.Token))
	require.NoError(t, err)
	assert.Equal(t, "spaced", value)

	reqs := f.RequestsTo(secretsPrefix)
	require.Len(t, reqs, 1)
	assert.Equal(t, "/secrets/myaccount/variable/my%20app/db%20password", reqs[0].Path)
}

func TestFetchSecretStatusPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		token  string
		check  func(t *testing.T, err error)
	}{
		{
			name:  "wrong token",
			token: "some-other-token",
			check: func(t *testing.T, err error) {
				var authErr *conjur.AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
				assert.Contains(t, err.Error(), "invalid authorization credentials")
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var nae *conjur.NotAuthorizedError
				require.ErrorAs(t, err, &nae)
				assert.Equal(t, "db/password", nae.Path)
			},
		},
		{
			name:   "missing variable",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var nfe *conjur.NotFoundError
				require.ErrorAs(t, err, &nfe)
			},
		},
		{
			name:   "server error is not retried",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				var use *conjur.UnknownStatusError
				require.ErrorAs(t, err, &use)
				assert.Equal(t, http.StatusServiceUnavailable, use.StatusCode)
			},
		},
		{
			name:   "unexpected success code",
			status: http.StatusNoContent,
			check: func(t *testing.T, err error) {
				var use *conjur.UnknownStatusError
				require.ErrorAs(t, err, &use)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := fakes.NewFakeConjur()
			defer f.Close()
			f.SetSecret("db/password", "hunter2")
			f.SecretStatus = tt.status

			raw := f.Token
			if tt.token != "" {
				raw = tt.token
			}

			value, err := newTestClient(t, f, nil).FetchSecret(context.Background(), "db/password", newToken(t, raw))
			assert.Empty(t, value)
			tt.check(t, err)
			assert.NotContains(t, err.Error(), "hunter2")
			assert.Len(t, f.RequestsTo(secretsPrefix), 1)
		})
	}
}

func TestFetchSecretRetriesTransportErrors(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeConjur()
	defer f.Close()
	f.SetSecret("db/password", "eventually")
	f.StallSecretRequests = 2

	rec := metrics.NewRecorder()
	c := newTestClient(t, f, rec, func(cfg *Config) { cfg.Timeout = 200 * time.Millisecond })

	value, err := c.FetchSecret(context.Background(), "db/password", newToken(t, f.Token))
	require.NoError(t, err)
	assert.Equal(t, "eventually", value)
	assert.Len(t, f.RequestsTo(secretsPrefix), 3)

	expected := `
# HELP conjurvar_secret_fetch_attempts_total Total number of secret fetch HTTP attempts, including retries
# TYPE conjurvar_secret_fetch_attempts_total counter
conjurvar_secret_fetch_attempts_total 3
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "conjurvar_secret_fetch_attempts_total"))
}

func TestFetchSecretExhaustsRetries(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeConjur()
	defer f.Close()
	f.SetSecret("db/password", "never")
	f.StallSecretRequests = DefaultAttempts

	c := newTestClient(t, f, nil, func(cfg *Config) { cfg.Timeout = 200 * time.Millisecond })

	_, err := c.FetchSecret(context.Background(), "db/password", newToken(t, f.Token))

	var tne *conjur.TransientNetworkError
	require.ErrorAs(t, err, &tne)
	assert.Equal(t, DefaultAttempts, tne.Attempts)
	assert.Error(t, tne.Err, "last transport error is kept")
	assert.Len(t, f.RequestsTo(secretsPrefix), DefaultAttempts)
}

func TestFetchSecretHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeConjur()
	defer f.Close()
	f.SetSecret("db/password", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, f, nil).FetchSecret(ctx, "db/password", newToken(t, f.Token))
	require.ErrorIs(t, err, context.Canceled)

	var tne *conjur.TransientNetworkError
	assert.False(t, errors.As(err, &tne), "cancellation is not a transient failure")
	assert.Empty(t, f.RequestsTo(secretsPrefix))
}

func TestFetchSecretCancelDuringRetryWait(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeConjur()
	defer f.Close()
	f.SetSecret("db/password", "x")
	f.StallSecretRequests = DefaultAttempts

	c := newTestClient(t, f, nil, func(cfg *Config) {
		cfg.Timeout = 100 * time.Millisecond
		cfg.RetryDelay = time.Minute
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchSecret(ctx, "db/password", newToken(t, f.Token))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Len(t, f.RequestsTo(secretsPrefix), 1)
}

func TestFetchSecretDestroyedToken(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeConjur()
	defer f.Close()

	tok, err := secure.NewSessionToken([]byte(f.Token))
	require.NoError(t, err)
	tok.Destroy()

	_, err = newTestClient(t, f, nil).FetchSecret(context.Background(), "db/password", tok)
	require.ErrorIs(t, err, secure.ErrTokenDestroyed)
	assert.Empty(t, f.Requests())
}
