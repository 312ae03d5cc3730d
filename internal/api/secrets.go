package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
)

const invalidCredentialsMessage = "Conjur request has invalid authorization credentials"

// SecretURL returns the secrets endpoint for a variable ID
func (c *Client) SecretURL(variableID string) string {
	return fmt.Sprintf("%s/secrets/%s/variable/%s",
		c.baseURL, EscapeSegment(c.account), EscapeVariableID(variableID))
}

// FetchSecret reads one variable with token. Transport failures are retried
// with a fixed delay; HTTP responses are never retried.
func (c *Client) FetchSecret(ctx context.Context, variableID string, token *secure.SessionToken) (value string, err error) {
	defer func() { c.metrics.RecordFetch(err) }()

	header, err := token.AuthorizationHeader()
	if err != nil {
		return "", err
	}

	endpoint := c.SecretURL(variableID)
	c.logger.Debug("Retrieving variable from %s", endpoint)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create secret request: %w", err)
	}
	req.Header.Set("Authorization", header)
	c.setCommonHeaders(req.Header)

	resp, err := c.retryClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("secret request for %s canceled: %w", variableID, ctxErr)
		}
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", &conjur.TransientNetworkError{Op: "read secret " + variableID, Err: err}
		}
		return string(body), nil
	case http.StatusUnauthorized:
		return "", &conjur.AuthenticationError{
			Message:    invalidCredentialsMessage,
			StatusCode: resp.StatusCode,
		}
	case http.StatusForbidden:
		return "", &conjur.NotAuthorizedError{Path: variableID}
	case http.StatusNotFound:
		return "", &conjur.NotFoundError{Path: variableID}
	default:
		return "", &conjur.UnknownStatusError{Path: variableID, StatusCode: resp.StatusCode}
	}
}

func (c *Client) newRetryClient(delay time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = c.httpClient
	rc.Logger = nil
	rc.RetryMax = c.attempts - 1
	rc.RetryWaitMin = delay
	rc.RetryWaitMax = delay
	rc.Backoff = constantBackoff
	rc.CheckRetry = retryTransportErrors
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		c.metrics.RecordFetchAttempt()
		if attempt > 0 {
			c.logger.Debug("Retrying secret request (attempt %d of %d)", attempt+1, c.attempts)
		}
	}
	rc.ErrorHandler = func(resp *http.Response, err error, attempts int) (*http.Response, error) {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, &conjur.TransientNetworkError{Op: "GET secret", Attempts: attempts, Err: err}
	}
	return rc
}

func constantBackoff(minWait, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return minWait
}

// retryTransportErrors retries when no response arrived at all. Any HTTP
// status, including 5xx, is returned to the caller as-is.
func retryTransportErrors(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	return err != nil, nil
}
