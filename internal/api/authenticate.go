package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
)

// AuthenticateAPIKey exchanges a login and API key for a session token
// using the default authn authenticator.
func (c *Client) AuthenticateAPIKey(ctx context.Context, login, apiKey string) (*secure.SessionToken, error) {
	endpoint := fmt.Sprintf("%s/authn/%s/%s/authenticate",
		c.baseURL, EscapeSegment(c.account), EscapeSegment(login))

	return c.authenticate(ctx, authnRequest{
		method:      conjur.MethodDefault,
		login:       login,
		endpoint:    endpoint,
		body:        []byte(apiKey),
		contentType: "text/plain",
	})
}

// AuthenticateIAM presents a signed STS GetCallerIdentity request to
// authn-iam. A 401 is reported as an IAM rejection.
func (c *Client) AuthenticateIAM(ctx context.Context, serviceID, hostID string, signedHeaders []byte) (*secure.SessionToken, error) {
	endpoint := fmt.Sprintf("%s/authn-iam/%s/%s/%s/authenticate",
		c.baseURL, EscapeSegment(serviceID), EscapeSegment(c.account), EscapeSegment(hostID))

	return c.authenticate(ctx, authnRequest{
		method:      conjur.MethodAWS,
		login:       hostID,
		endpoint:    endpoint,
		body:        signedHeaders,
		contentType: "application/json",
		iam:         true,
	})
}

// AuthenticateAzure presents an Azure managed identity access token to
// authn-azure.
func (c *Client) AuthenticateAzure(ctx context.Context, serviceID, hostID, jwt string) (*secure.SessionToken, error) {
	endpoint := fmt.Sprintf("%s/authn-azure/%s/%s/%s/authenticate",
		c.baseURL, EscapeSegment(serviceID), EscapeSegment(c.account), EscapeSegment(hostID))

	return c.authenticate(ctx, authnRequest{
		method:      conjur.MethodAzure,
		login:       hostID,
		endpoint:    endpoint,
		body:        []byte("jwt=" + jwt),
		contentType: authnFormMediaType,
	})
}

// AuthenticateGCP presents a GCE identity token to authn-gcp. The GCP
// authenticator is scoped to the account only.
func (c *Client) AuthenticateGCP(ctx context.Context, hostID, jwt string) (*secure.SessionToken, error) {
	endpoint := fmt.Sprintf("%s/authn-gcp/%s/authenticate", c.baseURL, EscapeSegment(c.account))

	return c.authenticate(ctx, authnRequest{
		method:      conjur.MethodGCP,
		login:       hostID,
		endpoint:    endpoint,
		body:        []byte("jwt=" + jwt),
		contentType: authnFormMediaType,
	})
}

type authnRequest struct {
	method      conjur.Method
	login       string
	endpoint    string
	body        []byte
	contentType string
	iam         bool
}

func (c *Client) authenticate(ctx context.Context, ar authnRequest) (token *secure.SessionToken, err error) {
	defer func() { c.metrics.RecordAuthn(ar.method.String(), err) }()

	c.logger.Debug("Authenticating to %s as %s", ar.endpoint, logging.Secret(ar.login))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ar.endpoint, bytes.NewReader(ar.body))
	if err != nil {
		return nil, &conjur.AuthenticationError{Method: ar.method, Login: ar.login, Err: err}
	}
	req.Header.Set("Content-Type", ar.contentType)
	c.setCommonHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &conjur.AuthenticationError{Method: ar.method, Login: ar.login, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		authErr := &conjur.AuthenticationError{
			Method:     ar.method,
			Login:      ar.login,
			StatusCode: resp.StatusCode,
		}
		if ar.iam && resp.StatusCode == http.StatusUnauthorized {
			authErr.Kind = conjur.AuthnKindIAM
		}
		return nil, authErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &conjur.AuthenticationError{
			Method: ar.method,
			Login:  ar.login,
			Err:    fmt.Errorf("failed to read session token: %w", err),
		}
	}

	token, err = secure.NewSessionToken(body)
	if err != nil {
		return nil, &conjur.AuthenticationError{Method: ar.method, Login: ar.login, Err: err}
	}
	return token, nil
}
