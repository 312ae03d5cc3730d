package authn

import (
	"context"
	"fmt"
	"os"

	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
)

type apiKeyStrategy struct {
	client   Client
	identity conjur.Identity
}

func (s *apiKeyStrategy) Method() conjur.Method { return conjur.MethodDefault }

func (s *apiKeyStrategy) Authenticate(ctx context.Context) (*secure.SessionToken, error) {
	return s.client.AuthenticateAPIKey(ctx, s.identity.Login, s.identity.APIKey)
}

// tokenFileStrategy uses a token provisioned by another process, such as a
// Kubernetes authenticator sidecar. No request is made.
type tokenFileStrategy struct {
	path string
}

func (s *tokenFileStrategy) Method() conjur.Method { return conjur.MethodTokenFile }

func (s *tokenFileStrategy) Authenticate(_ context.Context) (*secure.SessionToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &conjur.ConfigurationError{
			Field:   "authn_token_file",
			Message: fmt.Sprintf("failed to read token file %s", s.path),
			Err:     err,
		}
	}

	token, err := secure.NewSessionToken(data)
	if err != nil {
		return nil, &conjur.AuthenticationError{
			Method:  conjur.MethodTokenFile,
			Message: fmt.Sprintf("token file %s is unusable", s.path),
			Err:     err,
		}
	}
	return token, nil
}
