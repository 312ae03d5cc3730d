package authn

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
)

type gcpStrategy struct {
	client   Client
	hostID   string
	metadata GCPMetadata
}

func (s *gcpStrategy) Method() conjur.Method { return conjur.MethodGCP }

func (s *gcpStrategy) Authenticate(ctx context.Context) (*secure.SessionToken, error) {
	suffix := GCPIdentitySuffix(s.client.Account(), s.hostID)

	jwt, err := s.metadata.GetWithContext(ctx, suffix)
	if err != nil {
		return nil, &conjur.AuthenticationError{
			Method:  conjur.MethodGCP,
			Login:   s.hostID,
			Kind:    conjur.AuthnKindPlatformToken,
			Message: "failed to obtain GCE identity token",
			Err:     err,
		}
	}
	jwt = strings.TrimSpace(jwt)
	if jwt == "" {
		return nil, &conjur.AuthenticationError{
			Method:  conjur.MethodGCP,
			Login:   s.hostID,
			Kind:    conjur.AuthnKindPlatformToken,
			Message: "GCE metadata server returned an empty identity token",
		}
	}

	session, err := s.client.AuthenticateGCP(ctx, s.hostID, jwt)
	if err != nil {
		return nil, fmt.Errorf("exchanging GCE identity token with Conjur: %w", err)
	}
	return session, nil
}

// GCPIdentitySuffix is the metadata path for an identity token whose
// audience is conjur/{account}/{hostID}.
func GCPIdentitySuffix(account, hostID string) string {
	q := url.Values{}
	q.Set("audience", "conjur/"+account+"/"+hostID)
	q.Set("format", "full")
	return "instance/service-accounts/default/identity?" + q.Encode()
}
