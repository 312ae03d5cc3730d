package authn

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
)

// AzureManagementScope is the resource authn-azure validates tokens for.
const AzureManagementScope = "https://management.azure.com/.default"

type azureStrategy struct {
	client    Client
	serviceID string
	hostID    string
	cred      azcore.TokenCredential
}

func (s *azureStrategy) Method() conjur.Method { return conjur.MethodAzure }

func (s *azureStrategy) Authenticate(ctx context.Context) (*secure.SessionToken, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{AzureManagementScope},
	})
	if err != nil {
		return nil, &conjur.AuthenticationError{
			Method:  conjur.MethodAzure,
			Login:   s.hostID,
			Kind:    conjur.AuthnKindPlatformToken,
			Message: "failed to obtain Azure managed identity token",
			Err:     err,
		}
	}
	if tok.Token == "" {
		return nil, &conjur.AuthenticationError{
			Method:  conjur.MethodAzure,
			Login:   s.hostID,
			Kind:    conjur.AuthnKindPlatformToken,
			Message: "Azure managed identity returned an empty access token",
		}
	}

	session, err := s.client.AuthenticateAzure(ctx, s.serviceID, s.hostID, tok.Token)
	if err != nil {
		return nil, fmt.Errorf("exchanging Azure token with Conjur: %w", err)
	}
	return session, nil
}
