package authn

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/internal/sigv4"
	"github.com/systmms/conjurvar/pkg/conjur"
)

var awsAccountID = regexp.MustCompile(`^\d{12}$`)

// ValidateAWSHostID checks that the second-to-last segment of an authn-iam
// host ID is a 12-digit AWS account number, as in
// host/cloud-apps/123456789012/MyRole.
func ValidateAWSHostID(hostID string) error {
	parts := strings.Split(hostID, "/")
	if len(parts) < 2 || !awsAccountID.MatchString(parts[len(parts)-2]) {
		return &conjur.InvalidAccountIDError{HostID: hostID}
	}
	return nil
}

type awsStrategy struct {
	client    Client
	serviceID string
	hostID    string
	creds     aws.CredentialsProvider
	now       func() time.Time
	logger    *logging.Logger
}

func (s *awsStrategy) Method() conjur.Method { return conjur.MethodAWS }

func (s *awsStrategy) Authenticate(ctx context.Context) (*secure.SessionToken, error) {
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return nil, &conjur.AuthenticationError{
			Method:  conjur.MethodAWS,
			Login:   s.hostID,
			Kind:    conjur.AuthnKindPlatformToken,
			Message: "failed to obtain AWS IAM credentials",
			Err:     err,
		}
	}
	s.logger.Debug("Signing STS GetCallerIdentity request with credentials from %s", creds.Source)

	body, err := SignedIdentity(creds, s.now())
	// Strings cannot be zeroed; only the references are dropped.
	creds = aws.Credentials{}
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(body)

	return s.client.AuthenticateIAM(ctx, s.serviceID, s.hostID, body)
}

// SignedIdentity signs an STS GetCallerIdentity request at t and returns
// the JSON header document authn-iam accepts as the API key.
func SignedIdentity(creds aws.Credentials, t time.Time) ([]byte, error) {
	body, err := sigv4.Sign(creds, t).Headers.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed headers: %w", err)
	}
	return body, nil
}
