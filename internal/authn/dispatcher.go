// Package authn obtains a Conjur session token with exactly one
// authentication method.
//
// The Dispatcher validates what the selected method needs before any
// network call, builds the matching Strategy and runs it. There is no
// fallback between methods: a failed strategy is a failed lookup.
package authn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/systmms/conjurvar/internal/imds"
	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
)

// Strategy obtains a session token with one method
type Strategy interface {
	Method() conjur.Method
	Authenticate(ctx context.Context) (*secure.SessionToken, error)
}

// Client is the subset of the Conjur API client the strategies use
type Client interface {
	Account() string
	AuthenticateAPIKey(ctx context.Context, login, apiKey string) (*secure.SessionToken, error)
	AuthenticateIAM(ctx context.Context, serviceID, hostID string, signedHeaders []byte) (*secure.SessionToken, error)
	AuthenticateAzure(ctx context.Context, serviceID, hostID, jwt string) (*secure.SessionToken, error)
	AuthenticateGCP(ctx context.Context, hostID, jwt string) (*secure.SessionToken, error)
}

// GCPMetadata reads values from the GCE metadata server
type GCPMetadata interface {
	GetWithContext(ctx context.Context, suffix string) (string, error)
}

// AWSOverrides are explicit IAM credentials that take precedence over
// instance metadata.
type AWSOverrides struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// IsSet reports whether an access key pair was supplied
func (o AWSOverrides) IsSet() bool {
	return o.AccessKeyID != "" && o.SecretAccessKey != ""
}

// validate requires the key pair to be complete or absent
func (o AWSOverrides) validate() error {
	if (o.AccessKeyID == "") == (o.SecretAccessKey == "") {
		return nil
	}
	return &conjur.ConfigurationError{
		Field:   "aws_credentials",
		Message: "AWS access key ID and secret access key must be supplied together",
	}
}

// Params is everything a strategy may need
type Params struct {
	Method    conjur.Method
	Identity  conjur.Identity
	ServiceID string
	TokenFile string

	// CloudClientID selects a user-assigned Azure managed identity.
	CloudClientID string

	AWS AWSOverrides
}

// Dispatcher builds and runs strategies. Zero-valued hooks fall back to
// the real cloud SDK clients.
type Dispatcher struct {
	Client Client
	Logger *logging.Logger

	// IMDS provides instance role credentials for AWS when no override is set.
	IMDS aws.CredentialsProvider

	// AzureCredential builds the managed identity credential for a client ID.
	AzureCredential func(clientID string) (azcore.TokenCredential, error)

	GCPMetadata GCPMetadata

	Now func() time.Time
}

// SelectMethod picks the method from the configured selector. A token
// file always wins.
func SelectMethod(authnType, tokenFile string) (conjur.Method, error) {
	if tokenFile != "" {
		return conjur.MethodTokenFile, nil
	}
	return conjur.ParseMethod(authnType)
}

// Authenticate builds the strategy for p and runs it
func (d *Dispatcher) Authenticate(ctx context.Context, p Params) (*secure.SessionToken, error) {
	s, err := d.Strategy(p)
	if err != nil {
		return nil, err
	}

	d.logger().Debug("Authenticating with %s", s.Method())
	return s.Authenticate(ctx)
}

// Validate checks everything p's method needs without any network call
func Validate(p Params) error {
	if p.Method.RequiresServiceID() && strings.TrimSpace(p.ServiceID) == "" {
		return &conjur.ConfigurationError{
			Field:   "service_id",
			Message: fmt.Sprintf("a service ID is required for %s authentication", p.Method),
		}
	}

	switch p.Method {
	case conjur.MethodTokenFile:
		if p.TokenFile == "" {
			return &conjur.ConfigurationError{Field: "authn_token_file", Message: "token file path is empty"}
		}
		return nil
	case conjur.MethodDefault, conjur.MethodAzure, conjur.MethodGCP:
		return checkIdentity(p.Method, p.Identity)
	case conjur.MethodAWS:
		if err := checkIdentity(p.Method, p.Identity); err != nil {
			return err
		}
		if err := p.AWS.validate(); err != nil {
			return err
		}
		return ValidateAWSHostID(p.Identity.Login)
	default:
		return &conjur.ConfigurationError{
			Field:   "authn_type",
			Message: fmt.Sprintf("no strategy for authentication method %s", p.Method),
		}
	}
}

// Strategy validates p and returns the strategy for its method
func (d *Dispatcher) Strategy(p Params) (Strategy, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	switch p.Method {
	case conjur.MethodDefault:
		return &apiKeyStrategy{client: d.Client, identity: p.Identity}, nil

	case conjur.MethodTokenFile:
		return &tokenFileStrategy{path: p.TokenFile}, nil

	case conjur.MethodAWS:
		return &awsStrategy{
			client:    d.Client,
			serviceID: p.ServiceID,
			hostID:    p.Identity.Login,
			creds:     d.awsCredentials(p.AWS),
			now:       d.now(),
			logger:    d.logger(),
		}, nil

	case conjur.MethodAzure:
		cred, err := d.azureCredential(p.CloudClientID)
		if err != nil {
			return nil, &conjur.AuthenticationError{
				Method:  conjur.MethodAzure,
				Login:   p.Identity.Login,
				Kind:    conjur.AuthnKindPlatformToken,
				Message: "failed to create Azure managed identity credential",
				Err:     err,
			}
		}
		return &azureStrategy{
			client:    d.Client,
			serviceID: p.ServiceID,
			hostID:    p.Identity.Login,
			cred:      cred,
		}, nil

	case conjur.MethodGCP:
		return &gcpStrategy{
			client:   d.Client,
			hostID:   p.Identity.Login,
			metadata: d.gcpMetadata(),
		}, nil

	default:
		return nil, &conjur.ConfigurationError{
			Field:   "authn_type",
			Message: fmt.Sprintf("no strategy for authentication method %s", p.Method),
		}
	}
}

// checkIdentity reports missing login and API key together
func checkIdentity(m conjur.Method, id conjur.Identity) error {
	var missing []string
	if strings.TrimSpace(id.Login) == "" {
		missing = append(missing, "login")
	}
	if m.RequiresAPIKey() && id.APIKey == "" {
		missing = append(missing, "API key")
	}
	if len(missing) == 0 {
		return nil
	}
	return &conjur.IdentityError{
		Method:  m,
		Message: strings.Join(missing, " and ") + " required but not provided",
	}
}

func (d *Dispatcher) logger() *logging.Logger {
	if d.Logger == nil {
		return logging.Discard()
	}
	return d.Logger
}

func (d *Dispatcher) now() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

func (d *Dispatcher) awsCredentials(o AWSOverrides) aws.CredentialsProvider {
	if o.IsSet() {
		d.logger().Debug("Using explicitly supplied AWS credentials")
		return credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, o.SessionToken)
	}
	if d.IMDS != nil {
		return d.IMDS
	}
	return imds.New(imds.Config{}, d.logger())
}

func (d *Dispatcher) azureCredential(clientID string) (azcore.TokenCredential, error) {
	if d.AzureCredential != nil {
		return d.AzureCredential(clientID)
	}
	return NewManagedIdentityCredential(clientID)
}

func (d *Dispatcher) gcpMetadata() GCPMetadata {
	if d.GCPMetadata != nil {
		return d.GCPMetadata
	}
	return metadata.NewClient(nil)
}

// NewManagedIdentityCredential returns the Azure managed identity
// credential, user-assigned when clientID is set.
func NewManagedIdentityCredential(clientID string) (azcore.TokenCredential, error) {
	if clientID != "" {
		return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(clientID),
		})
	}
	return azidentity.NewManagedIdentityCredential(nil)
}
