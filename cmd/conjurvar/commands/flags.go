package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/conjurvar/pkg/lookup"
)

// connectionFlags are the lookup inputs shared by get and doctor
type connectionFlags struct {
	applianceURL  string
	account       string
	login         string
	apiKey        string
	certFile      string
	certContent   string
	tokenFile     string
	authnType     string
	serviceID     string
	cloudClientID string
	insecure      bool
	timeout       time.Duration

	awsAccessKeyID     string
	awsSecretAccessKey string
	awsSessionToken    string
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.applianceURL, "url", "", "Conjur appliance URL (https)")
	fl.StringVar(&f.account, "account", "", "Conjur account")
	fl.StringVar(&f.login, "login", "", "Conjur login (user or host ID)")
	fl.StringVar(&f.apiKey, "api-key", "", "Conjur API key (prefer CONJUR_AUTHN_API_KEY)")
	fl.StringVar(&f.certFile, "cert-file", "", "CA certificate bundle to trust")
	fl.StringVar(&f.certContent, "cert-content", "", "Inline PEM CA certificate, preferred over --cert-file")
	fl.StringVar(&f.tokenFile, "authn-token-file", "", "Use a pre-provisioned access token instead of authenticating")
	fl.StringVar(&f.authnType, "authn-type", "", "Authentication type: aws, azure, gcp, or empty for API key")
	fl.StringVar(&f.serviceID, "service-id", "", "Authenticator service ID (aws, azure)")
	fl.StringVar(&f.cloudClientID, "cloud-client-id", "", "Client ID of a user-assigned Azure managed identity")
	fl.BoolVar(&f.insecure, "insecure-skip-verify", false, "Do not verify the Conjur server certificate")
	fl.DurationVar(&f.timeout, "timeout", 30*time.Second, "Timeout for each HTTP request")

	fl.StringVar(&f.awsAccessKeyID, "aws-access-key-id", "", "AWS access key ID, instead of instance metadata")
	fl.StringVar(&f.awsSecretAccessKey, "aws-secret-access-key", "", "AWS secret access key, instead of instance metadata")
	fl.StringVar(&f.awsSessionToken, "aws-session-token", "", "AWS session token for temporary credentials")
}

func (f *connectionFlags) request(g *Globals, path string) lookup.Request {
	req := lookup.Request{
		Path:               path,
		ConfigPath:         g.ConfigPath,
		IdentityPath:       g.IdentityPath,
		ApplianceURL:       f.applianceURL,
		Account:            f.account,
		Login:              f.login,
		APIKey:             f.apiKey,
		CertFile:           f.certFile,
		CertContent:        f.certContent,
		AuthnTokenFile:     f.tokenFile,
		AuthnType:          f.authnType,
		ServiceID:          f.serviceID,
		CloudClientID:      f.cloudClientID,
		Timeout:            f.timeout,
		AWSAccessKeyID:     f.awsAccessKeyID,
		AWSSecretAccessKey: f.awsSecretAccessKey,
		AWSSessionToken:    f.awsSessionToken,
	}
	if f.insecure {
		validate := false
		req.ValidateCerts = &validate
	}
	return req
}
