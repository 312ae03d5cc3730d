// Package config merges conjurvar settings from explicit inputs, the
// environment, the conjur.conf YAML file, the netrc identity file and the
// OS keyring.
//
// Precedence, highest first: explicit > environment > config file >
// keyring > identity file > default.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/pkg/conjur"
)

// Environment variables read during resolution
const (
	EnvConfigFile        = "CONJUR_CONFIG_FILE"
	EnvIdentityFile      = "CONJUR_IDENTITY_FILE"
	EnvApplianceURL      = "CONJUR_APPLIANCE_URL"
	EnvAccount           = "CONJUR_ACCOUNT"
	EnvCertFile          = "CONJUR_CERT_FILE"
	EnvSSLCertificate    = "CONJUR_SSL_CERTIFICATE"
	EnvAuthnLogin        = "CONJUR_AUTHN_LOGIN"
	EnvAuthnAPIKey       = "CONJUR_AUTHN_API_KEY"
	EnvAuthnTokenFile    = "CONJUR_AUTHN_TOKEN_FILE"
	EnvAuthnType         = "CONJUR_AUTHN_TYPE"
	EnvAuthnServiceID    = "CONJUR_AUTHN_SERVICE_ID"
	EnvCloudClientID     = "CONJUR_CLOUD_CLIENT_ID"
	EnvCredentialStorage = "CONJUR_CREDENTIAL_STORAGE"
)

// LookupFunc reads one environment variable
type LookupFunc func(key string) (string, bool)

// Inputs are values supplied directly by the caller. Empty strings are unset.
type Inputs struct {
	ConfigPath   string
	IdentityPath string

	ApplianceURL   string
	Account        string
	CertFile       string
	CertContent    string
	AuthnTokenFile string
	AuthnType      string
	ServiceID      string
	CloudClientID  string

	Identity conjur.Identity

	// ValidateCerts defaults to true when nil.
	ValidateCerts *bool

	Timeout time.Duration
}

// Resolved is the merged configuration for one lookup
type Resolved struct {
	ApplianceURL string
	Account      string

	// AccountDefaulted is set when no source supplied an account.
	AccountDefaulted bool

	CertFile       string
	CertContent    string
	AuthnTokenFile string
	AuthnType      string
	ServiceID      string
	CloudClientID  string

	// Identity is empty when a token file is configured.
	Identity conjur.Identity

	ValidateCerts     bool
	Timeout           time.Duration
	CredentialStorage string

	// ConfigPath and IdentityPath are the files consulted, empty if absent.
	ConfigPath   string
	IdentityPath string
}

// UsesTokenFile reports whether authentication is replaced by a token file
func (r *Resolved) UsesTokenFile() bool {
	return r.AuthnTokenFile != ""
}

// Loader resolves configuration. Zero-valued fields use the process
// environment, the OS keyring and a discarding logger.
type Loader struct {
	LookupEnv LookupFunc
	Keyring   Keyring
	Logger    *logging.Logger
}

// Resolve merges every source into a Resolved. It never contacts Conjur.
func (l *Loader) Resolve(in Inputs) (*Resolved, error) {
	logger := l.logger()

	configPath := first(in.ConfigPath, l.env(EnvConfigFile), DefaultConfigPath)
	file, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if file.Path != "" {
		logger.Debug("Loaded configuration from %s", file.Path)
	}

	r := &Resolved{
		ApplianceURL:      first(in.ApplianceURL, l.env(EnvApplianceURL), file.ApplianceURL),
		Account:           first(in.Account, l.env(EnvAccount), file.Account),
		CertFile:          first(in.CertFile, l.env(EnvCertFile), file.CertFile),
		CertContent:       first(in.CertContent, l.env(EnvSSLCertificate)),
		AuthnTokenFile:    first(in.AuthnTokenFile, l.env(EnvAuthnTokenFile), file.AuthnTokenFile),
		AuthnType:         first(in.AuthnType, l.env(EnvAuthnType), file.AuthnType),
		ServiceID:         first(in.ServiceID, l.env(EnvAuthnServiceID), file.ServiceID),
		CloudClientID:     first(in.CloudClientID, l.env(EnvCloudClientID)),
		CredentialStorage: first(l.env(EnvCredentialStorage), file.CredentialStorage, StorageFile),
		ValidateCerts:     in.ValidateCerts == nil || *in.ValidateCerts,
		Timeout:           in.Timeout,
		ConfigPath:        file.Path,
	}

	r.ApplianceURL, err = normalizeApplianceURL(r.ApplianceURL)
	if err != nil {
		return nil, err
	}

	if r.Account == "" {
		r.Account = conjur.DefaultAccount
		r.AccountDefaulted = true
		logger.Warn("No Conjur account configured, defaulting to %q", conjur.DefaultAccount)
	}

	if r.UsesTokenFile() {
		logger.Debug("Using token file %s, identity is not resolved", r.AuthnTokenFile)
		return r, nil
	}

	identityPath := first(in.IdentityPath, l.env(EnvIdentityFile), file.NetrcPath, DefaultIdentityPath)
	if err := l.resolveIdentity(r, in.Identity, identityPath); err != nil {
		return nil, err
	}
	return r, nil
}

// resolveIdentity layers the identity sources. The identity file and keyring
// are skipped when explicit inputs and the environment already supply both
// the login and the API key.
func (l *Loader) resolveIdentity(r *Resolved, explicit conjur.Identity, identityPath string) error {
	env := conjur.Identity{
		Login:  l.env(EnvAuthnLogin),
		APIKey: l.env(EnvAuthnAPIKey),
	}
	upper := env.Merge(explicit)
	if upper.Login != "" && upper.APIKey != "" {
		r.Identity = upper
		return nil
	}

	id, err := ReadIdentityFile(identityPath, r.ApplianceURL)
	if err != nil {
		return err
	}
	if !id.IsZero() {
		r.IdentityPath = identityPath
		l.logger().Debug("Loaded identity for %s from %s", logging.Secret(id.Login), identityPath)
	}

	switch r.CredentialStorage {
	case StorageFile:
	case StorageKeyring:
		stored, err := ReadKeyring(l.keyring(), r.ApplianceURL)
		if err != nil {
			return err
		}
		id = id.Merge(stored)
	default:
		return &conjur.ConfigurationError{
			Field:   "credential_storage",
			Message: fmt.Sprintf("unsupported credential storage %q (expected %s or %s)", r.CredentialStorage, StorageFile, StorageKeyring),
		}
	}

	r.Identity = id.Merge(upper)
	return nil
}

func normalizeApplianceURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", &conjur.ConfigurationError{
			Field:   "appliance_url",
			Message: "Conjur appliance URL is required; set it in the config file, CONJUR_APPLIANCE_URL or --url",
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &conjur.ConfigurationError{Field: "appliance_url", Message: "invalid URL", Err: err}
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", &conjur.ConfigurationError{
			Field:   "appliance_url",
			Message: fmt.Sprintf("appliance URL must use https, got %q", raw),
		}
	}
	return raw, nil
}

func (l *Loader) env(key string) string {
	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func (l *Loader) keyring() Keyring {
	if l.Keyring == nil {
		return SystemKeyring{}
	}
	return l.Keyring
}

func (l *Loader) logger() *logging.Logger {
	if l.Logger == nil {
		return logging.Discard()
	}
	return l.Logger
}

// first returns the first non-empty value
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// EnvMap adapts a map to a LookupFunc
func EnvMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}
