// Package api is the HTTP client for the Conjur REST API. It covers the
// authenticate endpoints of each supported authenticator and the read of a
// single variable.
package api

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/internal/metrics"
	"github.com/systmms/conjurvar/pkg/conjur"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultAttempts    = 5
	DefaultRetryDelay  = 10 * time.Second
	authnFormMediaType = "application/x-www-form-urlencoded"
)

// Config configures a Client
type Config struct {
	// ApplianceURL is the https base URL of the Conjur appliance.
	ApplianceURL string
	Account      string

	// CertFile is a PEM bundle used as the only trusted roots. Empty means
	// the system pool.
	CertFile string

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool

	Timeout time.Duration

	// Attempts is the total number of secret requests made before a
	// transport failure is reported, and RetryDelay the fixed wait between
	// them.
	Attempts   int
	RetryDelay time.Duration
}

// Client talks to one Conjur appliance and account
type Client struct {
	baseURL  string
	account  string
	attempts int

	httpClient  *http.Client
	retryClient *retryablehttp.Client

	logger  *logging.Logger
	metrics *metrics.Recorder
}

// New builds a client. The appliance URL must be https.
func New(cfg Config, logger *logging.Logger, rec *metrics.Recorder) (*Client, error) {
	u, err := url.Parse(cfg.ApplianceURL)
	if err != nil || u.Host == "" {
		return nil, &conjur.ConfigurationError{
			Field:   "appliance_url",
			Message: fmt.Sprintf("'%s' is not a valid URL", cfg.ApplianceURL),
			Err:     err,
		}
	}
	if u.Scheme != "https" {
		return nil, &conjur.ConfigurationError{
			Field:   "appliance_url",
			Message: fmt.Sprintf("scheme must be https, got '%s'", u.Scheme),
		}
	}
	if cfg.Account == "" {
		return nil, &conjur.ConfigurationError{Field: "account", Message: "account is required"}
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = logging.Discard()
	}

	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if cfg.CertFile != "" {
		pool, err := loadCertPool(cfg.CertFile)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	if cfg.InsecureSkipVerify {
		logger.Warn("Certificate verification is disabled for %s", cfg.ApplianceURL)
		transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402 -- explicit opt-out
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.ApplianceURL, "/"),
		account:    cfg.Account,
		attempts:   cfg.Attempts,
		httpClient: httpClient,
		logger:     logger,
		metrics:    rec,
	}
	c.retryClient = c.newRetryClient(cfg.RetryDelay)

	return c, nil
}

// Account returns the Conjur account this client is bound to
func (c *Client) Account() string {
	return c.account
}

// ApplianceURL returns the base URL without a trailing slash
func (c *Client) ApplianceURL() string {
	return c.baseURL
}

func loadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &conjur.CertificateError{
			Source:  "file",
			Message: fmt.Sprintf("failed to read CA certificate %s", path),
			Err:     err,
		}
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, &conjur.CertificateError{
			Source:  "file",
			Message: fmt.Sprintf("no PEM certificates found in %s", path),
		}
	}
	return pool, nil
}

func (c *Client) setCommonHeaders(h http.Header) {
	h.Set(TelemetryHeader, TelemetryValue())
}
