// Package imds reads IAM role credentials from the EC2 instance metadata
// service. It prefers IMDSv2 session tokens and degrades to IMDSv1 when the
// token endpoint is unavailable.
package imds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/pkg/conjur"
)

const (
	DefaultEndpoint = "http://169.254.169.254"
	DefaultTimeout  = 2 * time.Second
	DefaultTokenTTL = 21600

	TokenPath       = "/latest/api/token"
	CredentialsPath = "/latest/meta-data/iam/security-credentials/"

	tokenHeader    = "X-aws-ec2-metadata-token"
	tokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"

	credentialSource = "EC2InstanceMetadata"
)

// Config configures the metadata client
type Config struct {
	// Endpoint overrides the link-local metadata address (tests, proxies).
	Endpoint string
	Timeout  time.Duration
	TokenTTL int

	HTTPClient *http.Client
}

// Client talks to the EC2 instance metadata service
type Client struct {
	endpoint   string
	tokenTTL   int
	httpClient *http.Client
	logger     *logging.Logger
}

// New creates a metadata client with defaults applied
func New(cfg Config, logger *logging.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		tokenTTL:   cfg.TokenTTL,
		httpClient: cfg.HTTPClient,
		logger:     logger,
	}
}

// roleCredentials is the document served for an instance profile role
type roleCredentials struct {
	Code            string `json:"Code"`
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	Token           string `json:"Token"`
	Expiration      string `json:"Expiration"`
}

// FetchToken requests an IMDSv2 session token. Any failure yields an empty
// token so callers continue with IMDSv1.
func (c *Client) FetchToken(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+TokenPath, nil)
	if err != nil {
		return ""
	}
	req.Header.Set(tokenTTLHeader, strconv.Itoa(c.tokenTTL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("IMDSv2 token request failed, falling back to IMDSv1: %v", err)
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("IMDSv2 token request returned %d, falling back to IMDSv1", resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}

// FetchRoleName returns the instance profile role name
func (c *Client) FetchRoleName(ctx context.Context, token string) (string, error) {
	body, err := c.get(ctx, CredentialsPath, token)
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(body), "\n") {
		if role := strings.TrimSpace(line); role != "" {
			return role, nil
		}
	}
	return "", &conjur.MetadataError{
		Endpoint: CredentialsPath,
		Err:      fmt.Errorf("no IAM role is attached to this instance"),
	}
}

// FetchRoleCredentials returns the temporary credentials for role
func (c *Client) FetchRoleCredentials(ctx context.Context, role, token string) (aws.Credentials, error) {
	path := CredentialsPath + role
	body, err := c.get(ctx, path, token)
	if err != nil {
		return aws.Credentials{}, err
	}

	var doc roleCredentials
	if err := json.Unmarshal(body, &doc); err != nil {
		return aws.Credentials{}, &conjur.MetadataError{
			Endpoint: path,
			Err:      fmt.Errorf("failed to decode credentials document: %w", err),
		}
	}
	if doc.AccessKeyID == "" || doc.SecretAccessKey == "" {
		return aws.Credentials{}, &conjur.MetadataError{
			Endpoint: path,
			Err:      fmt.Errorf("credentials document is missing AccessKeyId or SecretAccessKey"),
		}
	}

	creds := aws.Credentials{
		AccessKeyID:     doc.AccessKeyID,
		SecretAccessKey: doc.SecretAccessKey,
		SessionToken:    doc.Token,
		Source:          credentialSource,
	}
	if expires, err := time.Parse(time.RFC3339, doc.Expiration); err == nil {
		creds.CanExpire = true
		creds.Expires = expires
	}
	return creds, nil
}

// Retrieve implements aws.CredentialsProvider
func (c *Client) Retrieve(ctx context.Context) (aws.Credentials, error) {
	token := c.FetchToken(ctx)

	role, err := c.FetchRoleName(ctx, token)
	if err != nil {
		return aws.Credentials{}, err
	}
	c.logger.Debug("Using instance profile role %s", role)

	return c.FetchRoleCredentials(ctx, role, token)
}

func (c *Client) get(ctx context.Context, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return nil, &conjur.MetadataError{Endpoint: path, Err: err}
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &conjur.MetadataError{Endpoint: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &conjur.MetadataError{Endpoint: path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &conjur.MetadataError{Endpoint: path, Err: err}
	}
	return body, nil
}

var _ aws.CredentialsProvider = (*Client)(nil)
