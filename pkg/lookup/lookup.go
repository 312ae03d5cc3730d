package lookup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/systmms/conjurvar/internal/api"
	"github.com/systmms/conjurvar/internal/authn"
	"github.com/systmms/conjurvar/internal/certs"
	"github.com/systmms/conjurvar/internal/config"
	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/internal/metrics"
	"github.com/systmms/conjurvar/internal/secure"
	"github.com/systmms/conjurvar/pkg/conjur"
)

// SharedMemoryDir is preferred for AsFile output when it exists
const SharedMemoryDir = "/dev/shm"

const secretFilePattern = "conjurvar-secret-*"

// Request describes one lookup. Empty fields fall back to the environment,
// the config file and the identity file.
type Request struct {
	// Path is the variable ID, e.g. "prod/db/password".
	Path string

	ConfigPath   string
	IdentityPath string

	ApplianceURL   string
	Account        string
	Login          string
	APIKey         string
	CertFile       string
	CertContent    string
	AuthnTokenFile string
	AuthnType      string
	ServiceID      string
	CloudClientID  string

	// ValidateCerts defaults to true when nil. When false the server
	// certificate is not verified and no CA material is resolved.
	ValidateCerts *bool

	// AsFile writes the value to a file and returns its path.
	AsFile bool

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	Timeout time.Duration
}

// Result is a successful lookup
type Result struct {
	Path    string
	Account string
	Method  conjur.Method

	// Value is the secret, empty when AsFile was requested.
	Value string

	// FilePath holds the value when AsFile was requested.
	FilePath string
}

// Lookuper runs lookups. The zero value uses the process environment, the
// OS keyring, real cloud metadata endpoints and default retry settings.
type Lookuper struct {
	Logger  *logging.Logger
	Metrics *metrics.Recorder

	LookupEnv config.LookupFunc
	Keyring   config.Keyring

	IMDS            aws.CredentialsProvider
	AzureCredential func(clientID string) (azcore.TokenCredential, error)
	GCPMetadata     authn.GCPMetadata

	// Attempts and RetryDelay override the secret fetch retry bound.
	Attempts   int
	RetryDelay time.Duration

	// TempDir holds temporary certificates and AsFile output. Empty means
	// os.TempDir for certificates and /dev/shm, if present, for secrets.
	TempDir string

	// tokenIssued sees every session token before it is used.
	tokenIssued func(*secure.SessionToken)
}

// Run performs one lookup. Cleanup failures are joined onto the returned
// error even when the secret was read.
func (l *Lookuper) Run(ctx context.Context, req Request) (res Result, err error) {
	defer l.Metrics.ObserveDuration(metrics.OperationLookup, time.Now())
	logger := l.logger()

	if strings.TrimSpace(req.Path) == "" {
		return Result{}, &conjur.ConfigurationError{Field: "path", Message: "a variable path is required"}
	}

	loader := &config.Loader{LookupEnv: l.LookupEnv, Keyring: l.Keyring, Logger: logger}
	cfg, err := loader.Resolve(req.inputs())
	if err != nil {
		return Result{}, err
	}

	method, err := authn.SelectMethod(cfg.AuthnType, cfg.AuthnTokenFile)
	if err != nil {
		return Result{}, err
	}

	params := authn.Params{
		Method:        method,
		Identity:      cfg.Identity,
		ServiceID:     cfg.ServiceID,
		TokenFile:     cfg.AuthnTokenFile,
		CloudClientID: cfg.CloudClientID,
		AWS: authn.AWSOverrides{
			AccessKeyID:     req.AWSAccessKeyID,
			SecretAccessKey: req.AWSSecretAccessKey,
			SessionToken:    req.AWSSessionToken,
		},
	}
	if err := authn.Validate(params); err != nil {
		return Result{}, err
	}

	var material *certs.Material
	if cfg.ValidateCerts && (cfg.CertContent != "" || cfg.CertFile != "") {
		material, err = certs.Resolver{TempDir: l.TempDir, Logger: logger}.Resolve(cfg.CertContent, cfg.CertFile)
		if err != nil {
			return Result{}, err
		}
		defer func() {
			if cerr := material.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}()
	}

	var certFile string
	if material != nil {
		certFile = material.Path
	}

	client, err := api.New(api.Config{
		ApplianceURL:       cfg.ApplianceURL,
		Account:            cfg.Account,
		CertFile:           certFile,
		InsecureSkipVerify: !cfg.ValidateCerts,
		Timeout:            cfg.Timeout,
		Attempts:           l.Attempts,
		RetryDelay:         l.RetryDelay,
	}, logger, l.Metrics)
	if err != nil {
		return Result{}, err
	}

	dispatcher := &authn.Dispatcher{
		Client:          client,
		Logger:          logger,
		IMDS:            l.IMDS,
		AzureCredential: l.AzureCredential,
		GCPMetadata:     l.GCPMetadata,
	}

	authStart := time.Now()
	token, err := dispatcher.Authenticate(ctx, params)
	l.Metrics.ObserveDuration(metrics.OperationAuthenticate, authStart)
	if err != nil {
		return Result{}, err
	}
	defer token.Destroy()
	if l.tokenIssued != nil {
		l.tokenIssued(token)
	}

	fetchStart := time.Now()
	value, err := client.FetchSecret(ctx, req.Path, token)
	l.Metrics.ObserveDuration(metrics.OperationFetch, fetchStart)
	if err != nil {
		return Result{}, err
	}

	res = Result{Path: req.Path, Account: cfg.Account, Method: method}
	if !req.AsFile {
		res.Value = value
		return res, nil
	}

	res.FilePath, err = WriteSecretFile(l.secretDir(), value)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("Wrote secret to %s", res.FilePath)
	return res, nil
}

// WriteSecretFile writes value to a new 0600 file in dir and returns its path
func WriteSecretFile(dir, value string) (string, error) {
	f, err := os.CreateTemp(dir, secretFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create secret file: %w", err)
	}
	path := f.Name()

	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to restrict secret file: %w", err)
	}
	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write secret file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write secret file: %w", err)
	}
	return path, nil
}

func (r Request) inputs() config.Inputs {
	return config.Inputs{
		ConfigPath:     r.ConfigPath,
		IdentityPath:   r.IdentityPath,
		ApplianceURL:   r.ApplianceURL,
		Account:        r.Account,
		CertFile:       r.CertFile,
		CertContent:    r.CertContent,
		AuthnTokenFile: r.AuthnTokenFile,
		AuthnType:      r.AuthnType,
		ServiceID:      r.ServiceID,
		CloudClientID:  r.CloudClientID,
		Identity:       conjur.Identity{Login: r.Login, APIKey: r.APIKey},
		ValidateCerts:  r.ValidateCerts,
		Timeout:        r.Timeout,
	}
}

func (l *Lookuper) secretDir() string {
	if l.TempDir != "" {
		return l.TempDir
	}
	if info, err := os.Stat(SharedMemoryDir); err == nil && info.IsDir() {
		return SharedMemoryDir
	}
	return os.TempDir()
}

func (l *Lookuper) logger() *logging.Logger {
	if l.Logger == nil {
		return logging.Discard()
	}
	return l.Logger
}
