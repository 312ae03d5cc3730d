package lookup

import (
	"fmt"
	"os"

	"github.com/systmms/conjurvar/internal/authn"
	"github.com/systmms/conjurvar/internal/certs"
	"github.com/systmms/conjurvar/internal/config"
	"github.com/systmms/conjurvar/pkg/conjur"
)

// Check names reported by Diagnose
const (
	CheckConfiguration  = "configuration"
	CheckAuthentication = "authentication"
	CheckTokenFile      = "token file"
	CheckCertificate    = "certificate"
)

// Check is the outcome of one offline diagnostic
type Check struct {
	Name   string
	Detail string

	// Err is set when the check failed.
	Err error

	// Skipped is set when an earlier failure prevented the check.
	Skipped bool
}

// Diagnosis is the result of Diagnose
type Diagnosis struct {
	Checks []Check

	// Config is nil when configuration could not be resolved.
	Config *config.Resolved
	Method conjur.Method
}

// OK reports whether every check passed
func (d Diagnosis) OK() bool {
	for _, c := range d.Checks {
		if c.Err != nil || c.Skipped {
			return false
		}
	}
	return true
}

// Diagnose runs every step of Run that needs no network: configuration and
// identity resolution, method validation and certificate resolution. Secret
// values never appear in the details.
func (l *Lookuper) Diagnose(req Request) Diagnosis {
	var d Diagnosis
	logger := l.logger()

	loader := &config.Loader{LookupEnv: l.LookupEnv, Keyring: l.Keyring, Logger: logger}
	cfg, err := loader.Resolve(req.inputs())
	if err != nil {
		d.Checks = append(d.Checks,
			Check{Name: CheckConfiguration, Err: err},
			Check{Name: CheckAuthentication, Skipped: true},
			Check{Name: CheckCertificate, Skipped: true},
		)
		return d
	}
	d.Config = cfg
	d.Checks = append(d.Checks, Check{Name: CheckConfiguration, Detail: describeConfig(cfg)})

	d.Checks = append(d.Checks, l.checkAuthentication(&d, cfg, req))
	if cfg.UsesTokenFile() {
		d.Checks = append(d.Checks, checkTokenFile(cfg.AuthnTokenFile))
	}
	d.Checks = append(d.Checks, l.checkCertificate(cfg))
	return d
}

func (l *Lookuper) checkAuthentication(d *Diagnosis, cfg *config.Resolved, req Request) Check {
	c := Check{Name: CheckAuthentication}

	method, err := authn.SelectMethod(cfg.AuthnType, cfg.AuthnTokenFile)
	if err != nil {
		c.Err = err
		return c
	}
	d.Method = method

	err = authn.Validate(authn.Params{
		Method:    method,
		Identity:  cfg.Identity,
		ServiceID: cfg.ServiceID,
		TokenFile: cfg.AuthnTokenFile,
		AWS: authn.AWSOverrides{
			AccessKeyID:     req.AWSAccessKeyID,
			SecretAccessKey: req.AWSSecretAccessKey,
		},
	})
	if err != nil {
		c.Err = err
		return c
	}

	switch method {
	case conjur.MethodTokenFile:
		c.Detail = "token file, no authentication request"
	case conjur.MethodDefault:
		c.Detail = fmt.Sprintf("%s as %s, API key %s", method, cfg.Identity.Login, presence(cfg.Identity.APIKey))
	case conjur.MethodAWS:
		source := "instance metadata"
		if req.AWSAccessKeyID != "" && req.AWSSecretAccessKey != "" {
			source = "explicit credentials"
		}
		c.Detail = fmt.Sprintf("%s as %s via service %s, %s", method, cfg.Identity.Login, cfg.ServiceID, source)
	case conjur.MethodAzure:
		c.Detail = fmt.Sprintf("%s as %s via service %s", method, cfg.Identity.Login, cfg.ServiceID)
	default:
		c.Detail = fmt.Sprintf("%s as %s", method, cfg.Identity.Login)
	}
	return c
}

func checkTokenFile(path string) Check {
	c := Check{Name: CheckTokenFile}

	info, err := os.Stat(path)
	switch {
	case err != nil:
		c.Err = &conjur.ConfigurationError{Field: "authn_token_file", Message: fmt.Sprintf("cannot read %s", path), Err: err}
	case info.IsDir():
		c.Err = &conjur.ConfigurationError{Field: "authn_token_file", Message: fmt.Sprintf("%s is a directory", path)}
	case info.Size() == 0:
		c.Detail = fmt.Sprintf("%s is empty; it must be populated before a lookup", path)
		c.Err = &conjur.ConfigurationError{Field: "authn_token_file", Message: fmt.Sprintf("%s is empty", path)}
	default:
		c.Detail = path
	}
	return c
}

func (l *Lookuper) checkCertificate(cfg *config.Resolved) Check {
	c := Check{Name: CheckCertificate}

	if !cfg.ValidateCerts {
		c.Detail = "verification disabled"
		return c
	}
	if cfg.CertContent == "" && cfg.CertFile == "" {
		c.Detail = "system trust store"
		return c
	}

	material, err := certs.Resolver{TempDir: l.TempDir, Logger: l.logger()}.Resolve(cfg.CertContent, cfg.CertFile)
	if err != nil {
		c.Err = err
		return c
	}
	if material.Temporary {
		c.Detail = "inline certificate content"
	} else {
		c.Detail = material.Path
	}
	if err := material.Close(); err != nil {
		c.Err = err
	}
	return c
}

func describeConfig(cfg *config.Resolved) string {
	account := cfg.Account
	if cfg.AccountDefaulted {
		account += " (default)"
	}
	source := "no config file"
	if cfg.ConfigPath != "" {
		source = cfg.ConfigPath
	}
	return fmt.Sprintf("%s account %s, %s", cfg.ApplianceURL, account, source)
}

func presence(v string) string {
	if v == "" {
		return "missing"
	}
	return "set"
}
