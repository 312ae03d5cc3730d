package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/conjurvar/pkg/conjur"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
	Err        error
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

var fieldSuggestions = map[string]string{
	"appliance_url":      "Set appliance_url in /etc/conjur.conf, export CONJUR_APPLIANCE_URL, or pass --url",
	"account":            "Set account in /etc/conjur.conf, export CONJUR_ACCOUNT, or pass --account",
	"service_id":         "Pass --service-id or export CONJUR_AUTHN_SERVICE_ID with the authenticator service ID",
	"aws_credentials":    "Pass both --aws-access-key-id and --aws-secret-access-key, or neither to use instance metadata",
	"authn_type":         "Use one of aws, azure, gcp, or leave the type empty for API key authentication",
	"authn_token_file":   "Check that the token file exists and is readable by this process",
	"identity_file":      "Add a machine entry for <appliance_url>/authn to the identity file, or export CONJUR_AUTHN_LOGIN and CONJUR_AUTHN_API_KEY",
	"credential_storage": "Set credential_storage to 'file' or 'keyring' and check the OS keyring is unlocked",
	"config_file":        "Check the YAML in the config file. Keys are appliance_url, account, cert_file, authn_token_file, authn_type, service_id, netrc_path",
	"path":               "Pass the variable ID, for example: conjurvar get prod/db/password",
}

// Present converts a lookup error into a UserError or ConfigError with a
// suggestion. Errors it does not recognise are returned unchanged.
func Present(err error) error {
	if err == nil {
		return nil
	}

	var (
		userErr    UserError
		configErr  ConfigError
		cfgErr     *conjur.ConfigurationError
		idErr      *conjur.IdentityError
		certErr    *conjur.CertificateError
		accountErr *conjur.InvalidAccountIDError
		authErr    *conjur.AuthenticationError
		deniedErr  *conjur.NotAuthorizedError
		missingErr *conjur.NotFoundError
		statusErr  *conjur.UnknownStatusError
		netErr     *conjur.TransientNetworkError
		cleanupErr *conjur.CleanupError
	)

	switch {
	case errors.As(err, &userErr), errors.As(err, &configErr):
		return err

	case errors.As(err, &cfgErr):
		msg := cfgErr.Message
		if cfgErr.Err != nil {
			msg += ": " + cfgErr.Err.Error()
		}
		return ConfigError{
			Field:      cfgErr.Field,
			Message:    msg,
			Suggestion: fieldSuggestions[cfgErr.Field],
			Err:        err,
		}

	case errors.As(err, &idErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "Pass --login and --api-key, export CONJUR_AUTHN_LOGIN and CONJUR_AUTHN_API_KEY, or add them to the identity file",
			Err:        err,
		}

	case errors.As(err, &accountErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "AWS host IDs look like host/cloud-apps/123456789012/MyRole",
			Err:        err,
		}

	case errors.As(err, &certErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "Check the certificate is a PEM CA bundle, or pass --insecure-skip-verify only for testing",
			Err:        err,
		}

	case errors.As(err, &authErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: authnSuggestion(authErr),
			Err:        err,
		}

	case errors.As(err, &deniedErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "Grant the identity 'execute' on the variable in Conjur policy",
			Err:        err,
		}

	case errors.As(err, &missingErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "Check the variable ID and the account",
			Err:        err,
		}

	case errors.As(err, &statusErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "Check the Conjur server logs for the request",
			Err:        err,
		}

	case errors.As(err, &netErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "Unable to reach Conjur. Check the appliance URL and your network",
			Err:        err,
		}

	case errors.Is(err, context.DeadlineExceeded):
		return UserError{
			Message:    err.Error(),
			Suggestion: "The operation timed out. Check your network connection or raise --timeout",
			Err:        err,
		}

	case errors.As(err, &cleanupErr):
		return UserError{
			Message:    err.Error(),
			Suggestion: "Remove the leftover file manually",
			Err:        err,
		}
	}

	return SimplifyError(err)
}

func authnSuggestion(e *conjur.AuthenticationError) string {
	switch {
	case e.Kind == conjur.AuthnKindIAM:
		return "Check the IAM role is mapped to the host and the host is permitted by the authn-iam service policy"
	case e.Kind == conjur.AuthnKindPlatformToken:
		return "Check this machine has a cloud identity attached and its metadata service is reachable"
	case e.Method == conjur.MethodTokenFile:
		return "Check the token file is refreshed by its provider"
	case e.StatusCode == 401 && e.Login == "":
		return "The session token was rejected. It may have expired; run the lookup again"
	default:
		return "Check the login and API key, and that the authenticator is enabled for the account"
	}
}

// SimplifyError simplifies common operating system errors for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Details:    errStr,
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Details:    errStr,
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
