package conjur

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates a required setting is missing or invalid.
// It is raised before any network call is made and is never retried.
type ConfigurationError struct {
	// Field is the configuration key at fault, e.g. "appliance_url".
	Field string

	// Message describes what is wrong.
	Message string

	Err error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in '%s'", e.Field)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IdentityError indicates the credentials needed by the selected method are
// missing. Missing login and missing API key are reported together.
type IdentityError struct {
	Method  Method
	Message string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity error for %s authentication: %s", e.Method, e.Message)
}

// CertificateError indicates the CA certificate could not be resolved.
type CertificateError struct {
	// Source names where the certificate was read from: "content", "file" or both.
	Source string

	Message string
	Err     error
}

func (e *CertificateError) Error() string {
	msg := "certificate error"
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CertificateError) Unwrap() error { return e.Err }

// AuthnKind distinguishes authentication failures that need different remedies.
type AuthnKind int

const (
	// AuthnKindGeneric is any non-200 response from an authenticator.
	AuthnKindGeneric AuthnKind = iota
	// AuthnKindIAM is a 401 from authn-iam, which usually means the IAM role
	// is not mapped to the Conjur host or the host policy is wrong.
	AuthnKindIAM
	// AuthnKindPlatformToken is a failure to obtain the cloud platform token
	// before Conjur was contacted.
	AuthnKindPlatformToken
)

// AuthenticationError indicates a session token could not be obtained, or
// that Conjur rejected the token presented with a request.
type AuthenticationError struct {
	Method Method

	// Login is the principal that failed. It is not secret.
	Login string

	// StatusCode is the HTTP status returned, or 0 for transport failures.
	StatusCode int

	Kind    AuthnKind
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		msg := e.Message
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}

	msg := fmt.Sprintf("failed to authenticate as '%s' using %s", e.Login, e.Method.Authenticator())
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (got %d response)", e.StatusCode)
	}
	if e.Kind == AuthnKindIAM {
		msg += ": the IAM role is not permitted to authenticate as this host"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// IsIAMAuthnError reports whether err is an IAM authentication rejection.
func IsIAMAuthnError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae) && ae.Kind == AuthnKindIAM
}

// InvalidAccountIDError indicates an AWS host ID without a 12-digit account
// number in its second-to-last path segment.
type InvalidAccountIDError struct {
	HostID string
}

func (e *InvalidAccountIDError) Error() string {
	return fmt.Sprintf("invalid AWS account ID in host ID '%s': expected host/<policy>/<12-digit account>/<role>", e.HostID)
}

// NotAuthorizedError indicates the identity may not read the variable (403).
type NotAuthorizedError struct {
	Path string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("the Conjur identity does not have authorization to retrieve %s", e.Path)
}

// NotFoundError indicates the variable does not exist (404).
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the variable %s does not exist", e.Path)
}

// UnknownStatusError indicates the secrets endpoint returned a status outside
// the documented set. It is surfaced instead of an empty value.
type UnknownStatusError struct {
	Path       string
	StatusCode int
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unexpected response status %d retrieving %s", e.StatusCode, e.Path)
}

// TransientNetworkError indicates a network failure that persisted after all
// retry attempts were used.
type TransientNetworkError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientNetworkError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// MetadataError indicates a cloud instance metadata endpoint failed.
type MetadataError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *MetadataError) Error() string {
	msg := fmt.Sprintf("instance metadata request to %s failed", e.Endpoint)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MetadataError) Unwrap() error { return e.Err }

// CleanupError indicates a temporary resource could not be released. It is
// reported even when the lookup itself succeeded.
type CleanupError struct {
	Resource string
	Err      error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to clean up %s: %v", e.Resource, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
