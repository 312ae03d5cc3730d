package conjur

import "fmt"

// DefaultAccount is used when no account is configured.
const DefaultAccount = "conjur"

// Method selects the authentication strategy used to obtain a session token.
type Method int

const (
	// MethodDefault authenticates with a login and API key.
	MethodDefault Method = iota
	// MethodAWS authenticates with an AWS IAM role via a SigV4-signed request.
	MethodAWS
	// MethodAzure authenticates with an Azure managed identity token.
	MethodAzure
	// MethodGCP authenticates with a GCE instance identity token.
	MethodGCP
	// MethodTokenFile skips authentication and reads a token from disk.
	MethodTokenFile
)

// Methods returns every known method in declaration order.
func Methods() []Method {
	return []Method{MethodDefault, MethodAWS, MethodAzure, MethodGCP, MethodTokenFile}
}

// String returns the configuration name of the method.
func (m Method) String() string {
	switch m {
	case MethodDefault:
		return "api-key"
	case MethodAWS:
		return "aws"
	case MethodAzure:
		return "azure"
	case MethodGCP:
		return "gcp"
	case MethodTokenFile:
		return "token-file"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Authenticator returns the Conjur authenticator name used in authn URLs.
func (m Method) Authenticator() string {
	switch m {
	case MethodAWS:
		return "authn-iam"
	case MethodAzure:
		return "authn-azure"
	case MethodGCP:
		return "authn-gcp"
	default:
		return "authn"
	}
}

// RequiresServiceID reports whether the method needs an authenticator service ID.
func (m Method) RequiresServiceID() bool {
	return m == MethodAWS || m == MethodAzure
}

// RequiresAPIKey reports whether the method needs an API key in the identity.
func (m Method) RequiresAPIKey() bool {
	return m == MethodDefault
}

// ParseMethod converts the authn type selector into a Method.
//
// The selector is case-sensitive. An empty string selects MethodDefault.
// MethodTokenFile is never selected by name; it is implied by a configured
// token file.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "":
		return MethodDefault, nil
	case "aws":
		return MethodAWS, nil
	case "azure":
		return MethodAzure, nil
	case "gcp":
		return MethodGCP, nil
	default:
		return MethodDefault, &ConfigurationError{
			Field:   "authn_type",
			Message: fmt.Sprintf("unsupported authentication type %q (expected one of: aws, azure, gcp, or empty for API key)", s),
		}
	}
}

// Identity is the principal presented to an authenticator.
type Identity struct {
	// Login is the Conjur user or host ID, e.g. "host/ansible/app-1".
	Login string

	// APIKey is the secret used by MethodDefault. Never log this field.
	APIKey string
}

// IsZero reports whether neither field is set.
func (i Identity) IsZero() bool {
	return i.Login == "" && i.APIKey == ""
}

// Merge returns i with every non-empty field of o applied on top.
func (i Identity) Merge(o Identity) Identity {
	if o.Login != "" {
		i.Login = o.Login
	}
	if o.APIKey != "" {
		i.APIKey = o.APIKey
	}
	return i
}

// GoString keeps the API key out of %#v output.
func (i Identity) GoString() string {
	return fmt.Sprintf("conjur.Identity{Login:%q, APIKey:[REDACTED]}", i.Login)
}
