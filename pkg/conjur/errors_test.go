package conjur

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{input: "", want: MethodDefault},
		{input: "aws", want: MethodAWS},
		{input: "azure", want: MethodAzure},
		{input: "gcp", want: MethodGCP},
		{input: "AWS", wantErr: true},
		{input: "token-file", wantErr: true},
		{input: "ldap", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("selector_%q", tt.input), func(t *testing.T) {
			t.Parallel()

			got, err := ParseMethod(tt.input)
			if tt.wantErr {
				var cfgErr *ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "authn_type", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMethodProperties(t *testing.T) {
	t.Parallel()

	assert.Len(t, Methods(), 5)
	assert.True(t, MethodAWS.RequiresServiceID())
	assert.True(t, MethodAzure.RequiresServiceID())
	assert.False(t, MethodGCP.RequiresServiceID())
	assert.False(t, MethodDefault.RequiresServiceID())
	assert.True(t, MethodDefault.RequiresAPIKey())
	assert.False(t, MethodAWS.RequiresAPIKey())

	assert.Equal(t, "authn-iam", MethodAWS.Authenticator())
	assert.Equal(t, "authn-azure", MethodAzure.Authenticator())
	assert.Equal(t, "authn-gcp", MethodGCP.Authenticator())
	assert.Equal(t, "authn", MethodDefault.Authenticator())
	assert.Equal(t, "Method(42)", Method(42).String())
}

func TestIdentityMergeAndRedaction(t *testing.T) {
	t.Parallel()

	base := Identity{Login: "host/from-file", APIKey: "file-key"}
	merged := base.Merge(Identity{APIKey: "env-key"})

	assert.Equal(t, "host/from-file", merged.Login)
	assert.Equal(t, "env-key", merged.APIKey)
	assert.True(t, Identity{}.IsZero())
	assert.NotContains(t, fmt.Sprintf("%#v", merged), "env-key")
}

func TestAuthenticationErrorMessages(t *testing.T) {
	t.Parallel()

	iam := &AuthenticationError{Method: MethodAWS, Login: "host/cloud/123456789012/role", StatusCode: 401, Kind: AuthnKindIAM}
	assert.Contains(t, iam.Error(), "authn-iam")
	assert.Contains(t, iam.Error(), "got 401 response")
	assert.True(t, IsIAMAuthnError(fmt.Errorf("wrapped: %w", iam)))

	generic := &AuthenticationError{Method: MethodDefault, Login: "admin", StatusCode: 500}
	assert.Equal(t, "failed to authenticate as 'admin' using authn (got 500 response)", generic.Error())
	assert.False(t, IsIAMAuthnError(generic))

	custom := &AuthenticationError{Message: "Conjur request has invalid authorization credentials", StatusCode: 401}
	assert.Equal(t, "Conjur request has invalid authorization credentials", custom.Error())
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()

	root := errors.New("root cause")

	wrapped := []error{
		&ConfigurationError{Field: "appliance_url", Message: "missing", Err: root},
		&CertificateError{Source: "file", Message: "unreadable", Err: root},
		&AuthenticationError{Method: MethodGCP, Err: root},
		&TransientNetworkError{Op: "GET secret", Attempts: 5, Err: root},
		&MetadataError{Endpoint: "/latest/api/token", Err: root},
		&CleanupError{Resource: "temporary certificate file", Err: root},
	}

	for _, err := range wrapped {
		assert.ErrorIs(t, err, root, "%T should unwrap", err)
		assert.Contains(t, err.Error(), "root cause")
	}
}

func TestErrorsOmitSecretValues(t *testing.T) {
	t.Parallel()

	msgs := []string{
		(&NotFoundError{Path: "db/password"}).Error(),
		(&NotAuthorizedError{Path: "db/password"}).Error(),
		(&UnknownStatusError{Path: "db/password", StatusCode: 502}).Error(),
		(&InvalidAccountIDError{HostID: "host/ansible/12345678901/x"}).Error(),
		(&IdentityError{Method: MethodDefault, Message: "login and API key are required"}).Error(),
	}

	for _, m := range msgs {
		assert.NotEmpty(t, m)
	}
	assert.Equal(t, "the variable db/password does not exist", msgs[0])
	assert.Equal(t, "unexpected response status 502 retrieving db/password", msgs[2])
}
