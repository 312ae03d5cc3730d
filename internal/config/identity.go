package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bgentry/go-netrc/netrc"
	"github.com/zalando/go-keyring"

	"github.com/systmms/conjurvar/pkg/conjur"
)

// DefaultIdentityPath is read when no identity file is configured
const DefaultIdentityPath = "/etc/conjur.identity"

// Keyring user names under the {applianceURL}/authn service
const (
	KeyringLoginUser    = "login"
	KeyringPasswordUser = "password"
)

// MachineName is the netrc machine and keyring service for an appliance
func MachineName(applianceURL string) string {
	return applianceURL + "/authn"
}

// ReadIdentityFile reads the netrc entry for applianceURL from path. A
// missing file is an empty identity; a file without the entry is an error.
func ReadIdentityFile(path, applianceURL string) (conjur.Identity, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return conjur.Identity{}, nil
		}
		return conjur.Identity{}, &conjur.ConfigurationError{
			Field:   "identity_file",
			Message: fmt.Sprintf("failed to read %s", path),
			Err:     err,
		}
	}

	n, err := netrc.ParseFile(path)
	if err != nil {
		return conjur.Identity{}, &conjur.ConfigurationError{
			Field:   "identity_file",
			Message: fmt.Sprintf("failed to parse %s as netrc", path),
			Err:     err,
		}
	}

	machine := MachineName(applianceURL)
	m := n.FindMachine(machine)
	if m == nil {
		return conjur.Identity{}, &conjur.ConfigurationError{
			Field:   "identity_file",
			Message: fmt.Sprintf("%s does not contain an entry for %s", path, machine),
		}
	}
	return conjur.Identity{Login: m.Login, APIKey: m.Password}, nil
}

// Keyring reads values from an OS credential store
type Keyring interface {
	Get(service, user string) (string, error)
}

// SystemKeyring is the OS keyring via go-keyring
type SystemKeyring struct{}

// Get returns the secret stored for service and user
func (SystemKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

// ReadKeyring reads the login and API key stored for applianceURL. Missing
// entries are left empty.
func ReadKeyring(kr Keyring, applianceURL string) (conjur.Identity, error) {
	service := MachineName(applianceURL)

	login, err := keyringValue(kr, service, KeyringLoginUser)
	if err != nil {
		return conjur.Identity{}, err
	}
	apiKey, err := keyringValue(kr, service, KeyringPasswordUser)
	if err != nil {
		return conjur.Identity{}, err
	}
	return conjur.Identity{Login: login, APIKey: apiKey}, nil
}

func keyringValue(kr Keyring, service, user string) (string, error) {
	v, err := kr.Get(service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", &conjur.ConfigurationError{
			Field:   "credential_storage",
			Message: fmt.Sprintf("failed to read %s for %s from the OS keyring", user, service),
			Err:     err,
		}
	}
	return v, nil
}
