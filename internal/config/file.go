package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/systmms/conjurvar/pkg/conjur"
)

// DefaultConfigPath is read when neither --config nor CONJUR_CONFIG_FILE is set
const DefaultConfigPath = "/etc/conjur.conf"

// Credential storage backends for the identity
const (
	StorageFile    = "file"
	StorageKeyring = "keyring"
)

//go:embed schema.json
var schemaJSON string

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
})

// File is the YAML conjur.conf document. Unknown keys are ignored.
type File struct {
	ApplianceURL      string `yaml:"appliance_url"`
	Account           string `yaml:"account"`
	CertFile          string `yaml:"cert_file"`
	AuthnTokenFile    string `yaml:"authn_token_file"`
	AuthnType         string `yaml:"authn_type"`
	ServiceID         string `yaml:"service_id"`
	NetrcPath         string `yaml:"netrc_path"`
	CredentialStorage string `yaml:"credential_storage"`

	// Path is where the document was read from, empty when no file existed.
	Path string `yaml:"-"`
}

// LoadFile reads and validates the config file at path. A missing file
// yields an empty File.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, &conjur.ConfigurationError{
			Field:   "config_file",
			Message: fmt.Sprintf("failed to read %s", path),
			Err:     err,
		}
	}

	f, err := ParseFile(data)
	if err != nil {
		var cfgErr *conjur.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Message = fmt.Sprintf("%s: %s", path, cfgErr.Message)
		}
		return nil, err
	}
	f.Path = path
	return f, nil
}

// ParseFile decodes a conjur.conf document and validates it against the
// embedded schema.
func ParseFile(data []byte) (*File, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &conjur.ConfigurationError{
			Field:   "config_file",
			Message: "invalid YAML syntax",
			Err:     err,
		}
	}
	if doc == nil {
		return &File{}, nil
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &conjur.ConfigurationError{
			Field:   "config_file",
			Message: "failed to decode configuration",
			Err:     err,
		}
	}
	return &f, nil
}

func validateSchema(doc map[string]interface{}) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &conjur.ConfigurationError{
			Field:   "config_file",
			Message: "schema validation error",
			Err:     err,
		}
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &conjur.ConfigurationError{
		Field:   "config_file",
		Message: "schema validation failed: " + strings.Join(problems, "; "),
	}
}
