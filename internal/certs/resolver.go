// Package certs turns a CA certificate given inline or as a file into a
// path the HTTP client can trust.
//
// Inline content is preferred. When it is malformed, the file is tried
// next; only when neither yields a certificate does resolution fail. Valid
// inline content is written to a private temporary file that the returned
// Material removes on Close.
package certs

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/pkg/conjur"
)

const (
	beginMarker = "-----BEGIN CERTIFICATE-----"
	endMarker   = "-----END CERTIFICATE-----"

	tempPattern = "conjurvar-ca-*.pem"
)

// Material is a resolved CA certificate path
type Material struct {
	// Path is the PEM file to trust.
	Path string

	// Temporary is true when Path was created from inline content and is
	// owned by this Material.
	Temporary bool

	once     sync.Once
	closeErr error
}

// Close removes the temporary file, if any. It runs at most once; later
// calls return the first result. Closing a nil Material is a no-op.
func (m *Material) Close() error {
	if m == nil {
		return nil
	}

	m.once.Do(func() {
		if !m.Temporary {
			return
		}
		if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.closeErr = &conjur.CleanupError{
				Resource: "temporary certificate file " + m.Path,
				Err:      err,
			}
		}
	})
	return m.closeErr
}

// Resolver resolves certificate material
type Resolver struct {
	// TempDir is where inline content is materialized. Empty means os.TempDir.
	TempDir string

	Logger *logging.Logger
}

// Resolve resolves with default settings
func Resolve(content, file string) (*Material, error) {
	return Resolver{}.Resolve(content, file)
}

// Resolve returns the certificate to trust, preferring content over file.
func (r Resolver) Resolve(content, file string) (*Material, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var contentErr error
	if strings.TrimSpace(content) != "" {
		normalized, err := NormalizePEM(content)
		if err == nil {
			return r.materialize(normalized)
		}
		contentErr = err
		logger.Warn("Inline certificate is invalid, falling back to certificate file: %v", err)
	}

	if file == "" {
		if contentErr != nil {
			return nil, &conjur.CertificateError{
				Source:  "content",
				Message: "inline certificate is invalid and no certificate file is configured",
				Err:     contentErr,
			}
		}
		return nil, &conjur.CertificateError{Message: "neither certificate content nor certificate file is configured"}
	}

	if err := validateFile(file); err != nil {
		if contentErr != nil {
			return nil, &conjur.CertificateError{
				Source:  "content and file",
				Message: "no usable certificate",
				Err:     errors.Join(contentErr, err),
			}
		}
		return nil, &conjur.CertificateError{Source: "file", Message: "no usable certificate", Err: err}
	}

	logger.Debug("Using certificate file %s", file)
	return &Material{Path: file}, nil
}

func (r Resolver) materialize(normalized string) (*Material, error) {
	f, err := os.CreateTemp(r.TempDir, tempPattern)
	if err != nil {
		return nil, &conjur.CertificateError{Source: "content", Message: "failed to create temporary certificate file", Err: err}
	}
	path := f.Name()

	// CreateTemp opens the file with mode 0600.
	_, err = f.WriteString(normalized + "\n")
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, &conjur.CertificateError{Source: "content", Message: "failed to write temporary certificate file", Err: err}
	}

	return &Material{Path: path, Temporary: true}, nil
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read certificate file %s: %w", path, err)
	}
	if _, err := NormalizePEM(string(data)); err != nil {
		return fmt.Errorf("certificate file %s: %w", path, err)
	}
	return nil
}

// NormalizePEM canonicalizes PEM text and checks that it holds one or more
// parseable X.509 certificates. Line endings become LF, each line loses its
// surrounding whitespace and blank lines are dropped.
func NormalizePEM(content string) (string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) < 2 || lines[0] != beginMarker || lines[len(lines)-1] != endMarker {
		return "", errors.New("missing BEGIN/END CERTIFICATE envelope")
	}

	normalized := strings.Join(lines, "\n")
	if err := parseCertificates([]byte(normalized)); err != nil {
		return "", err
	}
	return normalized, nil
}

func parseCertificates(data []byte) error {
	count := 0
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return fmt.Errorf("unexpected PEM block %q", block.Type)
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return fmt.Errorf("invalid certificate: %w", err)
		}
		count++
		data = rest
	}

	if count == 0 {
		return errors.New("no PEM certificate could be decoded")
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		return errors.New("trailing data after certificate")
	}
	return nil
}
