package secure

import (
	"encoding/base64"
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

var (
	// ErrEmptyToken is returned when an authenticator responds with no body.
	ErrEmptyToken = errors.New("session token is empty")

	// ErrTokenDestroyed is returned when a token is used after Destroy.
	ErrTokenDestroyed = errors.New("session token has been destroyed")
)

// SessionToken is a Conjur access token held in locked memory.
//
// It is created once per lookup, used for one secret request and then
// destroyed. The zero value is not usable; call NewSessionToken.
type SessionToken struct {
	mu  sync.Mutex
	buf *memguard.LockedBuffer
}

// NewSessionToken moves raw into a locked buffer. The raw slice is wiped
// whether or not an error is returned.
func NewSessionToken(raw []byte) (*SessionToken, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyToken
	}

	// NewBufferFromBytes wipes raw after copying.
	buf := memguard.NewBufferFromBytes(raw)
	buf.Freeze()

	return &SessionToken{buf: buf}, nil
}

// AuthorizationHeader returns the value of the Authorization header that
// presents this token to Conjur: Token token="<base64(token)>".
func (t *SessionToken) AuthorizationHeader() (string, error) {
	encoded, err := t.Base64()
	if err != nil {
		return "", err
	}
	return `Token token="` + encoded + `"`, nil
}

// Base64 returns the standard base64 encoding of the token bytes.
func (t *SessionToken) Base64() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.buf == nil || !t.buf.IsAlive() {
		return "", ErrTokenDestroyed
	}
	return base64.StdEncoding.EncodeToString(t.buf.Bytes()), nil
}

// Len returns the token length, or 0 once destroyed.
func (t *SessionToken) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.buf == nil || !t.buf.IsAlive() {
		return 0
	}
	return t.buf.Size()
}

// Destroy zeroes and releases the token. It is idempotent and safe on a nil
// receiver so it can be deferred before the token is known to exist.
func (t *SessionToken) Destroy() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.buf == nil {
		return
	}
	t.buf.Destroy()
	t.buf = nil
}

// Destroyed reports whether Destroy has been called.
func (t *SessionToken) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf == nil
}

// String never reveals the token.
func (t *SessionToken) String() string {
	return "[REDACTED]"
}

// GoString never reveals the token.
func (t *SessionToken) GoString() string {
	return "[REDACTED]"
}
