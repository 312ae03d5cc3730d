package fakes

import (
	"sync"

	"github.com/zalando/go-keyring"
)

// FakeKeyring is an in-memory OS keyring.
//
// Missing items report keyring.ErrNotFound, matching the real backends.
type FakeKeyring struct {
	mu sync.Mutex

	// Secrets is a map of service -> user -> value
	Secrets map[string]map[string]string

	// GetErr is returned by Get if set (overrides Secrets lookup)
	GetErr error

	lookups int
}

// NewFakeKeyring creates an empty fake keyring
func NewFakeKeyring() *FakeKeyring {
	return &FakeKeyring{Secrets: make(map[string]map[string]string)}
}

// SetSecret stores a value for service and user
func (f *FakeKeyring) SetSecret(service, user, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Secrets == nil {
		f.Secrets = make(map[string]map[string]string)
	}
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][user] = value
}

// Get returns the stored value for service and user
func (f *FakeKeyring) Get(service, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups++
	if f.GetErr != nil {
		return "", f.GetErr
	}
	if users, ok := f.Secrets[service]; ok {
		if value, ok := users[user]; ok {
			return value, nil
		}
	}
	return "", keyring.ErrNotFound
}

// Lookups returns how many times Get was called
func (f *FakeKeyring) Lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}
