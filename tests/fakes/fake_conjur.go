package fakes

import (
	"encoding/base64"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

const stallLimit = 10 * time.Second

// RecordedRequest is a request captured by one of the fake servers
type RecordedRequest struct {
	Method string

	// Path is the escaped request path as it arrived on the wire
	Path string

	Header http.Header
	Body   string
}

func record(r *http.Request, body []byte) RecordedRequest {
	return RecordedRequest{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Header: r.Header.Clone(),
		Body:   string(body),
	}
}

// FakeConjur is an httptest TLS server speaking the subset of the Conjur
// API used for a single variable lookup: the authn-* authenticate endpoints
// and GET /secrets/{account}/variable/{id}.
//
// Usage:
//
//	conjur := fakes.NewFakeConjur()
//	defer conjur.Close()
//	conjur.SetSecret("db/password", "s3cret")
//	// Point the client at conjur.URL() and trust conjur.CertPEM()
type FakeConjur struct {
	server *httptest.Server

	// Account is the only account the fake serves
	Account string

	// Token is the session token issued by every authenticator
	Token string

	// Secrets maps decoded variable IDs to values
	Secrets map[string]string

	// AuthnStatus, when non-zero, is returned by every authenticate endpoint
	AuthnStatus int

	// SecretStatus, when non-zero, is returned by the secrets endpoint
	SecretStatus int

	// OnAuthenticate, when set, runs inside every authenticate request
	OnAuthenticate func(r *http.Request)

	// StallSecretRequests holds this many secret requests open until the
	// client gives up, before serving normally
	StallSecretRequests int

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewFakeConjur starts a fake Conjur appliance for account "myaccount"
func NewFakeConjur() *FakeConjur {
	f := &FakeConjur{
		Account: "myaccount",
		Token:   `{"protected":"fakeid"}`,
		Secrets: make(map[string]string),
	}
	f.server = httptest.NewTLSServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the https base URL of the fake
func (f *FakeConjur) URL() string {
	return f.server.URL
}

// CertPEM returns the PEM encoding of the server certificate
func (f *FakeConjur) CertPEM() string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: f.server.Certificate().Raw,
	}))
}

// Close shuts down the fake
func (f *FakeConjur) Close() {
	f.server.Close()
}

// SetSecret stores a variable value
func (f *FakeConjur) SetSecret(id, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[id] = value
}

// Requests returns a copy of the recorded requests
func (f *FakeConjur) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// RequestsTo returns the recorded requests whose path starts with prefix
func (f *FakeConjur) RequestsTo(prefix string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range f.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// AuthorizationHeader is the header value a client must send with Token
func (f *FakeConjur) AuthorizationHeader() string {
	return `Token token="` + base64.StdEncoding.EncodeToString([]byte(f.Token)) + `"`
}

func (f *FakeConjur) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, record(r, body))
	f.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/authn") && strings.HasSuffix(r.URL.Path, "/authenticate"):
		f.handleAuthenticate(w, r)
	case strings.HasPrefix(r.URL.Path, "/secrets/"):
		f.handleSecret(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeConjur) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if f.OnAuthenticate != nil {
		f.OnAuthenticate(r)
	}
	if f.AuthnStatus != 0 {
		w.WriteHeader(f.AuthnStatus)
		return
	}
	_, _ = w.Write([]byte(f.Token))
}

func (f *FakeConjur) handleSecret(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	stall := f.StallSecretRequests > 0
	if stall {
		f.StallSecretRequests--
	}
	f.mu.Unlock()

	if stall {
		select {
		case <-r.Context().Done():
		case <-time.After(stallLimit):
		}
		return
	}

	if f.SecretStatus != 0 {
		w.WriteHeader(f.SecretStatus)
		return
	}
	if r.Header.Get("Authorization") != f.AuthorizationHeader() {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	prefix := "/secrets/" + f.Account + "/variable/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	value, ok := f.Secrets[strings.TrimPrefix(r.URL.Path, prefix)]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(value))
}
