package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/aws/aws-sdk-go-v2/aws"
)

// FakeAzureCredential is a test double for azcore.TokenCredential
type FakeAzureCredential struct {
	mu sync.Mutex

	// Token is handed out by GetToken
	Token string

	// Err is returned by GetToken if set
	Err error

	scopes []string
}

// GetToken records the requested scopes and returns Token
func (f *FakeAzureCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scopes = opts.Scopes
	if f.Err != nil {
		return azcore.AccessToken{}, f.Err
	}
	return azcore.AccessToken{Token: f.Token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// Scopes returns the scopes of the last GetToken call
func (f *FakeAzureCredential) Scopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scopes
}

// FakeGCPMetadata is a test double for the GCE metadata client
type FakeGCPMetadata struct {
	mu sync.Mutex

	// Token is returned for every suffix
	Token string

	// Err is returned by GetWithContext if set
	Err error

	suffix string
}

// GetWithContext records the requested suffix and returns Token
func (f *FakeGCPMetadata) GetWithContext(_ context.Context, suffix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.suffix = suffix
	return f.Token, f.Err
}

// Suffix returns the metadata path of the last request
func (f *FakeGCPMetadata) Suffix() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suffix
}

// FakeAWSCredentials is a static aws.CredentialsProvider
type FakeAWSCredentials struct {
	Credentials aws.Credentials

	// Err is returned by Retrieve if set
	Err error
}

// Retrieve returns Credentials or Err
func (f FakeAWSCredentials) Retrieve(context.Context) (aws.Credentials, error) {
	return f.Credentials, f.Err
}
