package imds

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/conjurvar/pkg/conjur"
	"github.com/systmms/conjurvar/tests/fakes"
)

func newTestClient(t *testing.T, f *fakes.FakeIMDS) *Client {
	t.Helper()
	return New(Config{Endpoint: f.URL()}, nil)
}

func TestRetrieveWithIMDSv2(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeIMDS()
	defer f.Close()
	f.RequireToken = true

	creds, err := newTestClient(t, f).Retrieve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, f.AccessKeyID, creds.AccessKeyID)
	assert.Equal(t, f.SecretAccessKey, creds.SecretAccessKey)
	assert.Equal(t, f.SessionToken, creds.SessionToken)
	assert.Equal(t, "EC2InstanceMetadata", creds.Source)
	assert.True(t, creds.CanExpire)

	reqs := f.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "21600", reqs[0].Header.Get("X-aws-ec2-metadata-token-ttl-seconds"))
	assert.Equal(t, f.Token, reqs[1].Header.Get("X-aws-ec2-metadata-token"))
	assert.Equal(t, "/latest/meta-data/iam/security-credentials/conjur-role", reqs[2].Path)
}

func TestRetrieveFallsBackToIMDSv1(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeIMDS()
	defer f.Close()
	f.DisableV2 = true

	c := newTestClient(t, f)
	assert.Empty(t, c.FetchToken(context.Background()))

	creds, err := c.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.AccessKeyID, creds.AccessKeyID)

	for _, r := range f.Requests() {
		if r.Method == http.MethodGet {
			assert.Empty(t, r.Header.Get("X-aws-ec2-metadata-token"), "v1 requests carry no token header")
		}
	}
}

func TestFetchTokenUnreachable(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeIMDS()
	url := f.URL()
	f.Close()

	c := New(Config{Endpoint: url}, nil)
	assert.Empty(t, c.FetchToken(context.Background()))

	_, err := c.FetchRoleName(context.Background(), "")
	var mdErr *conjur.MetadataError
	require.ErrorAs(t, err, &mdErr)
	assert.Equal(t, CredentialsPath, mdErr.Endpoint)
}

func TestRetrieveFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configure  func(f *fakes.FakeIMDS)
		wantStatus int
	}{
		{
			name:       "role listing forbidden",
			configure:  func(f *fakes.FakeIMDS) { f.RoleStatus = http.StatusForbidden },
			wantStatus: http.StatusForbidden,
		},
		{
			name:      "no role attached",
			configure: func(f *fakes.FakeIMDS) { f.RoleName = "" },
		},
		{
			name:       "credentials document missing",
			configure:  func(f *fakes.FakeIMDS) { f.CredentialsStatus = http.StatusNotFound },
			wantStatus: http.StatusNotFound,
		},
		{
			name:      "malformed credentials document",
			configure: func(f *fakes.FakeIMDS) { f.CredentialsBody = "{not json" },
		},
		{
			name:      "credentials document without keys",
			configure: func(f *fakes.FakeIMDS) { f.CredentialsBody = `{"Code":"Success"}` },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := fakes.NewFakeIMDS()
			defer f.Close()
			tt.configure(f)

			_, err := newTestClient(t, f).Retrieve(context.Background())

			var mdErr *conjur.MetadataError
			require.ErrorAs(t, err, &mdErr)
			assert.Equal(t, tt.wantStatus, mdErr.StatusCode)
			assert.NotContains(t, err.Error(), f.SecretAccessKey)
		})
	}
}

func TestRetrieveHonorsContext(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeIMDS()
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, f).Retrieve(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
