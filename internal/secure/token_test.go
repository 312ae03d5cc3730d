package secure

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "json token body", data: []byte(`{"protected":"fakeid"}`)},
		{name: "binary data", data: []byte{0x00, 0xFF, 0x10, 0x20}},
		{name: "empty body", data: []byte{}, wantErr: ErrEmptyToken},
		{name: "nil body", data: nil, wantErr: ErrEmptyToken},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tok, err := NewSessionToken(tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tok)
				return
			}
			require.NoError(t, err)
			defer tok.Destroy()

			assert.Equal(t, len(tt.data), tok.Len())
		})
	}
}

func TestSessionTokenWipesSource(t *testing.T) {
	t.Parallel()

	raw := []byte("session-token-bytes")
	tok, err := NewSessionToken(raw)
	require.NoError(t, err)
	defer tok.Destroy()

	assert.Equal(t, make([]byte, len(raw)), raw, "source slice should be zeroed")
}

func TestSessionTokenAuthorizationHeader(t *testing.T) {
	t.Parallel()

	tok, err := NewSessionToken([]byte(`{"protected":"fakeid"}`))
	require.NoError(t, err)
	defer tok.Destroy()

	header, err := tok.AuthorizationHeader()
	require.NoError(t, err)
	assert.Equal(t, `Token token="eyJwcm90ZWN0ZWQiOiJmYWtlaWQifQ=="`, header)
}

func TestSessionTokenDestroy(t *testing.T) {
	t.Parallel()

	tok, err := NewSessionToken([]byte("short-lived"))
	require.NoError(t, err)

	assert.False(t, tok.Destroyed())
	tok.Destroy()
	assert.True(t, tok.Destroyed())
	assert.Equal(t, 0, tok.Len())

	// Idempotent
	tok.Destroy()

	_, err = tok.Base64()
	assert.ErrorIs(t, err, ErrTokenDestroyed)
	_, err = tok.AuthorizationHeader()
	assert.ErrorIs(t, err, ErrTokenDestroyed)
}

func TestSessionTokenNilDestroy(t *testing.T) {
	t.Parallel()

	var tok *SessionToken
	assert.NotPanics(t, tok.Destroy)
}

func TestSessionTokenNeverFormatsValue(t *testing.T) {
	t.Parallel()

	tok, err := NewSessionToken([]byte("do-not-print-me"))
	require.NoError(t, err)
	defer tok.Destroy()

	for _, s := range []string{
		fmt.Sprintf("%s", tok),
		fmt.Sprintf("%v", tok),
		fmt.Sprintf("%#v", tok),
	} {
		assert.NotContains(t, s, "do-not-print-me")
	}
}

func TestSessionTokenConcurrentAccess(t *testing.T) {
	t.Parallel()

	tok, err := NewSessionToken([]byte("concurrent-token"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tok.Base64()
			_ = tok.Len()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		tok.Destroy()
	}()
	wg.Wait()

	assert.True(t, tok.Destroyed())
}
