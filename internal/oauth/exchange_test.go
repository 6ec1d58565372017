package oauth

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherrin1/remote-slack-server/domain"
	oautherr "github.com/cherrin1/remote-slack-server/errors"
	"github.com/cherrin1/remote-slack-server/internal/store"
)

const connectURL = "https://mcp.example.test/connect"

func newTestExchange(ttl time.Duration) *Exchange {
	return NewExchange(store.NewMemoryStore(), connectURL, ttl)
}

func TestBeginAuthorization(t *testing.T) {
	ex := newTestExchange(0)

	redirectURL, err := ex.BeginAuthorization("client-1", "https://example.test/cb", "s1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(redirectURL, connectURL+"?"))

	parsed, err := url.Parse(redirectURL)
	require.NoError(t, err)
	q := parsed.Query()

	assert.Len(t, q.Get("auth_code"), 64)
	assert.Equal(t, "https://example.test/cb", q.Get("redirect_uri"))
	assert.Equal(t, "s1", q.Get("state"))
}

func TestBeginAuthorization_MissingParams(t *testing.T) {
	ex := newTestExchange(0)

	_, err := ex.BeginAuthorization("", "https://example.test/cb", "")
	require.Error(t, err)
	assert.Equal(t, oautherr.InvalidRequest, err.(*oautherr.OAuth2Error).Code)

	_, err = ex.BeginAuthorization("client-1", "", "")
	require.Error(t, err)
	assert.Equal(t, oautherr.InvalidRequest, err.(*oautherr.OAuth2Error).Code)
}

func TestBeginAuthorization_CodesAreUnique(t *testing.T) {
	ex := newTestExchange(0)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		redirectURL, err := ex.BeginAuthorization("c", "https://example.test/cb", "")
		require.NoError(t, err)
		parsed, _ := url.Parse(redirectURL)
		code := parsed.Query().Get("auth_code")
		assert.False(t, seen[code])
		seen[code] = true
	}
}

func TestStoreAndExchangeRoundTrip(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(0)

	require.NoError(t, ex.StoreToken(ctx, "code-1", "smcp_deadbeef"))

	resp, err := ex.Exchange(ctx, GrantTypeAuthorizationCode, "code-1", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "smcp_deadbeef", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, accessTokenExpiresIn, resp.ExpiresIn)
	assert.Equal(t, Scope, resp.Scope)
}

func TestExchange_SingleUse(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(0)

	require.NoError(t, ex.StoreToken(ctx, "code-1", "smcp_deadbeef"))

	_, err := ex.Exchange(ctx, GrantTypeAuthorizationCode, "code-1", "client-1")
	require.NoError(t, err)

	_, redeemedErr := ex.Exchange(ctx, GrantTypeAuthorizationCode, "code-1", "client-1")
	require.Error(t, redeemedErr)

	_, neverStoredErr := ex.Exchange(ctx, GrantTypeAuthorizationCode, "code-never-stored", "client-1")
	require.Error(t, neverStoredErr)

	// An already-redeemed code and a never-stored code fail identically.
	assert.Equal(t, neverStoredErr.(*oautherr.OAuth2Error), redeemedErr.(*oautherr.OAuth2Error))
	assert.Equal(t, oautherr.InvalidGrant, redeemedErr.(*oautherr.OAuth2Error).Code)
}

func TestExchange_ExpiredCodeBehavesLikeNeverStored(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(20 * time.Millisecond)

	require.NoError(t, ex.StoreToken(ctx, "code-1", "smcp_deadbeef"))
	time.Sleep(40 * time.Millisecond)

	_, expiredErr := ex.Exchange(ctx, GrantTypeAuthorizationCode, "code-1", "client-1")
	require.Error(t, expiredErr)

	_, neverStoredErr := ex.Exchange(ctx, GrantTypeAuthorizationCode, "code-2", "client-1")
	require.Error(t, neverStoredErr)

	assert.Equal(t, neverStoredErr.(*oautherr.OAuth2Error), expiredErr.(*oautherr.OAuth2Error))
}

func TestExchange_BadRequests(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(0)

	_, err := ex.Exchange(ctx, "client_credentials", "code-1", "client-1")
	require.Error(t, err)
	assert.Equal(t, oautherr.UnsupportedGrantType, err.(*oautherr.OAuth2Error).Code)

	_, err = ex.Exchange(ctx, GrantTypeAuthorizationCode, "", "client-1")
	require.Error(t, err)
	assert.Equal(t, oautherr.InvalidRequest, err.(*oautherr.OAuth2Error).Code)
}

func TestStoreToken_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(0)

	require.NoError(t, ex.StoreToken(ctx, "code-1", "smcp_first"))
	require.NoError(t, ex.StoreToken(ctx, "code-1", "smcp_second"))

	resp, err := ex.Exchange(ctx, GrantTypeAuthorizationCode, "code-1", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "smcp_second", resp.AccessToken)
}

func TestStoreToken_RecordsHandoffMetadata(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ex := NewExchange(st, connectURL, time.Minute)

	require.NoError(t, ex.StoreToken(ctx, "code-1", "smcp_deadbeef"))

	raw, err := st.Get(ctx, "oauth_code:code-1")
	require.NoError(t, err)

	var entry domain.AuthorizationCode
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, "code-1", entry.Code)
	assert.Equal(t, "smcp_deadbeef", entry.Payload)
	assert.WithinDuration(t, entry.CreatedAt.Add(time.Minute), entry.ExpiresAt, time.Second)
}

func TestStoreToken_MissingArguments(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(0)

	require.Error(t, ex.StoreToken(ctx, "", "smcp_x"))
	require.Error(t, ex.StoreToken(ctx, "code-1", ""))
}
