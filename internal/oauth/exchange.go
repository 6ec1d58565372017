// Package oauth implements the authorization-code handoff. A code moves
// through three steps: minted on /oauth/authorize, bound to a credential
// when the user submits the connect form, and redeemed exactly once at
// /oauth/token. An expired or redeemed code is indistinguishable from one
// that never existed.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cherrin1/remote-slack-server/domain"
	oautherr "github.com/cherrin1/remote-slack-server/errors"
	"github.com/cherrin1/remote-slack-server/internal/store"
)

const (
	codeKeyPrefix = "oauth_code:"

	// GrantTypeAuthorizationCode is the only grant this exchange supports.
	GrantTypeAuthorizationCode = "authorization_code"

	// accessTokenExpiresIn is protocol metadata only. The credential handed
	// back is a long-lived key the exchange does not expire on this
	// schedule.
	accessTokenExpiresIn = 365 * 24 * 3600

	// Scope is advertised in discovery and echoed on exchange.
	Scope = "slack:read slack:write"
)

// Exchange issues authorization codes and redeems them for stored
// credentials. It owns the oauth_code: namespace.
type Exchange struct {
	store      store.Store
	connectURL string
	codeTTL    time.Duration
}

// NewExchange creates an exchange. connectURL is the absolute URL of the
// human-facing connect page; codeTTL bounds the whole handoff.
func NewExchange(st store.Store, connectURL string, codeTTL time.Duration) *Exchange {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	return &Exchange{
		store:      st,
		connectURL: connectURL,
		codeTTL:    codeTTL,
	}
}

// generateCode mints an unguessable authorization code.
func generateCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate auth code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// BeginAuthorization starts a handoff: it mints a code and returns the
// connect-page URL carrying the code alongside redirect_uri and state, both
// passed through opaquely. Nothing is stored yet; the code only becomes
// redeemable once StoreToken runs.
func (e *Exchange) BeginAuthorization(clientID, redirectURI, state string) (string, error) {
	if clientID == "" {
		return "", oautherr.NewInvalidRequest("client_id is required")
	}
	if redirectURI == "" {
		return "", oautherr.NewInvalidRequest("redirect_uri is required")
	}

	code, err := generateCode()
	if err != nil {
		return "", oautherr.NewServerError("failed to generate authorization code")
	}

	q := url.Values{}
	q.Set("auth_code", code)
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}

	log.Debug().
		Str("client_id", clientID).
		Str("code_prefix", code[:8]).
		Msg("authorization started")

	return e.connectURL + "?" + q.Encode(), nil
}

// StoreToken binds a credential to an in-flight code with a fixed TTL. A
// second submission for the same code overwrites the first; the code is
// single-user and short-lived, so the race is accepted.
func (e *Exchange) StoreToken(ctx context.Context, code, credential string) error {
	if code == "" || credential == "" {
		return oautherr.NewInvalidRequest("authCode and token are required")
	}

	now := time.Now()
	entry := domain.AuthorizationCode{
		Code:      code,
		Payload:   credential,
		CreatedAt: now,
		ExpiresAt: now.Add(e.codeTTL),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return oautherr.NewServerError("failed to store credential")
	}

	if err := e.store.SetEx(ctx, codeKeyPrefix+code, string(raw), e.codeTTL); err != nil {
		return oautherr.NewServerError("failed to store credential")
	}

	log.Info().Str("code_prefix", code[:min(8, len(code))]).Msg("credential stored against authorization code")

	return nil
}

// Exchange redeems a code for its stored credential. The atomic GetDel makes
// the code single-use: a never-stored, expired and already-redeemed code all
// fail with the identical invalid_grant, which doubles as replay-probing
// defense.
func (e *Exchange) Exchange(ctx context.Context, grantType, code, clientID string) (*domain.TokenResponse, error) {
	if grantType != GrantTypeAuthorizationCode {
		return nil, oautherr.NewUnsupportedGrantType()
	}
	if code == "" {
		return nil, oautherr.NewInvalidRequest("code is required")
	}

	raw, err := e.store.GetDel(ctx, codeKeyPrefix+code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oautherr.NewInvalidGrant("authorization code is invalid or expired")
		}
		return nil, oautherr.NewServerError("failed to redeem authorization code")
	}

	var entry domain.AuthorizationCode
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, oautherr.NewServerError("failed to redeem authorization code")
	}

	log.Info().
		Str("client_id", clientID).
		Str("code_prefix", code[:min(8, len(code))]).
		Msg("authorization code redeemed")

	return &domain.TokenResponse{
		AccessToken: entry.Payload,
		TokenType:   "Bearer",
		ExpiresIn:   accessTokenExpiresIn,
		Scope:       Scope,
	}, nil
}
