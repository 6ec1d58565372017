package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cherrin1/remote-slack-server/domain"
	oautherr "github.com/cherrin1/remote-slack-server/errors"
	"github.com/cherrin1/remote-slack-server/internal/oauth"
	"github.com/cherrin1/remote-slack-server/internal/slack"
)

// AuthorizeHandler starts the authorization-code handoff: it validates the
// request and redirects the browser to the connect page with the freshly
// minted code, passing redirect_uri and state through opaquely.
func (a *API) AuthorizeHandler(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	redirectURI := c.QueryParam("redirect_uri")
	state := c.QueryParam("state")
	responseType := c.QueryParam("response_type")

	if responseType != "" && responseType != "code" {
		return c.JSON(http.StatusBadRequest,
			oautherr.NewInvalidRequest("Unsupported response_type"))
	}

	redirectURL, err := a.exchange.BeginAuthorization(clientID, redirectURI, state)
	if err != nil {
		var oauthErr *oautherr.OAuth2Error
		if errors.As(err, &oauthErr) {
			return c.JSON(http.StatusBadRequest, oauthErr)
		}
		log.Error().Err(err).Msg("failed to begin authorization")
		return c.JSON(http.StatusInternalServerError,
			oautherr.NewServerError("failed to begin authorization"))
	}

	return c.Redirect(http.StatusFound, redirectURL)
}

type storeTokenRequest struct {
	AuthCode string `json:"authCode"`
	Token    string `json:"token"`
}

// StoreTokenHandler receives the connect-page submission. It validates the
// Slack token live, registers the user, and binds the minted API key to the
// in-flight authorization code. The raw Slack secret is never stored
// against the code, so the exchange can only ever hand back an API key.
func (a *API) StoreTokenHandler(c echo.Context) error {
	var req storeTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			oautherr.NewInvalidRequest("request body must be JSON"))
	}
	if req.AuthCode == "" || req.Token == "" {
		return c.JSON(http.StatusBadRequest,
			oautherr.NewInvalidRequest("authCode and token are required"))
	}
	if !slack.ValidTokenFormat(req.Token) {
		// Browser-facing endpoint, so the registration error vocabulary
		// applies here rather than RFC 6749's.
		return c.JSON(http.StatusBadRequest,
			oautherr.NewInvalidCredentialFormat("token must be a Slack user token (xoxp-...)"))
	}

	identity, err := a.slack.AuthTest(c.Request().Context(), req.Token)
	if err != nil {
		var apiErr *slack.Error
		if errors.As(err, &apiErr) {
			return c.JSON(http.StatusBadRequest,
				oautherr.NewInvalidRequest("Slack rejected the token: "+apiErr.Reason))
		}
		log.Error().Err(err).Msg("auth.test call failed")
		return c.JSON(http.StatusBadGateway,
			oautherr.NewServerError("could not reach Slack to validate the token"))
	}

	rec, err := a.registry.CreateUser(c.Request().Context(), req.Token, domain.UserInfo{
		Name:   identity.User,
		TeamID: identity.TeamID,
		UserID: identity.UserID,
		Source: "oauth",
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create user during oauth handoff")
		return c.JSON(http.StatusInternalServerError,
			oautherr.NewServerError("failed to create user"))
	}

	if err := a.exchange.StoreToken(c.Request().Context(), req.AuthCode, rec.APIKey); err != nil {
		var oauthErr *oautherr.OAuth2Error
		if errors.As(err, &oauthErr) && oauthErr.Code != oautherr.ServerError {
			return c.JSON(http.StatusBadRequest, oauthErr)
		}
		log.Error().Err(err).Msg("failed to store credential against code")
		return c.JSON(http.StatusInternalServerError,
			oautherr.NewServerError("failed to store credential"))
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// TokenHandler redeems an authorization code for the stored credential.
// Parameters arrive form-encoded per RFC 6749; a JSON body is accepted too.
func (a *API) TokenHandler(c echo.Context) error {
	grantType := c.FormValue("grant_type")
	code := c.FormValue("code")
	clientID := c.FormValue("client_id")

	if grantType == "" && code == "" {
		var body struct {
			GrantType string `json:"grant_type"`
			Code      string `json:"code"`
			ClientID  string `json:"client_id"`
		}
		if err := c.Bind(&body); err == nil {
			grantType, code, clientID = body.GrantType, body.Code, body.ClientID
		}
	}

	resp, err := a.exchange.Exchange(c.Request().Context(), grantType, code, clientID)
	if err != nil {
		var oauthErr *oautherr.OAuth2Error
		if errors.As(err, &oauthErr) {
			if oauthErr.Code == oautherr.ServerError {
				return c.JSON(http.StatusInternalServerError, oauthErr)
			}
			return c.JSON(http.StatusBadRequest, oauthErr)
		}
		return c.JSON(http.StatusInternalServerError,
			oautherr.NewServerError("token exchange failed"))
	}

	return c.JSON(http.StatusOK, resp)
}

// OAuthConfigHandler serves endpoint discovery metadata.
func (a *API) OAuthConfigHandler(c echo.Context) error {
	base := a.cfg.PublicURL
	return c.JSON(http.StatusOK, map[string]interface{}{
		"issuer":                   base,
		"authorization_endpoint":   base + "/oauth/authorize",
		"token_endpoint":           base + "/oauth/token",
		"registration_endpoint":    base + "/register",
		"client_id":                a.cfg.OAuthClientID,
		"scopes_supported":         []string{oauth.Scope},
		"response_types_supported": []string{"code"},
		"grant_types_supported":    []string{oauth.GrantTypeAuthorizationCode},
	})
}
