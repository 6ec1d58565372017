package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cherrin1/remote-slack-server/domain"
	apperrors "github.com/cherrin1/remote-slack-server/errors"
	"github.com/cherrin1/remote-slack-server/internal/slack"
)

type registerRequest struct {
	PlatformToken string          `json:"platformToken"`
	UserInfo      domain.UserInfo `json:"userInfo"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	APIKey  string `json:"apiKey"`
	UserID  string `json:"userId"`
}

// RegisterHandler validates a submitted Slack token against the live
// platform and mints a user record plus API key for it.
func (a *API) RegisterHandler(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			apperrors.NewInvalidRequestError("request body must be JSON"))
	}

	if req.PlatformToken == "" {
		return c.JSON(http.StatusBadRequest,
			apperrors.NewInvalidRequestError("platformToken is required"))
	}
	if !slack.ValidTokenFormat(req.PlatformToken) {
		return c.JSON(http.StatusBadRequest,
			apperrors.NewInvalidCredentialFormat(
				"platformToken must be a Slack user token (xoxp-...)"))
	}

	// Format check passed; now validate against the live platform.
	identity, err := a.slack.AuthTest(c.Request().Context(), req.PlatformToken)
	if err != nil {
		var apiErr *slack.Error
		if errors.As(err, &apiErr) {
			log.Warn().
				Str("reason", apiErr.Reason).
				Str("token", slack.RedactToken(req.PlatformToken)).
				Msg("token rejected by slack")
			return c.JSON(http.StatusBadRequest,
				apperrors.NewUpstreamError("Slack rejected the token: "+apiErr.Reason))
		}
		log.Error().Err(err).Msg("auth.test call failed")
		return c.JSON(http.StatusBadGateway,
			apperrors.NewUpstreamError("could not reach Slack to validate the token"))
	}

	info := req.UserInfo
	if info.Name == "" {
		info.Name = identity.User
	}
	info.TeamID = identity.TeamID
	info.UserID = identity.UserID
	if info.Source == "" {
		info.Source = "register"
	}

	rec, err := a.registry.CreateUser(c.Request().Context(), req.PlatformToken, info)
	if err != nil {
		var appErr *apperrors.APIError
		if errors.As(err, &appErr) {
			return c.JSON(http.StatusBadRequest, appErr)
		}
		log.Error().Err(err).Msg("failed to create user")
		return c.JSON(http.StatusInternalServerError,
			apperrors.NewInternalError("failed to create user"))
	}

	return c.JSON(http.StatusCreated, registerResponse{
		Success: true,
		APIKey:  rec.APIKey,
		UserID:  rec.ID,
	})
}
