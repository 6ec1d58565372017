package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	apperrors "github.com/cherrin1/remote-slack-server/errors"
	"github.com/cherrin1/remote-slack-server/internal/store"
)

// AdminListUsersHandler returns one page of sanitized user records.
func (a *API) AdminListUsersHandler(c echo.Context) error {
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	cursor := c.QueryParam("cursor")

	page, err := a.registry.ListUsers(c.Request().Context(), limit, cursor)
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		return c.JSON(http.StatusInternalServerError,
			apperrors.NewInternalError("failed to list users"))
	}
	return c.JSON(http.StatusOK, page)
}

// AdminStatsHandler reports the global registration counters.
func (a *API) AdminStatsHandler(c echo.Context) error {
	total, active, err := a.registry.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError,
			apperrors.NewInternalError("failed to read stats"))
	}
	return c.JSON(http.StatusOK, map[string]int64{
		"total_users":  total,
		"active_users": active,
	})
}

// AdminRotateKeyHandler mints a replacement API key for a user. The old key
// stops authenticating before this returns.
func (a *API) AdminRotateKeyHandler(c echo.Context) error {
	newKey, err := a.registry.RotateAPIKey(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound,
				apperrors.NewInvalidRequestError("unknown user id"))
		}
		log.Error().Err(err).Msg("failed to rotate api key")
		return c.JSON(http.StatusInternalServerError,
			apperrors.NewInternalError("failed to rotate api key"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"apiKey":  newKey,
	})
}

// AdminDeactivateHandler marks a user inactive; the record stays for audit.
func (a *API) AdminDeactivateHandler(c echo.Context) error {
	ok, err := a.registry.DeactivateUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Error().Err(err).Msg("failed to deactivate user")
		return c.JSON(http.StatusInternalServerError,
			apperrors.NewInternalError("failed to deactivate user"))
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": ok})
}

// AdminReactivateHandler re-enables a user under a fresh API key.
func (a *API) AdminReactivateHandler(c echo.Context) error {
	newKey, err := a.registry.ReactivateUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound,
				apperrors.NewInvalidRequestError("unknown user id"))
		}
		log.Error().Err(err).Msg("failed to reactivate user")
		return c.JSON(http.StatusInternalServerError,
			apperrors.NewInternalError("failed to reactivate user"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"apiKey":  newKey,
	})
}

// AdminCleanupHandler deactivates users idle for more than the given days.
func (a *API) AdminCleanupHandler(c echo.Context) error {
	days, err := strconv.Atoi(c.QueryParam("days"))
	if err != nil || days <= 0 {
		return c.JSON(http.StatusBadRequest,
			apperrors.NewInvalidRequestError("days must be a positive integer"))
	}

	count, err := a.registry.CleanupInactiveUsers(c.Request().Context(), days)
	if err != nil {
		log.Error().Err(err).Msg("cleanup failed")
		return c.JSON(http.StatusInternalServerError,
			apperrors.NewInternalError("cleanup failed"))
	}
	return c.JSON(http.StatusOK, map[string]int{"deactivated": count})
}
