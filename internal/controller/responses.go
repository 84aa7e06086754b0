package controller

import (
	"errors"
	"net/http"

	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"status":  code,
		"message": message,
	})
}

// requireUser answers 401 and returns false when the request has no signed in user.
func requireUser(c *gin.Context) (config.UserContext, bool) {
	context, err := utils.GetContext(c)
	if err != nil || !context.IsLoggedIn {
		respond(c, http.StatusUnauthorized, "Unauthorized")
		return config.UserContext{}, false
	}
	return context, true
}

// respondError maps service errors to responses. Internal details never reach the client.
func respondError(c *gin.Context, err error) {
	var exchangeErr *service.ExchangeError
	var upstreamErr *service.UpstreamError

	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  http.StatusBadRequest,
			"message": "Bad Request",
			"error":   err.Error(),
		})
	case errors.Is(err, service.ErrNotFound):
		respond(c, http.StatusNotFound, "Not Found")
	case errors.Is(err, service.ErrUnsupportedPlatform):
		respond(c, http.StatusNotFound, "Unsupported platform")
	case errors.Is(err, service.ErrConflict):
		respond(c, http.StatusConflict, "Conflict")
	case errors.Is(err, service.ErrNotConfigured):
		c.JSON(http.StatusPreconditionFailed, gin.H{
			"status":             http.StatusPreconditionFailed,
			"message":            "Platform not configured",
			"needsConfiguration": true,
		})
	case errors.As(err, &exchangeErr):
		tlog.App.Warn().Err(err).Str("platform", exchangeErr.Platform).Msg("Token exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"status":   http.StatusBadGateway,
			"message":  "Token exchange failed",
			"upstream": exchangeErr.Body,
		})
	case errors.As(err, &upstreamErr):
		tlog.App.Warn().Err(err).Str("platform", upstreamErr.Platform).Msg("Platform call failed")
		respond(c, http.StatusBadGateway, "Bad Gateway")
	default:
		tlog.App.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		respond(c, http.StatusInternalServerError, "Internal Server Error")
	}
}
