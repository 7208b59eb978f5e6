package handler

import (
	"errors"
	"net/http"

	"github.com/Monthlyaway/ishort/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Response represents a generic API response
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse is the data of a paginated listing
type ListResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Code: status, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Message: message})
}

// statusOf maps service errors to HTTP statuses
func statusOf(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrVerificationFailed),
		errors.Is(err, service.ErrAccountNotRegistered),
		errors.Is(err, service.ErrOAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrSelfAction),
		errors.Is(err, service.ErrNotCredentialAccount):
		return http.StatusForbidden
	case errors.Is(err, service.ErrLinkNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrOAuthDisabled):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSlugTaken),
		errors.Is(err, service.ErrEmailInUse):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Unknown errors are logged
// and answered with a generic message.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		fail(c, status, "Internal server error")
		return
	}
	fail(c, status, err.Error())
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
}
