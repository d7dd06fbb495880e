package server

import (
	"errors"
	"net/http"

	catalogdomain "github.com/anishghanwat/storemybottle/internal/catalog/domain"
	ledgerdomain "github.com/anishghanwat/storemybottle/internal/ledger/domain"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e apiError) Error() string { return e.Code }

func invalidRequestError() apiError {
	return apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request body"}
}

func newValidationError(field, code, message string) apiError {
	return apiError{Status: http.StatusBadRequest, Code: code, Field: field, Message: message}
}

// AbortWithError funnels every handler error through one place so domain
// sentinels map to consistent status codes and bodies.
func AbortWithError(c *gin.Context, err error) {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := statusForError(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": apiError{
			Code:    "internal_error",
			Message: "internal error",
		}})
		return
	}

	c.AbortWithStatusJSON(status, gin.H{"error": apiError{
		Code:    err.Error(),
		Message: messageForError(err),
	}})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrVenueNotFound),
		errors.Is(err, catalogdomain.ErrBottleNotFound),
		errors.Is(err, purchasedomain.ErrPurchaseNotFound),
		errors.Is(err, ledgerdomain.ErrLedgerNotFound),
		errors.Is(err, redemptiondomain.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, purchasedomain.ErrInvalidState),
		errors.Is(err, purchasedomain.ErrUnavailable),
		errors.Is(err, ledgerdomain.ErrInsufficientBalance),
		errors.Is(err, redemptiondomain.ErrBottleExpired),
		errors.Is(err, redemptiondomain.ErrTokenNotPending):
		return http.StatusConflict
	case errors.Is(err, purchasedomain.ErrInvalidMethod),
		errors.Is(err, purchasedomain.ErrInvalidUser),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, redemptiondomain.ErrInvalidPegSize):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func messageForError(err error) string {
	switch {
	case errors.Is(err, purchasedomain.ErrUnavailable):
		return "bottle is not available for purchase"
	case errors.Is(err, purchasedomain.ErrInvalidState):
		return "purchase already processed"
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return "insufficient remaining volume"
	case errors.Is(err, redemptiondomain.ErrInvalidPegSize):
		return "peg size is not allowed"
	case errors.Is(err, redemptiondomain.ErrBottleExpired):
		return "bottle has expired"
	case errors.Is(err, redemptiondomain.ErrTokenNotPending):
		return "token is no longer pending"
	default:
		return err.Error()
	}
}
