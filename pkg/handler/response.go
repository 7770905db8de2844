package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"p2p_escrow_back/models"
)

type Error struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, message string) {
	logrus.Error(message)
	c.AbortWithStatusJSON(statusCode, Error{Message: message})
}

func wrapOkJSON(c *gin.Context, response map[string]interface{}) {
	c.JSON(http.StatusOK, response)
}

// abortDomainError переводит доменные ошибки в HTTP-статусы. Всё
// незнакомое — 500.
func abortDomainError(c *gin.Context, err error) {
	newErrorResponse(c, domainStatus(err), err.Error())
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidStateTransition),
		errors.Is(err, models.ErrLiabilityAlreadyLocked),
		errors.Is(err, models.ErrDisputeAlreadyOpen),
		errors.Is(err, models.ErrCountdownExpired),
		errors.Is(err, models.ErrDisputeWindowClosed):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientEscrow),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidAddress),
		errors.Is(err, models.ErrBadRequestID),
		errors.Is(err, models.ErrLiabilityNotSelected),
		errors.Is(err, models.ErrLimitExceeded):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrRequires2FA),
		errors.Is(err, models.ErrRequires2FASetup),
		errors.Is(err, models.ErrAccountFrozen),
		errors.Is(err, models.ErrNotOrderParty),
		errors.Is(err, models.ErrNotAllowed),
		errors.Is(err, models.ErrFeedbackNotAllowed),
		errors.Is(err, models.ErrMasterWalletLocked):
		return http.StatusForbidden
	case errors.Is(err, models.ErrWithdrawalsDisabled),
		errors.Is(err, models.ErrDepositsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
