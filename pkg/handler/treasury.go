package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/middleware"
)

func (h *Handler) GetTreasury(c *gin.Context) {
	controls, err := h.service.TreasuryDesk.Get(middleware.UserID(c))
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": controls,
	})
}

func (h *Handler) PatchTreasury(c *gin.Context) {
	var req models.TreasuryPatch
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	controls, err := h.service.TreasuryDesk.Patch(middleware.UserID(c), req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": controls,
	})
}

// Разблокировка мастер-кошелька требует код 2FA.
func (h *Handler) UnlockMasterWallet(c *gin.Context) {
	var req models.ConfirmOrderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	controls, err := h.service.TreasuryDesk.Unlock(middleware.UserID(c), req.TOTPCode)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": controls,
	})
}

func (h *Handler) LockMasterWallet(c *gin.Context) {
	controls, err := h.service.TreasuryDesk.Lock(middleware.UserID(c))
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": controls,
	})
}

func (h *Handler) TreasuryActions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	actions, err := h.service.TreasuryDesk.AdminActions(middleware.UserID(c), limit)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": actions,
	})
}
