package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/middleware"
)

func (h *Handler) GetWallets(c *gin.Context) {
	wallets, err := h.service.Wallets.Wallets(middleware.UserID(c))
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": wallets,
	})
}

// История движений по кошельку. Валюта передаётся query-параметром.
func (h *Handler) GetTransactions(c *gin.Context) {
	currency := c.Query("currency")
	if currency == "" {
		newErrorResponse(c, http.StatusBadRequest, "currency query parameter is required")
		return
	}

	txs, err := h.service.Wallets.Transactions(middleware.UserID(c), currency)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": txs,
	})
}

func (h *Handler) Deposit(c *gin.Context) {
	var req models.DepositInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	wallet, err := h.service.Wallets.Deposit(middleware.UserID(c), req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": wallet,
	})
}
