package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/middleware"
)

// Заявка на вывод: сумма резервируется сразу, исполняется после одобрения.
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req models.WithdrawInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	request, err := h.service.WithdrawalFlow.Request(middleware.UserID(c), req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": request,
	})
}

func (h *Handler) GetWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	request, err := h.service.WithdrawalFlow.Get(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": request,
	})
}

func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	requests, err := h.service.WithdrawalFlow.ListPending(middleware.UserID(c))
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": requests,
	})
}

func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	request, err := h.service.WithdrawalFlow.Approve(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": request,
	})
}

func (h *Handler) RejectWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.RejectWithdrawalInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	request, err := h.service.WithdrawalFlow.Reject(middleware.UserID(c), id, req.Reason)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": request,
	})
}
