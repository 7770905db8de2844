package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/middleware"
)

func (h *Handler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.Orders.Create(middleware.UserID(c), req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Orders.Get(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) DepositOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Orders.Deposit(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) MarkOrderPaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Orders.MarkPaid(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) DeliverOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Orders.Deliver(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

// Финальное подтверждение покупателя, требует код 2FA в теле запроса.
func (h *Handler) ConfirmOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.ConfirmOrderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.Orders.Confirm(middleware.UserID(c), id, req.TOTPCode)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.CancelOrderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.Orders.Cancel(middleware.UserID(c), id, req.Reason)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) DisputeOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.OpenDisputeInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	dispute, err := h.service.DisputeEngine.OpenMarketplace(middleware.UserID(c), id, req.Reason)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": dispute,
	})
}
