package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/middleware"
)

func (h *Handler) ListDisputes(c *gin.Context) {
	disputes, err := h.service.DisputeEngine.List(middleware.UserID(c), c.Query("status"))
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": disputes,
	})
}

func (h *Handler) DisputeDetail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.service.DisputeEngine.Detail(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": detail,
	})
}

func (h *Handler) PostDisputeMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.DisputeMessageInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.service.DisputeEngine.PostMessage(middleware.UserID(c), id, req.Body)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": message,
	})
}

// Решение спора: request_id обязателен, повтор с тем же id безопасен.
func (h *Handler) ResolveDispute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.ResolveDisputeInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	dispute, err := h.service.DisputeEngine.Resolve(middleware.UserID(c), id, req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": dispute,
	})
}

func (h *Handler) FreezeUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.DisputeEngine.Freeze(middleware.UserID(c), id); err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"frozen": true,
	})
}

func (h *Handler) UnfreezeUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.DisputeEngine.Unfreeze(middleware.UserID(c), id); err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"frozen": false,
	})
}
