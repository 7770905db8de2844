package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/middleware"
)

func (h *Handler) CreateLoaderOrder(c *gin.Context) {
	var req models.CreateLoaderOrderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.Loaders.Create(middleware.UserID(c), req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) GetLoaderOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Loaders.Get(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

// Получатель выбирает тип ответственности до блокировки.
func (h *Handler) SelectLiability(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.SelectLiabilityInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.Loaders.SelectLiability(middleware.UserID(c), id, req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

// После подтверждения обеих сторон условия блокируются и стартует отсчёт.
func (h *Handler) ConfirmLiability(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Loaders.ConfirmLiability(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) SendPaymentDetails(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Loaders.SendPaymentDetails(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) MarkLoaderPaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Loaders.MarkPaymentSent(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) MarkAssetFrozen(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.service.Loaders.MarkAssetFrozen(middleware.UserID(c), id)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) CompleteLoaderOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.CompleteLoaderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.Loaders.Complete(middleware.UserID(c), id, req.TOTPCode)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) CancelLoaderOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.CancelOrderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.Loaders.Cancel(middleware.UserID(c), id, req.Reason)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": order,
	})
}

func (h *Handler) DisputeLoaderOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.OpenDisputeInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	dispute, err := h.service.DisputeEngine.OpenLoader(middleware.UserID(c), id, req.Reason)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": dispute,
	})
}

func (h *Handler) LoaderFeedback(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.LoaderFeedbackInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	feedback, err := h.service.Loaders.Feedback(middleware.UserID(c), id, req)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": feedback,
	})
}
