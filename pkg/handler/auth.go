package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/middleware"
)

// Логин по имени: находит или создаёт пользователя. Сессии и подписи — во
// внешнем шлюзе.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Authorization.Login(req.Username)
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": user,
	})
}

func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.service.Authorization.GetUser(middleware.UserID(c))
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": user,
	})
}

// Выдаёт секрет и otpauth-URL. 2FA включится после первого верного кода.
func (h *Handler) SetupTwoFA(c *gin.Context) {
	secret, url, err := h.service.TwoFA.Setup(middleware.UserID(c))
	if err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"secret": secret,
		"url":    url,
	})
}

func (h *Handler) VerifyTwoFA(c *gin.Context) {
	var req models.ConfirmOrderInput
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.TwoFA.VerifySetup(middleware.UserID(c), req.TOTPCode); err != nil {
		abortDomainError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"enabled": true,
	})
}

// pathID разбирает параметр :id маршрута.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		newErrorResponse(c, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
