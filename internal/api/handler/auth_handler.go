package handler

import (
	"github.com/gin-gonic/gin"

	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/service"
	"yukyubor/backend/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// LoginTelegram Telegram Web App 登录
// POST /api/v1/auth/telegram
func (h *AuthHandler) LoginTelegram(c *gin.Context) {
	var req dto.TelegramLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authSvc.LoginTelegram(c.Request.Context(), &req)
	if err != nil {
		respondError(c, codeAuth, err)
		return
	}

	response.OK(c, result)
}

// Logout 用户登出
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, codeAuth, err)
		return
	}

	response.OK(c, nil)
}

// Me 获取当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, codeAuth, err)
		return
	}

	response.OK(c, user)
}
