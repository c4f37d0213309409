package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"yukyubor/backend/internal/model"
	"yukyubor/backend/pkg/jwt"
	"yukyubor/backend/pkg/response"
)

// 上下文键，由 JWTAuth 中间件写入
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxClaims = "claims"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(CtxUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	return id, true
}

// MustGetClaims 提取当前 Token 的 Claims（登出时需要 jti 与过期时间）
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(CtxClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

// parseRequestRef 解析 /:type/:id 路径参数
func parseRequestRef(c *gin.Context) (model.RequestRef, bool) {
	t, ok := model.ParseRequestType(c.Param("type"))
	if !ok {
		response.BadRequest(c, 10001, "请求类型应为 send 或 delivery")
		return model.RequestRef{}, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, 10001, "无效的请求ID")
		return model.RequestRef{}, false
	}
	return model.RequestRef{Type: t, ID: uint(id)}, true
}
