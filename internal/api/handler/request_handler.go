package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/service"
	"yukyubor/backend/pkg/response"
)

// RequestHandler 寄件 / 带件请求 HTTP 处理器
type RequestHandler struct {
	requestSvc service.RequestService
}

// NewRequestHandler 创建 RequestHandler
func NewRequestHandler(requestSvc service.RequestService) *RequestHandler {
	return &RequestHandler{requestSvc: requestSvc}
}

// CreateRequest 发布请求并立即匹配
// POST /api/v1/requests/:type
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	t, ok := model.ParseRequestType(c.Param("type"))
	if !ok {
		response.BadRequest(c, 10001, "请求类型应为 send 或 delivery")
		return
	}

	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.requestSvc.CreateRequest(c.Request.Context(), userID, t, &req)
	if err != nil {
		respondError(c, codeRequest, err)
		return
	}

	response.Created(c, result)
}

// ListMine 当前用户的全部请求
// GET /api/v1/requests/mine
func (h *RequestHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.requestSvc.ListMine(c.Request.Context(), userID)
	if err != nil {
		respondError(c, codeRequest, err)
		return
	}

	response.OK(c, result)
}

// Permissions 查询请求当前是否可删除、可关闭
// GET /api/v1/requests/:type/:id/permissions
func (h *RequestHandler) Permissions(c *gin.Context) {
	ref, ok := parseRequestRef(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	canDelete, err := h.requestSvc.CanDeleteRequest(ctx, ref)
	if err != nil {
		respondError(c, codeRequest, err)
		return
	}
	canClose, err := h.requestSvc.CanCloseRequest(ctx, ref)
	if err != nil {
		respondError(c, codeRequest, err)
		return
	}

	response.OK(c, gin.H{"can_delete": canDelete, "can_close": canClose})
}

// DeleteRequest 删除请求
// DELETE /api/v1/requests/:type/:id
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	h.transition(c, h.requestSvc.DeleteRequest)
}

// CloseRequest 关闭已匹配的请求
// POST /api/v1/requests/:type/:id/close
func (h *RequestHandler) CloseRequest(c *gin.Context) {
	h.transition(c, h.requestSvc.CloseRequest)
}

// CompleteRequest 标记已匹配的请求为完成
// POST /api/v1/requests/:type/:id/complete
func (h *RequestHandler) CompleteRequest(c *gin.Context) {
	h.transition(c, h.requestSvc.CompleteRequest)
}

func (h *RequestHandler) transition(c *gin.Context, op func(ctx context.Context, ref model.RequestRef, userID uint) error) {
	ref, ok := parseRequestRef(c)
	if !ok {
		return
	}
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), ref, userID); err != nil {
		respondError(c, codeRequest, err)
		return
	}

	response.OK(c, nil)
}
