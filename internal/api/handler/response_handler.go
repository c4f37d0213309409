package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/service"
	"yukyubor/backend/pkg/response"
)

// ResponseHandler 响应模块 HTTP 处理器
type ResponseHandler struct {
	responseSvc service.ResponseService
}

// NewResponseHandler 创建 ResponseHandler
func NewResponseHandler(responseSvc service.ResponseService) *ResponseHandler {
	return &ResponseHandler{responseSvc: responseSvc}
}

// CreateManualResponse 对他人的请求发起手动响应
// POST /api/v1/requests/:type/:id/responses
func (h *ResponseHandler) CreateManualResponse(c *gin.Context) {
	target, ok := parseRequestRef(c)
	if !ok {
		return
	}

	var req dto.CreateManualResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	item, err := h.responseSvc.CreateManualResponse(c.Request.Context(), userID, target, &req)
	if err != nil {
		respondError(c, codeResponse, err)
		return
	}

	response.Created(c, item)
}

// ListMine 当前用户参与的响应
// GET /api/v1/responses
func (h *ResponseHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	items, err := h.responseSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, codeResponse, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// Act 接受或拒绝响应
// POST /api/v1/responses/:id/action
// :id 为数字 ID 或组合标识（如 delivery_3_send_7）
func (h *ResponseHandler) Act(c *gin.Context) {
	var req dto.ResponseActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	action, ok := service.ParseAction(req.Action)
	if !ok {
		response.BadRequest(c, 10001, "action 应为 accept 或 reject")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var (
		item *dto.ResponseItem
		err  error
	)
	raw := c.Param("id")
	if id, perr := strconv.ParseUint(raw, 10, 64); perr == nil && id > 0 {
		item, err = h.responseSvc.ApplyAction(c.Request.Context(), uint(id), userID, action)
	} else {
		key, kerr := model.ParseResponseKey(raw)
		if kerr != nil {
			response.BadRequest(c, 10001, kerr.Error())
			return
		}
		item, err = h.responseSvc.ApplyActionByKey(c.Request.Context(), key, userID, action)
	}
	if err != nil {
		respondError(c, codeResponse, err)
		return
	}

	response.OK(c, item)
}

// Cancel 撤回未完成的响应
// DELETE /api/v1/responses/:id
func (h *ResponseHandler) Cancel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, 10001, "无效的响应ID")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.responseSvc.CancelResponse(c.Request.Context(), uint(id), userID); err != nil {
		respondError(c, codeResponse, err)
		return
	}

	response.OK(c, nil)
}
