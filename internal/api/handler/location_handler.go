package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/service"
	"yukyubor/backend/pkg/response"
)

// LocationHandler 地点模块 HTTP 处理器
type LocationHandler struct {
	locationSvc service.LocationService
}

// NewLocationHandler 创建 LocationHandler
func NewLocationHandler(locationSvc service.LocationService) *LocationHandler {
	return &LocationHandler{locationSvc: locationSvc}
}

// ListLocations 获取地点列表
// GET /api/v1/locations?type=city
func (h *LocationHandler) ListLocations(c *gin.Context) {
	var req dto.LocationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	locations, err := h.locationSvc.List(c.Request.Context(), &req)
	if err != nil {
		respondError(c, codeLocation, err)
		return
	}

	response.OK(c, gin.H{"list": locations})
}

// GetLocation 获取地点详情
// GET /api/v1/locations/:id
func (h *LocationHandler) GetLocation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, 10001, "无效的地点ID")
		return
	}

	location, err := h.locationSvc.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, codeLocation, err)
		return
	}

	response.OK(c, location)
}
