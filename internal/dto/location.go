package dto

// ── 地点模块 DTO ──

// LocationListRequest 地点列表查询参数
type LocationListRequest struct {
	Type string `form:"type" binding:"omitempty,oneof=country region city"`
}

// LocationResponse 地点信息响应
type LocationResponse struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	ParentID *uint  `json:"parent_id,omitempty"`
	Type     string `json:"type"`
}
