package dto

// ── 认证模块响应 ──

// TokenResponse 登录成功响应
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"` // Access Token 有效期（秒）
	User        UserResponse `json:"user"`
}

// UserResponse 用户信息响应
type UserResponse struct {
	ID           uint   `json:"id"`
	TelegramID   int64  `json:"telegram_id"`
	Name         string `json:"name"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role"`
	LinksBalance int    `json:"links_balance"`
}

// ── 请求模块响应 ──

// RequestResponse 寄件 / 带件请求信息
type RequestResponse struct {
	ID                   uint   `json:"id"`
	Type                 string `json:"type"`
	UserID               uint   `json:"user_id"`
	FromLocationID       uint   `json:"from_location_id"`
	ToLocationID         uint   `json:"to_location_id"`
	FromDate             string `json:"from_date"`
	ToDate               string `json:"to_date"`
	SizeType             string `json:"size_type,omitempty"`
	Price                *int   `json:"price,omitempty"`
	Currency             string `json:"currency,omitempty"`
	Description          string `json:"description,omitempty"`
	Status               string `json:"status"`
	MatchedCounterpartID *uint  `json:"matched_counterpart_id,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// CreateRequestResult 创建请求结果（含本次生成的匹配数）
type CreateRequestResult struct {
	Request RequestResponse `json:"request"`
	Matches int             `json:"matches"`
}

// MyRequestsResponse 当前用户的全部请求
type MyRequestsResponse struct {
	Send     []RequestResponse `json:"send"`
	Delivery []RequestResponse `json:"delivery"`
}

// ── 响应模块响应 ──

// ResponseItem 响应信息
type ResponseItem struct {
	ID              uint   `json:"id"`
	Key             string `json:"key,omitempty"` // 自动匹配响应的组合标识
	UserID          uint   `json:"user_id"`
	ResponderID     uint   `json:"responder_id"`
	ResponseType    string `json:"response_type"`
	OfferType       string `json:"offer_type"`
	OfferID         uint   `json:"offer_id"`
	RequestID       uint   `json:"request_id"`
	DelivererStatus string `json:"deliverer_status"`
	SenderStatus    string `json:"sender_status"`
	OverallStatus   string `json:"overall_status"`
	ChatID          *uint  `json:"chat_id,omitempty"`
	Message         string `json:"message,omitempty"`
	Amount          *int   `json:"amount,omitempty"`
	Currency        string `json:"currency,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}
