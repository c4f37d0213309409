package dto

// DateLayout 请求日期格式
const DateLayout = "2006-01-02"

// ── 寄件 / 带件请求 DTO ──

// CreateRequestRequest 创建寄件或带件请求
type CreateRequestRequest struct {
	FromLocationID uint   `json:"from_location_id" binding:"required"`
	ToLocationID   uint   `json:"to_location_id"   binding:"required,nefield=FromLocationID"`
	FromDate       string `json:"from_date"        binding:"required,datetime=2006-01-02"`
	ToDate         string `json:"to_date"          binding:"required,datetime=2006-01-02"`
	SizeType       string `json:"size_type"        binding:"omitempty,size_type"`
	Price          *int   `json:"price"            binding:"omitempty,min=0"`
	Currency       string `json:"currency"         binding:"omitempty,currency_code"`
	Description    string `json:"description"      binding:"omitempty,max=1000"`
}

// CreateManualResponseRequest 对某个请求发起手动响应
type CreateManualResponseRequest struct {
	Message  string `json:"message"  binding:"omitempty,max=1000"`
	Amount   *int   `json:"amount"   binding:"omitempty,min=0"`
	Currency string `json:"currency" binding:"omitempty,currency_code"`
}

// ResponseActionRequest 接受 / 拒绝响应
type ResponseActionRequest struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
}
