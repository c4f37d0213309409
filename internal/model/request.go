package model

import "time"

// RequestType 请求类型：寄件 / 带件
type RequestType string

const (
	RequestSend     RequestType = "send"
	RequestDelivery RequestType = "delivery"
)

// ParseRequestType 解析请求类型字符串
func ParseRequestType(s string) (RequestType, bool) {
	switch RequestType(s) {
	case RequestSend, RequestDelivery:
		return RequestType(s), true
	}
	return "", false
}

// Opposite 返回对侧类型（寄件 ↔ 带件）
func (t RequestType) Opposite() RequestType {
	if t == RequestSend {
		return RequestDelivery
	}
	return RequestSend
}

// Table 返回该类型对应的表名
func (t RequestType) Table() string {
	if t == RequestSend {
		return "send_requests"
	}
	return "delivery_requests"
}

// 请求状态
const (
	RequestStatusOpen            = "open"
	RequestStatusHasResponses    = "has_responses"
	RequestStatusMatched         = "matched"
	RequestStatusMatchedManually = "matched_manually"
	RequestStatusCompleted       = "completed"
	RequestStatusClosed          = "closed"
)

// SizeNotSpecified 未指定尺寸，与空字符串等价
const SizeNotSpecified = "not_specified"

// Request 寄件 / 带件请求，对应 send_requests 与 delivery_requests（两表列相同）
// Type 不落库，由读取时所用的表决定
type Request struct {
	ID                   uint        `gorm:"primaryKey"                               json:"id"`
	Type                 RequestType `gorm:"-"                                        json:"type"`
	UserID               uint        `gorm:"not null"                                 json:"user_id"`
	FromLocationID       uint        `gorm:"not null"                                 json:"from_location_id"`
	ToLocationID         uint        `gorm:"not null"                                 json:"to_location_id"`
	FromDate             time.Time   `gorm:"type:date;not null"                       json:"from_date"`
	ToDate               time.Time   `gorm:"type:date;not null"                       json:"to_date"`
	SizeType             string      `gorm:"type:varchar(30);not null;default:''"     json:"size_type"`
	Price                *int        `                                                json:"price,omitempty"`
	Currency             string      `gorm:"type:varchar(10);not null;default:''"     json:"currency"`
	Description          string      `gorm:"type:text;not null;default:''"            json:"description"`
	Status               string      `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	MatchedCounterpartID *uint       `                                                json:"matched_counterpart_id,omitempty"`
	BaseModel
}

// Ref 返回请求的类型化引用
func (r *Request) Ref() RequestRef {
	return RequestRef{Type: r.Type, ID: r.ID}
}

// SizeUnset 尺寸为空或未指定
func (r *Request) SizeUnset() bool {
	return r.SizeType == "" || r.SizeType == SizeNotSpecified
}

// IsMatchable 仍可参与匹配 / 接受响应
func (r *Request) IsMatchable() bool {
	return r.Status == RequestStatusOpen || r.Status == RequestStatusHasResponses
}

// IsMatched 已匹配（自动或手动）
func (r *Request) IsMatched() bool {
	return r.Status == RequestStatusMatched || r.Status == RequestStatusMatchedManually
}

// CanDelete 已匹配或已完成的请求不可删除
func (r *Request) CanDelete() bool {
	return !r.IsMatched() && r.Status != RequestStatusCompleted
}

// CanClose 只有已匹配的请求可以关闭
func (r *Request) CanClose() bool {
	return r.IsMatched()
}

// RequestRef 带类型的请求引用
type RequestRef struct {
	Type RequestType
	ID   uint
}

// 可选尺寸
var sizeTypes = map[string]bool{
	SizeNotSpecified: true,
	"documents":      true,
	"small":          true,
	"medium":         true,
	"large":          true,
}

// 支持的币种（ISO 4217）
var currencies = map[string]bool{
	"UZS": true,
	"USD": true,
	"EUR": true,
	"RUB": true,
	"KZT": true,
}

// ValidSizeType 空字符串视为未指定
func ValidSizeType(s string) bool {
	return s == "" || sizeTypes[s]
}

func ValidCurrency(s string) bool {
	return currencies[s]
}
