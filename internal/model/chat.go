package model

// 聊天状态
const (
	ChatActive    = "active"
	ChatCompleted = "completed"
	ChatClosed    = "closed"
)

// Chat 聊天表，对应 chats
// 同一对用户（无序）只保留一条记录
type Chat struct {
	ID                uint   `gorm:"primaryKey"                                 json:"id"`
	SenderID          uint   `gorm:"not null"                                   json:"sender_id"`
	ReceiverID        uint   `gorm:"not null"                                   json:"receiver_id"`
	SendRequestID     *uint  `                                                  json:"send_request_id,omitempty"`
	DeliveryRequestID *uint  `                                                  json:"delivery_request_id,omitempty"`
	Status            string `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	BaseModel
}

// TableName 指定表名
func (Chat) TableName() string { return "chats" }

// ChatLinks 聊天关联的请求
type ChatLinks struct {
	SendRequestID     *uint
	DeliveryRequestID *uint
}
