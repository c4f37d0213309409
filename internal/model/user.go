package model

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultLinksBalance 新用户可用的建立联系次数
const DefaultLinksBalance = 3

// User 用户表，对应 users（Telegram 账号）
type User struct {
	ID           uint   `gorm:"primaryKey"                                json:"id"`
	TelegramID   int64  `gorm:"not null;uniqueIndex"                      json:"telegram_id"`
	Name         string `gorm:"type:varchar(100);not null;default:''"     json:"name"`
	Username     string `gorm:"type:varchar(64);not null;default:''"      json:"username"`
	Role         string `gorm:"type:varchar(20);not null;default:'user'"  json:"role"`
	LinksBalance int    `gorm:"not null;default:3"                        json:"links_balance"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
