package model

// 地点层级
const (
	LocationCountry = "country"
	LocationRegion  = "region"
	LocationCity    = "city"
)

// Location 地点参考数据，对应 locations（只读）
type Location struct {
	ID       uint   `gorm:"primaryKey"                               json:"id"`
	Name     string `gorm:"type:varchar(100);not null"               json:"name"`
	ParentID *uint  `                                                json:"parent_id,omitempty"`
	Type     string `gorm:"type:varchar(20);not null;default:'city'" json:"type"`
	BaseModel
}

// TableName 指定表名
func (Location) TableName() string { return "locations" }
