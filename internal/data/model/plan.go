package model

import "time"

// Plan 套餐模型 (参考数据,本服务只读)
type Plan struct {
	ID              uint64    `gorm:"primaryKey;column:plan_id"`
	Name            string    `gorm:"column:name"`
	Description     string    `gorm:"column:description"`
	Price           float64   `gorm:"column:price"`
	ValidityInDays  int       `gorm:"column:validity_in_days"`
	IsActive        bool      `gorm:"column:is_active;default:true"`
	IsNew           bool      `gorm:"column:is_new;default:false"`
	IsPromotional   bool      `gorm:"column:is_promotional;default:false"`
	SubscriberCount int       `gorm:"column:subscriber_count;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (Plan) TableName() string { return "plan" }
