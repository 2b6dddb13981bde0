package model

import "time"

// Subscription 订阅模型
type Subscription struct {
	ID            uint64    `gorm:"primaryKey;column:subscription_id"`
	UserID        uint64    `gorm:"column:user_id;index"`
	PlanID        uint64    `gorm:"column:plan_id"`
	Amount        float64   `gorm:"column:amount"`
	Gateway       string    `gorm:"column:gateway"`
	PaymentID     string    `gorm:"column:payment_id;index"`
	TransactionID string    `gorm:"column:transaction_id"`
	RefundID      string    `gorm:"column:refund_id"`
	PaymentStatus string    `gorm:"column:payment_status"` // pending, success, failed, refund_success, refund_failed
	Status        string    `gorm:"column:status"`         // inactive, active, paused, canceled
	ExpiresOn     time.Time `gorm:"column:expires_on;index"`
	// DowngradeSubscriptionID 预创建的降级订阅 ID,0 表示无
	DowngradeSubscriptionID uint64    `gorm:"column:downgrade_subscription_id;default:0"`
	IsActive                bool      `gorm:"column:is_active;default:false"`
	ReceiptURL              string    `gorm:"column:receipt_url"`
	Notes                   string    `gorm:"column:notes"`
	CreatedAt               time.Time `gorm:"column:created_at"`
	UpdatedAt               time.Time `gorm:"column:updated_at"`
}

func (Subscription) TableName() string { return "subscription" }
