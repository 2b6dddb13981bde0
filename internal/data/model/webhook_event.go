package model

import "time"

// WebhookEvent 支付回调事件模型 (只追加,审计用)
type WebhookEvent struct {
	ID             uint64    `gorm:"primaryKey;column:webhook_event_id"`
	SubscriptionID uint64    `gorm:"column:subscription_id;index"`
	PaymentID      string    `gorm:"column:payment_id"`
	TransactionID  string    `gorm:"column:transaction_id"`
	RefundID       string    `gorm:"column:refund_id"`
	PaymentStatus  string    `gorm:"column:payment_status"`
	Amount         float64   `gorm:"column:amount"`
	ActionType     string    `gorm:"column:action_type"`
	PreviousPlanID uint64    `gorm:"column:previous_plan_id;default:0"`
	MetaData       string    `gorm:"column:meta_data;type:text"` // JSON 编码的透传字段
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }
