package model

import "time"

// Mandate 用户支付授权凭据模型。同一用户可能有多条,
// 续费时取最新一条 (latest wins)。
type Mandate struct {
	ID                 uint64    `gorm:"primaryKey;column:mandate_record_id"`
	UserID             uint64    `gorm:"column:user_id;index"`
	MandateID          string    `gorm:"column:mandate_id"`
	PaymentMethodToken string    `gorm:"column:payment_method_token"`
	Revoked            bool      `gorm:"column:revoked;default:false"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (Mandate) TableName() string { return "mandate" }
