package biz

import (
	"context"

	"xinyuan_tech/billing-service/internal/constants"
)

// PaymentOrder 发起支付的订单载荷
type PaymentOrder struct {
	PlanID             uint64
	PlanName           string
	Amount             float64
	Gateway            string
	SubscriptionID     uint64
	MandateID          string
	PaymentMethodToken string
	ActionType         constants.SubscriptionAction
	PreviousPlanID     uint64
}

// OrderSummary 支付服务返回的订单标识
type OrderSummary struct {
	OrderID   string
	PaymentID string
}

// RefundRequest 发起退款的载荷
type RefundRequest struct {
	PaymentID      string
	SubscriptionID uint64
	Amount         float64
	Reason         string
	Gateway        string
}

// RefundSummary 支付服务返回的退款标识
type RefundSummary struct {
	RefundID      string
	PaymentStatus constants.PaymentStatus
}

// PaymentClient 支付服务客户端接口 (防腐层)。
// 实现方负责熔断和重试; 重试耗尽或熔断打开时错误原样返回给调用方,
// 由调用方决定面向用户的提示。
type PaymentClient interface {
	InitiatePayment(ctx context.Context, order *PaymentOrder) (*OrderSummary, error)
	InitiateRefund(ctx context.Context, refund *RefundRequest) (*RefundSummary, error)
}
