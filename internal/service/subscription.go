package service

import (
	"context"
	"strconv"
	"time"

	"xinyuan_tech/billing-service/internal/auth"
	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewBillingService)

// BillingService 对外 HTTP 服务层,负责 DTO 与鉴权上下文的转换
type BillingService struct {
	uc *biz.SubscriptionUsecase
}

// NewBillingService 创建服务实例
func NewBillingService(uc *biz.SubscriptionUsecase) *BillingService {
	return &BillingService{uc: uc}
}

// CreateOrderRequest 新购下单请求
type CreateOrderRequest struct {
	PlanID             uint64 `json:"planId"`
	Gateway            string `json:"gateway"`
	MandateID          string `json:"mandateId"`
	PaymentMethodToken string `json:"paymentMethodToken"`
}

// CreateOrderReply 下单结果
type CreateOrderReply struct {
	SubscriptionID uint64 `json:"subscriptionId"`
	OrderID        string `json:"orderId"`
	PaymentID      string `json:"paymentId"`
}

// CreateOrder 新购下单
func (s *BillingService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderReply, error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.uc.CreateOrder(ctx, userID, &biz.CreateOrderRequest{
		PlanID:             req.PlanID,
		Gateway:            req.Gateway,
		MandateID:          req.MandateID,
		PaymentMethodToken: req.PaymentMethodToken,
	})
	if err != nil {
		return nil, err
	}
	return &CreateOrderReply{
		SubscriptionID: result.SubscriptionID,
		OrderID:        result.OrderID,
		PaymentID:      result.PaymentID,
	}, nil
}

// WebhookRequest 支付回调载荷。subscriptionId 在线路上是字符串。
type WebhookRequest struct {
	SubscriptionID     string            `json:"subscriptionId"`
	PaymentID          string            `json:"paymentId"`
	TransactionID      string            `json:"transactionId"`
	RefundID           string            `json:"refundId"`
	PaymentStatus      string            `json:"paymentStatus"`
	Amount             float64           `json:"amount"`
	MetaData           map[string]string `json:"metaData"`
	ActionType         string            `json:"actionType"`
	PreviousPlanID     uint64            `json:"previousPlanId"`
	MandateID          string            `json:"mandateId"`
	PaymentMethodToken string            `json:"paymentMethodToken"`
}

// WebhookReply 回调确认
type WebhookReply struct {
	Received bool `json:"received"`
}

// HandleWebhook 接收支付回调。落库并入队成功后才确认,
// 之后的状态机应用由队列消费侧异步完成。
func (s *BillingService) HandleWebhook(ctx context.Context, req *WebhookRequest) (*WebhookReply, error) {
	subscriptionID, err := strconv.ParseUint(req.SubscriptionID, 10, 64)
	if err != nil || subscriptionID == 0 {
		return nil, errors.ErrWebhookInvalidPayload()
	}

	event := &biz.WebhookEvent{
		SubscriptionID:     subscriptionID,
		PaymentID:          req.PaymentID,
		TransactionID:      req.TransactionID,
		RefundID:           req.RefundID,
		PaymentStatus:      constants.PaymentStatus(req.PaymentStatus),
		Amount:             req.Amount,
		MetaData:           req.MetaData,
		ActionType:         constants.SubscriptionAction(req.ActionType),
		PreviousPlanID:     req.PreviousPlanID,
		MandateID:          req.MandateID,
		PaymentMethodToken: req.PaymentMethodToken,
	}
	if err := s.uc.ReceiveWebhook(ctx, event); err != nil {
		return nil, err
	}
	return &WebhookReply{Received: true}, nil
}

// SubscriptionActionRequest 订阅变更请求
type SubscriptionActionRequest struct {
	ActionType   string `json:"actionType"`
	TargetPlanID uint64 `json:"targetPlanId"`
	Gateway      string `json:"gateway"`
	Reason       string `json:"reason"`
}

// SubscriptionActionReply 订阅变更结果
type SubscriptionActionReply struct {
	ActionType     string `json:"actionType"`
	SubscriptionID uint64 `json:"subscriptionId"`
	OrderID        string `json:"orderId,omitempty"`
	PaymentID      string `json:"paymentId,omitempty"`
}

// HandleSubscriptionAction 处理订阅变更 (取消/升级/降级)
func (s *BillingService) HandleSubscriptionAction(ctx context.Context, req *SubscriptionActionRequest) (*SubscriptionActionReply, error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.uc.HandleSubscriptionAction(ctx, userID, &biz.SubscriberAction{
		ActionType:   constants.SubscriptionAction(req.ActionType),
		TargetPlanID: req.TargetPlanID,
		Gateway:      req.Gateway,
		Reason:       req.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &SubscriptionActionReply{
		ActionType:     string(result.ActionType),
		SubscriptionID: result.SubscriptionID,
		OrderID:        result.OrderID,
		PaymentID:      result.PaymentID,
	}, nil
}

// GetUpgradeQuote 套餐变更报价
func (s *BillingService) GetUpgradeQuote(ctx context.Context, targetPlanID uint64) (*biz.UpgradeQuote, error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.uc.CalculateUpgradeQuote(ctx, userID, targetPlanID)
}

// ListPlans 用户视角的套餐列表
func (s *BillingService) ListPlans(ctx context.Context) (*biz.UserPlans, error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.uc.ListPlansForUser(ctx, userID)
}

// RevokeMandate 撤销当前用户的自动扣款授权
func (s *BillingService) RevokeMandate(ctx context.Context) error {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return err
	}
	return s.uc.RevokeMandate(ctx, userID)
}

// SubscriptionDetailReply 订阅详情
type SubscriptionDetailReply struct {
	SubscriptionID     uint64    `json:"subscriptionId"`
	PlanID             uint64    `json:"planId"`
	Amount             float64   `json:"amount"`
	Gateway            string    `json:"gateway"`
	PaymentStatus      string    `json:"paymentStatus"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	IsActive           bool      `json:"isActive"`
	ExpiresOn          time.Time `json:"expiresOn"`
	ReceiptURL         string    `json:"receiptUrl,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

// GetSubscription 订阅详情。普通用户只能查询自己的订阅,管理员不受限。
func (s *BillingService) GetSubscription(ctx context.Context, subscriptionID uint64) (*SubscriptionDetailReply, error) {
	userID, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := s.uc.GetSubscription(ctx, userID, subscriptionID, auth.IsAdmin(ctx))
	if err != nil {
		return nil, err
	}
	return &SubscriptionDetailReply{
		SubscriptionID:     sub.ID,
		PlanID:             sub.PlanID,
		Amount:             sub.Amount,
		Gateway:            sub.Gateway,
		PaymentStatus:      string(sub.PaymentStatus),
		SubscriptionStatus: string(sub.SubscriptionStatus),
		IsActive:           sub.IsActive,
		ExpiresOn:          sub.ExpiresOn,
		ReceiptURL:         sub.ReceiptURL,
		Notes:              sub.Notes,
	}, nil
}

// ListSubscriptionEvents 订阅的回调事件审计记录 (仅管理员)
func (s *BillingService) ListSubscriptionEvents(ctx context.Context, subscriptionID uint64) ([]*biz.WebhookEvent, error) {
	if !auth.IsAdmin(ctx) {
		return nil, kerrors.Forbidden("FORBIDDEN", "admin role required")
	}
	return s.uc.ListWebhookEvents(ctx, subscriptionID)
}
