package biz

import (
	"context"
	"time"

	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"
)

// CreateOrderRequest 新购下单请求
type CreateOrderRequest struct {
	PlanID             uint64
	Gateway            string
	MandateID          string
	PaymentMethodToken string
}

// CreateOrderResult 下单结果: 本服务的订阅 ID 加支付方的订单标识
type CreateOrderResult struct {
	SubscriptionID uint64
	OrderID        string
	PaymentID      string
}

// CreateOrder 新购下单: 校验套餐与重复订阅,预创建 pending 订阅记录,
// 再向支付服务发起支付。订阅保持 inactive 直到支付成功回调到达。
func (uc *SubscriptionUsecase) CreateOrder(ctx context.Context, userID uint64, req *CreateOrderRequest) (*CreateOrderResult, error) {
	plan, err := uc.planRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, errors.ErrPlanNotFound(req.PlanID)
	}

	current, err := uc.subRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		uc.log.Warnf("User %d attempted new order while subscription %d is active", userID, current.ID)
		return nil, errors.ErrAlreadySubscribed()
	}

	expiresOn := time.Now().UTC().AddDate(0, 0, planValidityDays(plan))
	sub, err := uc.createPendingSubscription(ctx, userID, plan.ID, plan.Price, req.Gateway, expiresOn)
	if err != nil {
		return nil, errors.ErrOrderCreateFailed()
	}

	order, err := uc.paymentClient.InitiatePayment(ctx, &PaymentOrder{
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		Amount:             plan.Price,
		Gateway:            req.Gateway,
		SubscriptionID:     sub.ID,
		MandateID:          req.MandateID,
		PaymentMethodToken: req.PaymentMethodToken,
		ActionType:         constants.ActionNewSubscription,
	})
	if err != nil {
		uc.log.Errorf("Failed to initiate payment for subscription %d: %v", sub.ID, err)
		return nil, errors.ErrPaymentUnavailable()
	}

	return &CreateOrderResult{
		SubscriptionID: sub.ID,
		OrderID:        order.OrderID,
		PaymentID:      order.PaymentID,
	}, nil
}
