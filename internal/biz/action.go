package biz

import (
	"context"
	"fmt"
	"math"

	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"
)

// SubscriberAction 订阅者发起的订阅变更请求
type SubscriberAction struct {
	ActionType constants.SubscriptionAction
	// TargetPlanID 升级/降级目标套餐 (cancel 时忽略)
	TargetPlanID uint64
	Gateway      string
	Reason       string
}

// ActionResult 订阅变更结果。升级会发起支付,OrderID/PaymentID 有值;
// 取消和降级预创建不收款,两个字段为空。
type ActionResult struct {
	ActionType     constants.SubscriptionAction
	SubscriptionID uint64
	OrderID        string
	PaymentID      string
}

// HandleSubscriptionAction 处理订阅者发起的变更 (取消/升级/降级)。
// 所有动作都要求存在活跃订阅,并与回调应用共用按订阅 ID 的分布式锁。
func (uc *SubscriptionUsecase) HandleSubscriptionAction(ctx context.Context, userID uint64, action *SubscriberAction) (*ActionResult, error) {
	current, err := uc.subRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errors.ErrNoActiveSubscription()
	}

	unlock, err := uc.locker.Acquire(ctx, applyLockKey(current.ID), constants.WebhookApplyLockExpiration)
	if err != nil {
		return nil, fmt.Errorf("subscription %d busy: %w", current.ID, err)
	}
	defer func() {
		if uerr := unlock(ctx); uerr != nil {
			uc.log.Warnf("Failed to unlock subscription %d: %v", current.ID, uerr)
		}
	}()

	switch action.ActionType {
	case constants.ActionCancel:
		return uc.cancelSubscription(ctx, current, action)
	case constants.ActionUpdatePlan:
		return uc.upgradeSubscription(ctx, current, action)
	case constants.ActionDowngradePlan:
		return uc.stageDowngrade(ctx, current, action)
	default:
		return nil, errors.ErrUnsupportedAction(string(action.ActionType))
	}
}

// cancelSubscription 取消订阅: 状态置为 canceled 但保留权益到期,
// 续费扫描到期时只停用不再扣款。已预创建的降级记录一并作废。
func (uc *SubscriptionUsecase) cancelSubscription(ctx context.Context, sub *Subscription, action *SubscriberAction) (*ActionResult, error) {
	if staged := sub.DowngradeSubscriptionID; staged != 0 {
		if err := uc.subRepo.Deactivate(ctx, staged); err != nil {
			uc.log.Warnf("Failed to deactivate staged downgrade %d: %v", staged, err)
		}
	}

	sub.SubscriptionStatus = constants.SubscriptionStatusCanceled
	sub.DowngradeSubscriptionID = 0
	if action.Reason != "" {
		sub.Notes = action.Reason
	}
	if err := uc.subRepo.Update(ctx, sub); err != nil {
		uc.log.Errorf("Failed to cancel subscription %d: %v", sub.ID, err)
		return nil, err
	}

	if err := uc.notifier.Notify(ctx, sub.UserID, string(constants.ActionCancel)); err != nil {
		uc.log.Warnf("Failed to notify user %d about cancel: %v", sub.UserID, err)
	}
	uc.invalidateUserCaches(ctx, sub.UserID)

	return &ActionResult{ActionType: constants.ActionCancel, SubscriptionID: sub.ID}, nil
}

// upgradeSubscription 升级套餐: 预创建目标套餐的 pending 订阅,
// 只对差价发起支付。新记录的到期时间从当前订阅到期时间顺延,
// 当前订阅保持活跃直到支付成功回调停用它。
func (uc *SubscriptionUsecase) upgradeSubscription(ctx context.Context, current *Subscription, action *SubscriberAction) (*ActionResult, error) {
	target, err := uc.planRepo.Get(ctx, action.TargetPlanID)
	if err != nil {
		return nil, err
	}
	if target == nil || !target.IsActive {
		return nil, errors.ErrTargetPlanNotFound(action.TargetPlanID)
	}

	currentPlan, err := uc.planRepo.Get(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}
	amountDue := upgradeAmountDue(currentPlan, target)

	gateway := action.Gateway
	if gateway == "" {
		gateway = current.Gateway
	}

	expiresOn := current.ExpiresOn.AddDate(0, 0, planValidityDays(target))
	newSub, err := uc.createPendingSubscription(ctx, current.UserID, target.ID, target.Price, gateway, expiresOn)
	if err != nil {
		return nil, err
	}

	order, err := uc.paymentClient.InitiatePayment(ctx, &PaymentOrder{
		PlanID:         target.ID,
		PlanName:       target.Name,
		Amount:         amountDue,
		Gateway:        gateway,
		SubscriptionID: newSub.ID,
		ActionType:     constants.ActionUpdatePlan,
		PreviousPlanID: current.PlanID,
	})
	if err != nil {
		uc.log.Errorf("Failed to initiate upgrade payment for subscription %d: %v", newSub.ID, err)
		return nil, errors.ErrPaymentUnavailable()
	}

	return &ActionResult{
		ActionType:     constants.ActionUpdatePlan,
		SubscriptionID: newSub.ID,
		OrderID:        order.OrderID,
		PaymentID:      order.PaymentID,
	}, nil
}

// stageDowngrade 预创建降级订阅: 当前周期内不收款不生效,
// 只把新记录挂到当前订阅的 DowngradeSubscriptionID 上,
// 等续费扫描在周期结束时提升它并按新套餐收款。
func (uc *SubscriptionUsecase) stageDowngrade(ctx context.Context, current *Subscription, action *SubscriberAction) (*ActionResult, error) {
	target, err := uc.planRepo.Get(ctx, action.TargetPlanID)
	if err != nil {
		return nil, err
	}
	if target == nil || !target.IsActive {
		return nil, errors.ErrTargetPlanNotFound(action.TargetPlanID)
	}

	gateway := action.Gateway
	if gateway == "" {
		gateway = current.Gateway
	}

	expiresOn := current.ExpiresOn.AddDate(0, 0, planValidityDays(target))
	staged, err := uc.createPendingSubscription(ctx, current.UserID, target.ID, target.Price, gateway, expiresOn)
	if err != nil {
		return nil, err
	}

	current.DowngradeSubscriptionID = staged.ID
	if err := uc.subRepo.Update(ctx, current); err != nil {
		uc.log.Errorf("Failed to link staged downgrade %d to subscription %d: %v", staged.ID, current.ID, err)
		return nil, err
	}

	if err := uc.notifier.Notify(ctx, current.UserID, string(constants.ActionDowngradePlan)); err != nil {
		uc.log.Warnf("Failed to notify user %d about downgrade: %v", current.UserID, err)
	}
	uc.invalidateUserCaches(ctx, current.UserID)

	return &ActionResult{ActionType: constants.ActionDowngradePlan, SubscriptionID: staged.ID}, nil
}

// upgradeAmountDue 升级差价 = 目标套餐价 - 当前套餐价,下限为 0
func upgradeAmountDue(currentPlan, target *Plan) float64 {
	if currentPlan == nil {
		return target.Price
	}
	due := math.Round((target.Price-currentPlan.Price)*100) / 100
	if due < 0 {
		return 0
	}
	return due
}
