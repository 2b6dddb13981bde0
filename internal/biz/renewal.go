package biz

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/billing-service/internal/constants"
)

// RenewalSummary 一次续费扫描的统计
type RenewalSummary struct {
	Total   int
	Renewed int
	Skipped int
	Failed  int
}

// ProcessExpiringSubscriptions 续费扫描: 找出今天到期的活跃订阅,
// 逐条处理: 已取消的只停用; 挂了降级记录的先提升降级目标;
// 其余按存储的支付授权发起续费扣款。单条失败不影响其他条目。
func (uc *SubscriptionUsecase) ProcessExpiringSubscriptions(ctx context.Context) (*RenewalSummary, error) {
	now := time.Now().UTC()
	endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)

	subs, err := uc.subRepo.FindExpiring(ctx, endOfToday)
	if err != nil {
		uc.log.Errorf("Failed to query expiring subscriptions: %v", err)
		return nil, err
	}

	summary := &RenewalSummary{Total: len(subs)}
	for _, sub := range subs {
		renewed, err := uc.renewOne(ctx, sub)
		switch {
		case err != nil:
			summary.Failed++
			uc.log.Errorf("Failed to renew subscription %d: %v", sub.ID, err)
		case renewed:
			summary.Renewed++
		default:
			summary.Skipped++
		}
	}

	uc.log.Infof("Renewal sweep done: total=%d renewed=%d skipped=%d failed=%d",
		summary.Total, summary.Renewed, summary.Skipped, summary.Failed)
	return summary, nil
}

// renewOne 处理一条到期订阅。按用户加锁,避免和正在进行的
// 回调应用或用户操作并发改同一个人的订阅。
func (uc *SubscriptionUsecase) renewOne(ctx context.Context, sub *Subscription) (bool, error) {
	unlock, err := uc.locker.Acquire(ctx, renewalLockKey(sub.UserID), constants.RenewalLockExpiration)
	if err != nil {
		return false, fmt.Errorf("user %d busy: %w", sub.UserID, err)
	}
	defer func() {
		if uerr := unlock(ctx); uerr != nil {
			uc.log.Warnf("Failed to unlock renewal for user %d: %v", sub.UserID, uerr)
		}
	}()

	// 已取消: 权益到期,停用即可,不再扣款
	if sub.SubscriptionStatus == constants.SubscriptionStatusCanceled {
		if err := uc.subRepo.Deactivate(ctx, sub.ID); err != nil {
			return false, err
		}
		uc.log.Infof("Deactivated canceled subscription %d for user %d", sub.ID, sub.UserID)
		uc.invalidateUserCaches(ctx, sub.UserID)
		return false, nil
	}

	previousPlanID := uint64(0)
	target := sub

	// 挂了降级记录: 当前周期结束,提升预创建的降级订阅并按新套餐收款
	if sub.DowngradeSubscriptionID != 0 {
		promoted, err := uc.promoteDowngrade(ctx, sub)
		if err != nil {
			return false, err
		}
		if promoted == nil {
			return false, nil
		}
		previousPlanID = sub.PlanID
		target = promoted
	}

	mandate, err := uc.mandateRepo.LatestByUser(ctx, target.UserID)
	if err != nil {
		return false, err
	}
	if mandate == nil {
		uc.log.Warnf("No payment mandate for user %d, skipping renewal of subscription %d", target.UserID, target.ID)
		return false, nil
	}

	plan, err := uc.planRepo.Get(ctx, target.PlanID)
	if err != nil {
		return false, err
	}
	amount := target.Amount
	planName := ""
	if plan != nil {
		amount = plan.Price
		planName = plan.Name
	}

	if _, err := uc.paymentClient.InitiatePayment(ctx, &PaymentOrder{
		PlanID:             target.PlanID,
		PlanName:           planName,
		Amount:             amount,
		Gateway:            target.Gateway,
		SubscriptionID:     target.ID,
		MandateID:          mandate.MandateID,
		PaymentMethodToken: mandate.PaymentMethodToken,
		ActionType:         constants.ActionRenewal,
		PreviousPlanID:     previousPlanID,
	}); err != nil {
		return false, err
	}

	uc.log.Infof("Initiated renewal payment for subscription %d (user %d, amount %.2f)", target.ID, target.UserID, amount)
	return true, nil
}

// promoteDowngrade 提升降级目标: 停用当前订阅,激活预创建记录。
// 预创建记录已被并发操作删除或激活失败时告警并放弃该条目。
func (uc *SubscriptionUsecase) promoteDowngrade(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		if err := uc.subRepo.Deactivate(ctx, sub.ID); err != nil {
			return err
		}
		rows, err := uc.subRepo.Activate(ctx, sub.DowngradeSubscriptionID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("staged downgrade %d missing", sub.DowngradeSubscriptionID)
		}
		return nil
	}); err != nil {
		uc.log.Warnf("Failed to promote staged downgrade %d for subscription %d: %v", sub.DowngradeSubscriptionID, sub.ID, err)
		return nil, nil
	}

	promoted, err := uc.subRepo.Get(ctx, sub.DowngradeSubscriptionID)
	if err != nil {
		return nil, err
	}
	uc.invalidateUserCaches(ctx, sub.UserID)
	return promoted, nil
}

func renewalLockKey(userID uint64) string {
	return fmt.Sprintf("subscription_renewal_lock:user:%d", userID)
}
