package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"

	"github.com/google/uuid"
)

// WebhookEvent 支付回调事件。摄入时落库,之后不可变,
// 独立于它影响的订阅记录存在,用于审计与重放。
type WebhookEvent struct {
	ID                 uint64                       `json:"-"`
	SubscriptionID     uint64                       `json:"subscriptionId"`
	PaymentID          string                       `json:"paymentId"`
	TransactionID      string                       `json:"transactionId,omitempty"`
	RefundID           string                       `json:"refundId,omitempty"`
	PaymentStatus      constants.PaymentStatus      `json:"paymentStatus"`
	Amount             float64                      `json:"amount"`
	MetaData           map[string]string            `json:"metaData,omitempty"`
	ActionType         constants.SubscriptionAction `json:"actionType,omitempty"`
	PreviousPlanID     uint64                       `json:"previousPlanId,omitempty"`
	MandateID          string                       `json:"mandateId,omitempty"`
	PaymentMethodToken string                       `json:"paymentMethodToken,omitempty"`
	CreatedAt          time.Time                    `json:"-"`
}

// WebhookEventRepo 回调事件仓库接口 (只追加)
type WebhookEventRepo interface {
	Append(ctx context.Context, event *WebhookEvent) error
	ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*WebhookEvent, error)
}

// ReceiveWebhook 摄入一条支付回调: 校验必填字段,落库事件,
// 有授权信息时刷新用户授权凭据,并发布到持久化队列等待应用。
// 未知订阅 ID 只告警不报错 (供应商对陈旧 ID 的回调不应被重试成错误);
// 落库或发布失败则返回错误,让供应商侧的重试机制生效。
func (uc *SubscriptionUsecase) ReceiveWebhook(ctx context.Context, event *WebhookEvent) error {
	if event.SubscriptionID == 0 || event.PaymentID == "" || event.TransactionID == "" || event.PaymentStatus == "" {
		uc.log.Warnf("Received webhook with missing required fields: subscription=%d payment=%q status=%q", event.SubscriptionID, event.PaymentID, event.PaymentStatus)
		return errors.ErrWebhookInvalidPayload()
	}

	sub, err := uc.subRepo.Get(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		uc.log.Warnf("Webhook payload subscription id references missing %d", event.SubscriptionID)
		return nil
	}

	if err := uc.eventRepo.Append(ctx, event); err != nil {
		uc.log.Errorf("Failed to persist webhook event for subscription %d: %v", event.SubscriptionID, err)
		return err
	}

	if event.MandateID != "" || event.PaymentMethodToken != "" {
		mandate := &Mandate{
			UserID:             sub.UserID,
			MandateID:          event.MandateID,
			PaymentMethodToken: event.PaymentMethodToken,
		}
		if err := uc.mandateRepo.Create(ctx, mandate); err != nil {
			uc.log.Errorf("Failed to store mandate for user %d: %v", sub.UserID, err)
			return err
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := uc.queue.Publish(ctx, uc.webhookTopic, payload); err != nil {
		uc.log.Errorf("Failed to publish webhook event for subscription %d: %v", event.SubscriptionID, err)
		return err
	}
	return nil
}

// ApplyWebhookEvent 将已落库的回调事件应用到订阅状态机。
// 队列至少一次投递,重复投递的事件必须被幂等吸收:
// 目标订阅已处于事件隐含的终态时直接跳过。
// 同一订阅上的应用与用户操作通过分布式锁按订阅 ID 串行化。
func (uc *SubscriptionUsecase) ApplyWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	unlock, err := uc.locker.Acquire(ctx, applyLockKey(event.SubscriptionID), constants.WebhookApplyLockExpiration)
	if err != nil {
		// 锁被占用说明同一订阅正在处理,交还队列稍后重投
		return fmt.Errorf("subscription %d busy: %w", event.SubscriptionID, err)
	}
	defer func() {
		if uerr := unlock(ctx); uerr != nil {
			uc.log.Warnf("Failed to unlock subscription %d: %v", event.SubscriptionID, uerr)
		}
	}()

	sub, err := uc.subRepo.Get(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		// 不可重试: 记录并丢弃
		uc.log.Warnf("Webhook payload subscription id references missing %d", event.SubscriptionID)
		return nil
	}

	switch event.PaymentStatus {
	case constants.PaymentStatusSuccess:
		return uc.applyPaymentSuccess(ctx, sub, event)
	case constants.PaymentStatusFailed:
		return uc.applyPaymentFailed(ctx, sub, event)
	case constants.PaymentStatusRefundSuccess:
		return uc.applyRefund(ctx, sub, event, constants.PaymentStatusRefundSuccess, constants.NoteRefundSucceeded)
	case constants.PaymentStatusRefundFailed:
		return uc.applyRefund(ctx, sub, event, constants.PaymentStatusRefundFailed, constants.NoteRefundFailed)
	default:
		uc.log.Warnf("Unhandled webhook event %s for subscription %d", event.PaymentStatus, sub.ID)
		return nil
	}
}

// applyPaymentSuccess 处理支付成功事件: 校验金额,激活订阅,
// 停用该用户的其他订阅记录,失败走退款补偿。
func (uc *SubscriptionUsecase) applyPaymentSuccess(ctx context.Context, sub *Subscription, event *WebhookEvent) error {
	if sub.PaymentStatus == constants.PaymentStatusSuccess && sub.IsActive && sub.PaymentID == event.PaymentID {
		uc.log.Infof("Subscription %d already activated by payment %s, skipping (idempotent)", sub.ID, event.PaymentID)
		return nil
	}

	if !uc.CheckPrice(ctx, sub.PlanID, event.Amount, event.ActionType, event.PreviousPlanID) {
		uc.log.Warnf("Price check failed for subscription %d (plan=%d amount=%.2f action=%s), initiating refund", sub.ID, sub.PlanID, event.Amount, event.ActionType)
		if _, err := uc.paymentClient.InitiateRefund(ctx, &RefundRequest{
			PaymentID:      event.PaymentID,
			SubscriptionID: sub.ID,
			Amount:         event.Amount,
			Reason:         constants.ReasonAmountMismatch,
			Gateway:        sub.Gateway,
		}); err != nil {
			uc.log.Errorf("Failed to initiate refund for subscription %d: %v", sub.ID, err)
			// 返回带码错误,让队列重投后重试退款
			return errors.ErrRefundFailed()
		}
		// 金额不符: 绝不激活,退款后结束
		return nil
	}

	plan, err := uc.planRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	sub.PaymentID = event.PaymentID
	sub.TransactionID = event.TransactionID
	sub.ReceiptURL = uc.generateReceipt(sub.UserID, event)
	sub.PaymentStatus = constants.PaymentStatusSuccess
	sub.SubscriptionStatus = constants.SubscriptionStatusActive
	sub.Notes = constants.NotePaymentCaptured
	sub.IsActive = true
	sub.ExpiresOn = now.AddDate(0, 0, planValidityDays(plan))

	// 激活与停用同级订阅必须一起落库,保证单活跃订阅不变量
	if err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		if err := uc.subRepo.Update(ctx, sub); err != nil {
			return err
		}
		return uc.subRepo.DeactivateSiblings(ctx, sub.UserID, sub.ID)
	}); err != nil {
		uc.log.Errorf("Failed to activate subscription %d: %v", sub.ID, err)
		return err
	}

	uc.notifyUser(ctx, sub.UserID, event)
	uc.invalidateUserCaches(ctx, sub.UserID)
	return nil
}

// applyPaymentFailed 处理支付失败事件。续费失败时把到期时间强制置为昨天,
// 让该订阅退出后续的续费扫描,权益随之终止。
func (uc *SubscriptionUsecase) applyPaymentFailed(ctx context.Context, sub *Subscription, event *WebhookEvent) error {
	if sub.PaymentStatus == constants.PaymentStatusFailed && sub.PaymentID == event.PaymentID {
		uc.log.Infof("Subscription %d already marked failed by payment %s, skipping (idempotent)", sub.ID, event.PaymentID)
		return nil
	}

	sub.PaymentID = event.PaymentID
	sub.TransactionID = event.TransactionID
	sub.PaymentStatus = constants.PaymentStatusFailed
	sub.Notes = constants.NotePaymentFailed
	sub.IsActive = false
	if event.ActionType == constants.ActionRenewal {
		sub.ExpiresOn = time.Now().UTC().Add(-24 * time.Hour)
	}

	if err := uc.subRepo.Update(ctx, sub); err != nil {
		uc.log.Errorf("Failed to persist failed payment for subscription %d: %v", sub.ID, err)
		return err
	}

	uc.publishFailedEvent(ctx, event)
	uc.notifyUser(ctx, sub.UserID, event)
	uc.invalidateUserCaches(ctx, sub.UserID)
	return nil
}

// applyRefund 处理退款结果事件。退款只发生在被拒绝的 success 事件上,
// 订阅从未激活,因此不改动 subscriptionStatus/isActive。
func (uc *SubscriptionUsecase) applyRefund(ctx context.Context, sub *Subscription, event *WebhookEvent, status constants.PaymentStatus, note string) error {
	if sub.PaymentStatus == status && sub.RefundID == event.RefundID {
		uc.log.Infof("Subscription %d already in refund state %s, skipping (idempotent)", sub.ID, status)
		return nil
	}

	sub.PaymentID = event.PaymentID
	sub.TransactionID = event.TransactionID
	sub.RefundID = event.RefundID
	sub.PaymentStatus = status
	sub.Notes = note

	if err := uc.subRepo.Update(ctx, sub); err != nil {
		uc.log.Errorf("Failed to persist refund state for subscription %d: %v", sub.ID, err)
		return err
	}

	if status == constants.PaymentStatusRefundFailed {
		uc.publishFailedEvent(ctx, event)
	}
	uc.notifyUser(ctx, sub.UserID, event)
	uc.invalidateUserCaches(ctx, sub.UserID)
	return nil
}

// publishFailedEvent 发布支付失败侧信道事件 (下游通知/分析),尽力而为
func (uc *SubscriptionUsecase) publishFailedEvent(ctx context.Context, event *WebhookEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		uc.log.Warnf("Failed to marshal failed event for subscription %d: %v", event.SubscriptionID, err)
		return
	}
	if err := uc.queue.Publish(ctx, uc.failedTopic, payload); err != nil {
		uc.log.Warnf("Failed to publish failed event for subscription %d: %v", event.SubscriptionID, err)
	}
}

// notifyUser 按事件发送用户通知。续费/改套餐场景下
// actionType 比支付状态更能说明发生了什么,优先使用。
func (uc *SubscriptionUsecase) notifyUser(ctx context.Context, userID uint64, event *WebhookEvent) {
	key := string(event.PaymentStatus)
	if event.ActionType == constants.ActionRenewal || event.ActionType == constants.ActionUpdatePlan {
		key = string(event.ActionType)
	}
	if err := uc.notifier.Notify(ctx, userID, key); err != nil {
		uc.log.Warnf("Failed to notify user %d about %s: %v", userID, key, err)
	}
}

func (uc *SubscriptionUsecase) generateReceipt(userID uint64, event *WebhookEvent) string {
	return fmt.Sprintf("receipt-%s|payment:%s|user:%d|amount:%.2fUSD",
		uuid.New().String(), event.PaymentID, userID, event.Amount)
}

// ListWebhookEvents 获取订阅的回调事件审计记录
func (uc *SubscriptionUsecase) ListWebhookEvents(ctx context.Context, subscriptionID uint64) ([]*WebhookEvent, error) {
	return uc.eventRepo.ListBySubscription(ctx, subscriptionID)
}

func applyLockKey(subscriptionID uint64) string {
	return fmt.Sprintf("subscription_apply_lock:subscription:%d", subscriptionID)
}
