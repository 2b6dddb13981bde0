package data

import (
	"context"
	"encoding/json"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
)

// webhookEventRepo 回调事件仓库实现
type webhookEventRepo struct {
	data *Data
	log  *log.Helper
}

// NewWebhookEventRepo 创建回调事件仓库
func NewWebhookEventRepo(data *Data, logger log.Logger) biz.WebhookEventRepo {
	return &webhookEventRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Append 追加一条回调事件
func (r *webhookEventRepo) Append(ctx context.Context, event *biz.WebhookEvent) error {
	meta := ""
	if len(event.MetaData) > 0 {
		if b, err := json.Marshal(event.MetaData); err == nil {
			meta = string(b)
		}
	}
	m := &model.WebhookEvent{
		SubscriptionID: event.SubscriptionID,
		PaymentID:      event.PaymentID,
		TransactionID:  event.TransactionID,
		RefundID:       event.RefundID,
		PaymentStatus:  string(event.PaymentStatus),
		Amount:         event.Amount,
		ActionType:     string(event.ActionType),
		PreviousPlanID: event.PreviousPlanID,
		MetaData:       meta,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to append webhook event for subscription %d: %v", event.SubscriptionID, err)
		return err
	}
	event.ID = m.ID
	event.CreatedAt = m.CreatedAt
	return nil
}

// ListBySubscription 按订阅列出回调事件 (按接收顺序)
func (r *webhookEventRepo) ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*biz.WebhookEvent, error) {
	var models []model.WebhookEvent
	err := r.data.DB(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("webhook_event_id ASC").
		Find(&models).Error
	if err != nil {
		r.log.Errorf("Failed to list webhook events for subscription %d: %v", subscriptionID, err)
		return nil, err
	}

	events := make([]*biz.WebhookEvent, 0, len(models))
	for i := range models {
		m := &models[i]
		var meta map[string]string
		if m.MetaData != "" {
			_ = json.Unmarshal([]byte(m.MetaData), &meta)
		}
		events = append(events, &biz.WebhookEvent{
			ID:             m.ID,
			SubscriptionID: m.SubscriptionID,
			PaymentID:      m.PaymentID,
			TransactionID:  m.TransactionID,
			RefundID:       m.RefundID,
			PaymentStatus:  constants.PaymentStatus(m.PaymentStatus),
			Amount:         m.Amount,
			ActionType:     constants.SubscriptionAction(m.ActionType),
			PreviousPlanID: m.PreviousPlanID,
			MetaData:       meta,
			CreatedAt:      m.CreatedAt,
		})
	}
	return events, nil
}
