package data

import (
	"context"
	"errors"
	"time"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// subscriptionRepo 订阅仓库实现
type subscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewSubscriptionRepo 创建订阅仓库
func NewSubscriptionRepo(data *Data, logger log.Logger) biz.SubscriptionRepo {
	return &subscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Create 创建订阅记录
func (r *subscriptionRepo) Create(ctx context.Context, sub *biz.Subscription) error {
	m := toSubscriptionModel(sub)
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create subscription for user %d: %v", sub.UserID, err)
		return err
	}
	sub.ID = m.ID
	sub.CreatedAt = m.CreatedAt
	sub.UpdatedAt = m.UpdatedAt
	return nil
}

// Get 按 ID 获取订阅
func (r *subscriptionRepo) Get(ctx context.Context, id uint64) (*biz.Subscription, error) {
	var m model.Subscription
	err := r.data.DB(ctx).Where("subscription_id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get subscription %d: %v", id, err)
		return nil, err
	}
	return toBizSubscription(&m), nil
}

// Update 保存订阅
func (r *subscriptionRepo) Update(ctx context.Context, sub *biz.Subscription) error {
	m := toSubscriptionModel(sub)
	if err := r.data.DB(ctx).Save(m).Error; err != nil {
		r.log.Errorf("Failed to update subscription %d: %v", sub.ID, err)
		return err
	}
	return nil
}

// FindActiveByUser 获取用户当前的活跃订阅
func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, userID uint64) (*biz.Subscription, error) {
	var m model.Subscription
	err := r.data.DB(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("subscription_id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get active subscription for user %d: %v", userID, err)
		return nil, err
	}
	return toBizSubscription(&m), nil
}

// DeactivateSiblings 停用该用户除 keepID 之外的所有订阅记录
func (r *subscriptionRepo) DeactivateSiblings(ctx context.Context, userID, keepID uint64) error {
	err := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("user_id = ? AND subscription_id <> ?", userID, keepID).
		Updates(map[string]interface{}{
			"is_active": false,
			"status":    string(constants.SubscriptionStatusInactive),
		}).Error
	if err != nil {
		r.log.Errorf("Failed to deactivate sibling subscriptions for user %d: %v", userID, err)
	}
	return err
}

// Deactivate 停用单条订阅
func (r *subscriptionRepo) Deactivate(ctx context.Context, id uint64) error {
	err := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", id).
		Updates(map[string]interface{}{
			"is_active": false,
			"status":    string(constants.SubscriptionStatusInactive),
		}).Error
	if err != nil {
		r.log.Errorf("Failed to deactivate subscription %d: %v", id, err)
	}
	return err
}

// Activate 激活单条订阅, 返回受影响的行数
func (r *subscriptionRepo) Activate(ctx context.Context, id uint64) (int64, error) {
	result := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", id).
		Updates(map[string]interface{}{
			"is_active": true,
			"status":    string(constants.SubscriptionStatusActive),
		})
	if result.Error != nil {
		r.log.Errorf("Failed to activate subscription %d: %v", id, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindExpiring 获取 before 之前到期且活跃的订阅
func (r *subscriptionRepo) FindExpiring(ctx context.Context, before time.Time) ([]*biz.Subscription, error) {
	var models []model.Subscription
	err := r.data.DB(ctx).
		Where("is_active = ? AND expires_on <= ?", true, before).
		Order("expires_on ASC").
		Find(&models).Error
	if err != nil {
		r.log.Errorf("Failed to query expiring subscriptions: %v", err)
		return nil, err
	}

	subs := make([]*biz.Subscription, 0, len(models))
	for i := range models {
		subs = append(subs, toBizSubscription(&models[i]))
	}
	return subs, nil
}

func toSubscriptionModel(sub *biz.Subscription) *model.Subscription {
	return &model.Subscription{
		ID:                      sub.ID,
		UserID:                  sub.UserID,
		PlanID:                  sub.PlanID,
		Amount:                  sub.Amount,
		Gateway:                 sub.Gateway,
		PaymentID:               sub.PaymentID,
		TransactionID:           sub.TransactionID,
		RefundID:                sub.RefundID,
		PaymentStatus:           string(sub.PaymentStatus),
		Status:                  string(sub.SubscriptionStatus),
		ExpiresOn:               sub.ExpiresOn,
		DowngradeSubscriptionID: sub.DowngradeSubscriptionID,
		IsActive:                sub.IsActive,
		ReceiptURL:              sub.ReceiptURL,
		Notes:                   sub.Notes,
		CreatedAt:               sub.CreatedAt,
		UpdatedAt:               sub.UpdatedAt,
	}
}

func toBizSubscription(m *model.Subscription) *biz.Subscription {
	return &biz.Subscription{
		ID:                      m.ID,
		UserID:                  m.UserID,
		PlanID:                  m.PlanID,
		Amount:                  m.Amount,
		Gateway:                 m.Gateway,
		PaymentID:               m.PaymentID,
		TransactionID:           m.TransactionID,
		RefundID:                m.RefundID,
		PaymentStatus:           constants.PaymentStatus(m.PaymentStatus),
		SubscriptionStatus:      constants.SubscriptionStatus(m.Status),
		ExpiresOn:               m.ExpiresOn,
		DowngradeSubscriptionID: m.DowngradeSubscriptionID,
		IsActive:                m.IsActive,
		ReceiptURL:              m.ReceiptURL,
		Notes:                   m.Notes,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}
