package data

import (
	"context"
	"errors"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// mandateRepo 授权凭据仓库实现
type mandateRepo struct {
	data *Data
	log  *log.Helper
}

// NewMandateRepo 创建授权凭据仓库
func NewMandateRepo(data *Data, logger log.Logger) biz.MandateRepo {
	return &mandateRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Create 插入新的授权凭据 (只增不改)
func (r *mandateRepo) Create(ctx context.Context, mandate *biz.Mandate) error {
	m := &model.Mandate{
		UserID:             mandate.UserID,
		MandateID:          mandate.MandateID,
		PaymentMethodToken: mandate.PaymentMethodToken,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create mandate for user %d: %v", mandate.UserID, err)
		return err
	}
	mandate.ID = m.ID
	mandate.CreatedAt = m.CreatedAt
	return nil
}

// LatestByUser 获取用户最新的未撤销授权凭据
func (r *mandateRepo) LatestByUser(ctx context.Context, userID uint64) (*biz.Mandate, error) {
	var m model.Mandate
	err := r.data.DB(ctx).
		Where("user_id = ? AND revoked = ?", userID, false).
		Order("mandate_record_id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get latest mandate for user %d: %v", userID, err)
		return nil, err
	}
	return &biz.Mandate{
		ID:                 m.ID,
		UserID:             m.UserID,
		MandateID:          m.MandateID,
		PaymentMethodToken: m.PaymentMethodToken,
		CreatedAt:          m.CreatedAt,
	}, nil
}

// RevokeByUser 撤销用户的所有授权凭据
func (r *mandateRepo) RevokeByUser(ctx context.Context, userID uint64) error {
	err := r.data.DB(ctx).Model(&model.Mandate{}).
		Where("user_id = ?", userID).
		Update("revoked", true).Error
	if err != nil {
		r.log.Errorf("Failed to revoke mandates for user %d: %v", userID, err)
	}
	return err
}
