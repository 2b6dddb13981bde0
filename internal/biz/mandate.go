package biz

import (
	"context"
	"time"
)

// Mandate 用户的自动扣款授权凭据。只增不改:
// 每次携带授权信息的成功回调都会插入新记录,
// 最新创建的一条为权威凭据,续费扣款以它为准。
type Mandate struct {
	ID                 uint64
	UserID             uint64
	MandateID          string
	PaymentMethodToken string
	CreatedAt          time.Time
}

// MandateRepo 授权凭据仓库接口
type MandateRepo interface {
	Create(ctx context.Context, mandate *Mandate) error
	// LatestByUser 获取用户最新的授权凭据,没有时返回 (nil, nil)
	LatestByUser(ctx context.Context, userID uint64) (*Mandate, error)
	// RevokeByUser 撤销用户的所有授权凭据
	RevokeByUser(ctx context.Context, userID uint64) error
}

// RevokeMandate 撤销用户的自动扣款授权
func (uc *SubscriptionUsecase) RevokeMandate(ctx context.Context, userID uint64) error {
	return uc.mandateRepo.RevokeByUser(ctx, userID)
}
