package data

import (
	"context"
	"errors"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// planRepo 套餐仓库实现
type planRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlanRepo 创建套餐仓库
func NewPlanRepo(data *Data, logger log.Logger) biz.PlanRepo {
	return &planRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Get 按 ID 获取套餐
func (r *planRepo) Get(ctx context.Context, id uint64) (*biz.Plan, error) {
	var m model.Plan
	err := r.data.DB(ctx).Where("plan_id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get plan %d: %v", id, err)
		return nil, err
	}
	return toBizPlan(&m), nil
}

// ListActive 获取所有上架套餐
func (r *planRepo) ListActive(ctx context.Context, excludePlanID uint64) ([]*biz.Plan, error) {
	query := r.data.DB(ctx).Where("is_active = ?", true)
	if excludePlanID != 0 {
		query = query.Where("plan_id <> ?", excludePlanID)
	}

	var models []model.Plan
	if err := query.Order("price ASC").Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list active plans: %v", err)
		return nil, err
	}

	plans := make([]*biz.Plan, 0, len(models))
	for i := range models {
		plans = append(plans, toBizPlan(&models[i]))
	}
	return plans, nil
}

func toBizPlan(m *model.Plan) *biz.Plan {
	return &biz.Plan{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Price:           m.Price,
		ValidityInDays:  m.ValidityInDays,
		IsActive:        m.IsActive,
		IsNew:           m.IsNew,
		IsPromotional:   m.IsPromotional,
		SubscriberCount: m.SubscriberCount,
		CreatedAt:       m.CreatedAt,
	}
}
