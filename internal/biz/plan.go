package biz

import (
	"context"
	"fmt"
	"math"
	"time"

	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"
)

// Plan 订阅套餐。对本服务而言是不可变的参考数据,
// 套餐维护是外部管理后台的职责。
type Plan struct {
	ID              uint64
	Name            string
	Description     string
	Price           float64
	ValidityInDays  int
	IsActive        bool
	IsNew           bool
	IsPromotional   bool
	SubscriberCount int
	CreatedAt       time.Time
}

// PlanRepo 套餐仓库接口
type PlanRepo interface {
	// Get 按 ID 获取套餐,不存在时返回 (nil, nil)
	Get(ctx context.Context, id uint64) (*Plan, error)
	// ListActive 获取所有上架套餐, excludePlanID 非零时排除该套餐
	ListActive(ctx context.Context, excludePlanID uint64) ([]*Plan, error)
}

// PlanSummary 套餐摘要 (对外展示)
type PlanSummary struct {
	ID             uint64  `json:"id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	ValidityInDays int     `json:"validityInDays,omitempty"`
	IsNew          bool    `json:"isNew,omitempty"`
	IsPromotional  bool    `json:"isPromotional,omitempty"`
}

// UpgradeQuote 套餐变更报价
type UpgradeQuote struct {
	AmountDue   float64                      `json:"amountDue"`
	Disclaimer  string                       `json:"disclaimer"`
	ActionType  constants.SubscriptionAction `json:"actionType"`
	CurrentPlan *PlanSummary                 `json:"currentPlan"`
	TargetPlan  *PlanSummary                 `json:"targetPlan"`
}

// UserPlans 用户视角的套餐列表
type UserPlans struct {
	SubscribedPlan *PlanSummary   `json:"subscribedPlan"`
	AvailablePlans []*PlanSummary `json:"availablePlans"`
}

func toPlanSummary(plan *Plan) *PlanSummary {
	if plan == nil {
		return nil
	}
	return &PlanSummary{
		ID:             plan.ID,
		Name:           plan.Name,
		Price:          plan.Price,
		ValidityInDays: plan.ValidityInDays,
		IsNew:          plan.IsNew,
		IsPromotional:  plan.IsPromotional,
	}
}

// GetPlan 获取套餐信息
func (uc *SubscriptionUsecase) GetPlan(ctx context.Context, planID uint64) (*Plan, error) {
	return uc.planRepo.Get(ctx, planID)
}

// ListPlansForUser 返回用户已订阅的套餐摘要和其余可选套餐。
// 两个查询相互独立: 当前套餐加载失败只降级为空,不影响可选套餐列表。
func (uc *SubscriptionUsecase) ListPlansForUser(ctx context.Context, userID uint64) (*UserPlans, error) {
	var subscribedPlanID uint64

	sub, err := uc.subRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		uc.log.Warnf("Failed to load active subscription for user %d: %v", userID, err)
	} else if sub != nil {
		subscribedPlanID = sub.PlanID
	}

	var subscribed *PlanSummary
	if subscribedPlanID != 0 {
		plan, err := uc.planRepo.Get(ctx, subscribedPlanID)
		if err != nil {
			uc.log.Warnf("Unable to load plan %d: %v", subscribedPlanID, err)
		} else {
			subscribed = toPlanSummary(plan)
		}
	}

	plans, err := uc.planRepo.ListActive(ctx, subscribedPlanID)
	if err != nil {
		return nil, err
	}
	available := make([]*PlanSummary, len(plans))
	for i, p := range plans {
		available[i] = toPlanSummary(p)
	}

	return &UserPlans{SubscribedPlan: subscribed, AvailablePlans: available}, nil
}

// CalculateUpgradeQuote 计算用户切换到目标套餐的应付差价。
// 无活跃订阅时为新购 (全价); 目标价高于当前价为升级 (差价);
// 低于当前价为降级 (0 元,降级在下个计费周期生效,当前周期不退差价)。
func (uc *SubscriptionUsecase) CalculateUpgradeQuote(ctx context.Context, userID, targetPlanID uint64) (*UpgradeQuote, error) {
	targetPlan, err := uc.planRepo.Get(ctx, targetPlanID)
	if err != nil {
		return nil, err
	}
	if targetPlan == nil {
		return nil, errors.ErrTargetPlanNotFound(targetPlanID)
	}

	sub, err := uc.subRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		uc.log.Warnf("Failed to load active subscription for user %d: %v", userID, err)
		sub = nil
	}

	quote := &UpgradeQuote{
		AmountDue:  targetPlan.Price,
		ActionType: constants.ActionNewSubscription,
		TargetPlan: toPlanSummary(targetPlan),
	}
	if sub == nil {
		return quote, nil
	}

	// 当前套餐加载失败时按 0 价处理并告警,不阻断报价
	var currentPlan *Plan
	if currentPlan, err = uc.planRepo.Get(ctx, sub.PlanID); err != nil {
		uc.log.Warnf("Unable to load plan %d: %v", sub.PlanID, err)
		currentPlan = nil
	}
	currentPrice := 0.0
	currentName := "current plan"
	if currentPlan != nil {
		currentPrice = currentPlan.Price
		currentName = currentPlan.Name
		quote.CurrentPlan = toPlanSummary(currentPlan)
	} else {
		quote.CurrentPlan = &PlanSummary{ID: sub.PlanID, Name: currentName, Price: currentPrice}
	}

	difference := math.Round((targetPlan.Price-currentPrice)*100) / 100
	switch {
	case difference > 0:
		quote.AmountDue = difference
		quote.ActionType = constants.ActionUpdatePlan
		quote.Disclaimer = fmt.Sprintf(
			"Upgrading from %s to %s requires an additional payment of USD%.2f. Proceed to continue.",
			currentName, targetPlan.Name, difference)
	case difference < 0:
		quote.AmountDue = 0
		quote.ActionType = constants.ActionDowngradePlan
		quote.Disclaimer = fmt.Sprintf(
			"Downgrading from %s to %s will result in unavailability of certain features. Downgrades take effect at the next billing cycle and you will lose any benefits exclusive to the higher plan.",
			currentName, targetPlan.Name)
	default:
		quote.AmountDue = 0
		quote.ActionType = constants.ActionNoChange
		quote.Disclaimer = "Selected plan matches your current plan. No payment difference. Proceed to continue."
	}
	return quote, nil
}

// CheckPrice 价格完整性校验: 回调报告的扣款金额必须能精确还原套餐价格。
// 升级时要求 previousPlan.price + amount == plan.price,
// 其余情况要求 amount == plan.price。套餐缺失时一律判为不通过 (fail closed)。
// 这是针对支付边界上报金额异常的权威防线: 不通过的回调走退款,绝不激活。
func (uc *SubscriptionUsecase) CheckPrice(ctx context.Context, planID uint64, amount float64, actionType constants.SubscriptionAction, previousPlanID uint64) bool {
	plan, err := uc.planRepo.Get(ctx, planID)
	if err != nil || plan == nil {
		uc.log.Warnf("Price check failed to load plan %d: %v", planID, err)
		return false
	}

	if actionType == constants.ActionUpdatePlan {
		if previousPlanID == 0 {
			return false
		}
		previousPlan, err := uc.planRepo.Get(ctx, previousPlanID)
		if err != nil || previousPlan == nil {
			uc.log.Warnf("Price check failed to load previous plan %d: %v", previousPlanID, err)
			return false
		}
		return previousPlan.Price+amount == plan.Price
	}
	return plan.Price == amount
}
