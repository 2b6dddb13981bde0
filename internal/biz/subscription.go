package biz

import (
	"context"
	"time"

	"xinyuan_tech/billing-service/internal/conf"
	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(NewSubscriptionUsecase)

// Subscription 用户订阅记录。一个用户在一个计费周期内对一个套餐的权益。
// 不变量: 任一时刻每个用户最多只有一条 IsActive=true 的记录
// (每次激活时显式停用该用户的其他记录来保证)。
type Subscription struct {
	ID            uint64
	UserID        uint64
	PlanID        uint64
	Amount        float64
	Gateway       string
	PaymentID     string
	TransactionID string
	RefundID      string
	PaymentStatus constants.PaymentStatus
	// SubscriptionStatus 订阅生命周期状态 (inactive/active/paused/canceled)
	SubscriptionStatus constants.SubscriptionStatus
	ExpiresOn          time.Time
	// DowngradeSubscriptionID 预创建的降级目标订阅 ID (0 表示无)。
	// 指向的记录在下次续费扫描提升之前必须保持 inactive/isActive=false。
	DowngradeSubscriptionID uint64
	// IsActive 标记"该用户当前的权益记录",独立于 SubscriptionStatus
	IsActive   bool
	ReceiptURL string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SubscriptionRepo 订阅仓库接口
type SubscriptionRepo interface {
	Create(ctx context.Context, sub *Subscription) error
	// Get 按 ID 获取订阅,不存在时返回 (nil, nil)
	Get(ctx context.Context, id uint64) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	// FindActiveByUser 获取用户当前的活跃订阅,没有时返回 (nil, nil)
	FindActiveByUser(ctx context.Context, userID uint64) (*Subscription, error)
	// DeactivateSiblings 停用该用户除 keepID 之外的所有订阅记录
	DeactivateSiblings(ctx context.Context, userID, keepID uint64) error
	// Deactivate 将订阅置为 isActive=false / inactive
	Deactivate(ctx context.Context, id uint64) error
	// Activate 将订阅置为 isActive=true, 返回受影响的行数
	Activate(ctx context.Context, id uint64) (int64, error)
	// FindExpiring 获取 before 之前到期且 isActive=true 的订阅
	FindExpiring(ctx context.Context, before time.Time) ([]*Subscription, error)
}

// Transaction 事务执行接口
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker 分布式锁接口,按 key 串行化并发操作。
// Acquire 在锁被占用时立即失败; 成功时返回解锁函数。
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, error)
}

// EventQueue 持久化事件队列接口 (至少一次投递)
type EventQueue interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// CacheInvalidator 缓存失效钩子 (外部协作方)。
// 所有订阅/资料变更成功后必须按 userID 调用。
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uint64) error
}

// Notifier 用户通知接口。event 为动作类型或支付状态字面量。
type Notifier interface {
	Notify(ctx context.Context, userID uint64, event string) error
}

// UserInfo 用户服务返回的用户信息
type UserInfo struct {
	ID    uint64
	Email string
	Name  string
}

// UserClient 用户服务客户端接口 (防腐层)
type UserClient interface {
	GetUser(ctx context.Context, userID uint64) (*UserInfo, error)
}

// SubscriptionUsecase 订阅业务逻辑
type SubscriptionUsecase struct {
	subRepo       SubscriptionRepo
	eventRepo     WebhookEventRepo
	mandateRepo   MandateRepo
	planRepo      PlanRepo
	paymentClient PaymentClient
	queue         EventQueue
	cache         CacheInvalidator
	notifier      Notifier
	locker        Locker
	tm            Transaction

	webhookTopic string
	failedTopic  string

	log *log.Helper
}

// NewSubscriptionUsecase 创建订阅业务逻辑实例
func NewSubscriptionUsecase(
	subRepo SubscriptionRepo,
	eventRepo WebhookEventRepo,
	mandateRepo MandateRepo,
	planRepo PlanRepo,
	paymentClient PaymentClient,
	queue EventQueue,
	cache CacheInvalidator,
	notifier Notifier,
	locker Locker,
	tm Transaction,
	c *conf.Bootstrap,
	logger log.Logger,
) *SubscriptionUsecase {
	return &SubscriptionUsecase{
		subRepo:       subRepo,
		eventRepo:     eventRepo,
		mandateRepo:   mandateRepo,
		planRepo:      planRepo,
		paymentClient: paymentClient,
		queue:         queue,
		cache:         cache,
		notifier:      notifier,
		locker:        locker,
		tm:            tm,
		webhookTopic:  c.WebhookTopic(),
		failedTopic:   c.PaymentFailedTopic(),
		log:           log.NewHelper(logger),
	}
}

// GetSubscription 按 ID 获取订阅详情。非管理员只能查看自己的记录,
// 他人的订阅与不存在的订阅统一返回未找到,避免探测订阅 ID。
func (uc *SubscriptionUsecase) GetSubscription(ctx context.Context, userID, id uint64, admin bool) (*Subscription, error) {
	sub, err := uc.subRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil || (!admin && sub.UserID != userID) {
		return nil, errors.ErrSubscriptionNotFound(id)
	}
	return sub, nil
}

// FindActiveSubscriptionByUser 获取用户当前的活跃订阅
func (uc *SubscriptionUsecase) FindActiveSubscriptionByUser(ctx context.Context, userID uint64) (*Subscription, error) {
	return uc.subRepo.FindActiveByUser(ctx, userID)
}

// createPendingSubscription 创建待支付订阅记录 (新购/升级/降级预创建/续费共用)
func (uc *SubscriptionUsecase) createPendingSubscription(ctx context.Context, userID, planID uint64, amount float64, gateway string, expiresOn time.Time) (*Subscription, error) {
	sub := &Subscription{
		UserID:             userID,
		PlanID:             planID,
		Amount:             amount,
		Gateway:            gateway,
		PaymentStatus:      constants.PaymentStatusPending,
		SubscriptionStatus: constants.SubscriptionStatusInactive,
		IsActive:           false,
		ExpiresOn:          expiresOn,
	}
	if err := uc.subRepo.Create(ctx, sub); err != nil {
		uc.log.Errorf("Failed to create pending subscription for user %d: %v", userID, err)
		return nil, err
	}
	return sub, nil
}

// planValidityDays 套餐有效天数,未配置时使用兜底值
func planValidityDays(plan *Plan) int {
	if plan != nil && plan.ValidityInDays > 0 {
		return plan.ValidityInDays
	}
	return constants.MinimumValidityDays
}

// invalidateUserCaches 订阅变更后使用户的读视图缓存失效
func (uc *SubscriptionUsecase) invalidateUserCaches(ctx context.Context, userID uint64) {
	if err := uc.cache.InvalidateUser(ctx, userID); err != nil {
		// 缓存失效失败不影响主流程,只记录日志
		uc.log.Warnf("Failed to invalidate caches for user %d: %v", userID, err)
	}
}
