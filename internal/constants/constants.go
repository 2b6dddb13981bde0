package constants

import "time"

// PaymentStatus is the closed set of payment outcomes reported by the
// payment boundary. Values are kept in sync with payment-service.
type PaymentStatus string

const (
	// PaymentStatusPending 待支付(订单已创建，等待支付)
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusSuccess 支付成功
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusFailed 支付失败
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefundSuccess 退款成功
	PaymentStatusRefundSuccess PaymentStatus = "refund_success"
	// PaymentStatusRefundFailed 退款失败
	PaymentStatusRefundFailed PaymentStatus = "refund_failed"
)

// SubscriptionStatus is the lifecycle status of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// SubscriptionAction is the closed set of subscriber-initiated and
// system-initiated plan-change actions.
type SubscriptionAction string

const (
	ActionCancel          SubscriptionAction = "cancel"
	ActionUpdatePlan      SubscriptionAction = "update_plan"
	ActionDowngradePlan   SubscriptionAction = "downgrade_plan"
	ActionRenewal         SubscriptionAction = "renewal"
	ActionNewSubscription SubscriptionAction = "new_subscription"
	ActionNoChange        SubscriptionAction = "no_change"
)

// 队列相关常量
const (
	// DefaultWebhookTopic 支付回调事件队列
	DefaultWebhookTopic = "payment-webhook-events"
	// DefaultPaymentFailedTopic 支付失败事件队列 (下游通知/分析)
	DefaultPaymentFailedTopic = "payment-failed-events"
)

// 订阅相关常量
const (
	// MinimumValidityDays 套餐未配置有效期时的兜底有效期
	MinimumValidityDays = 30
	// DefaultRenewalSchedule 续费扫描默认调度 (每天凌晨 3 点)
	DefaultRenewalSchedule = "0 0 3 * * *"
)

// 分布式锁相关常量
const (
	// WebhookApplyLockExpiration 回调应用锁过期时间
	WebhookApplyLockExpiration = 30 * time.Second
	// RenewalLockExpiration 自动续费锁过期时间
	RenewalLockExpiration = 10 * time.Minute
	// LockRetries 只尝试一次,如果失败说明正在处理
	LockRetries = 1
)

// 缓存相关常量
const (
	// CacheKeyUserProfile 用户资料缓存前缀
	CacheKeyUserProfile = "user:profile:"
	// CacheKeyUserSubscriptions 用户订阅缓存前缀
	CacheKeyUserSubscriptions = "subscriptions:user:"
	// CacheKeyUpgradeQuote 升级报价缓存前缀
	CacheKeyUpgradeQuote = "upgrade:quote:"
)

// 弹性相关常量 (配置缺省值)
const (
	// DefaultRetryMaxAttempts 默认重试次数
	DefaultRetryMaxAttempts = 3
	// DefaultRetryBaseDelay 默认重试基础延迟 (线性退避: baseDelay * attempt)
	DefaultRetryBaseDelay = 500 * time.Millisecond
	// DefaultBreakerFailureThreshold 熔断器连续失败阈值
	DefaultBreakerFailureThreshold = 3
	// DefaultBreakerRecoveryTime 熔断器恢复等待时间
	DefaultBreakerRecoveryTime = 15 * time.Second
	// DefaultCallTimeout 单次外呼超时时间
	DefaultCallTimeout = 5 * time.Second
)

// 订阅备注 (写入 notes 字段)
const (
	NotePaymentCaptured = "payment captured"
	NotePaymentFailed   = "payment failed"
	NoteRefundSucceeded = "refund succeeded"
	NoteRefundFailed    = "refund failed"
)

// ReasonAmountMismatch 退款原因: 回调金额与套餐价格不符
const ReasonAmountMismatch = "amount mismatch"
