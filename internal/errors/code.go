package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 计费服务错误码定义
// 错误码格式：SSMMEE (6位数字)，其中 SS=14 表示 billing-service
// 模块划分：
//   01: 套餐模块
//   02: 订阅生命周期
//   03: 订单模块
//   04: 支付模块
//   05: 回调模块

// 套餐模块 (140100-140199)
const (
	// ErrCodePlanNotFound 套餐不存在错误
	ErrCodePlanNotFound = 140101
	// ErrCodeTargetPlanNotFound 目标套餐不存在错误
	ErrCodeTargetPlanNotFound = 140102
)

// 订阅生命周期模块 (140200-140299)
const (
	// ErrCodeSubscriptionNotFound 订阅不存在错误
	ErrCodeSubscriptionNotFound = 140201
	// ErrCodeNoActiveSubscription 用户没有活跃订阅错误
	ErrCodeNoActiveSubscription = 140202
	// ErrCodeAlreadySubscribed 用户已有活跃订阅错误
	ErrCodeAlreadySubscribed = 140203
	// ErrCodeUnsupportedAction 不支持的订阅操作错误
	ErrCodeUnsupportedAction = 140204
)

// 订单模块 (140300-140399)
const (
	// ErrCodeOrderCreateFailed 订单创建失败错误
	ErrCodeOrderCreateFailed = 140301
)

// 支付模块 (140400-140499)
const (
	// ErrCodePaymentUnavailable 支付服务不可用错误
	ErrCodePaymentUnavailable = 140401
	// ErrCodeRefundFailed 退款发起失败错误
	ErrCodeRefundFailed = 140402
)

// 回调模块 (140500-140599)
const (
	// ErrCodeWebhookInvalidPayload 回调参数缺失错误
	ErrCodeWebhookInvalidPayload = 140501
)

func ErrPlanNotFound(planID uint64) *kerrors.Error {
	return kerrors.New(ErrCodePlanNotFound, "PLAN_NOT_FOUND", fmt.Sprintf("plan %d not found", planID))
}

func ErrTargetPlanNotFound(planID uint64) *kerrors.Error {
	return kerrors.New(ErrCodeTargetPlanNotFound, "TARGET_PLAN_NOT_FOUND", fmt.Sprintf("target plan %d not found", planID))
}

func ErrSubscriptionNotFound(subscriptionID uint64) *kerrors.Error {
	return kerrors.New(ErrCodeSubscriptionNotFound, "SUBSCRIPTION_NOT_FOUND", fmt.Sprintf("subscription %d not found", subscriptionID))
}

func ErrNoActiveSubscription() *kerrors.Error {
	return kerrors.New(ErrCodeNoActiveSubscription, "NO_ACTIVE_SUBSCRIPTION", "no active subscription found")
}

func ErrAlreadySubscribed() *kerrors.Error {
	return kerrors.New(ErrCodeAlreadySubscribed, "ALREADY_SUBSCRIBED", "you already have an active subscription, please try switching to a different plan")
}

func ErrUnsupportedAction(action string) *kerrors.Error {
	return kerrors.New(ErrCodeUnsupportedAction, "UNSUPPORTED_ACTION", fmt.Sprintf("unsupported action %s", action))
}

func ErrOrderCreateFailed() *kerrors.Error {
	return kerrors.New(ErrCodeOrderCreateFailed, "ORDER_CREATE_FAILED", "failed to create subscription order")
}

func ErrPaymentUnavailable() *kerrors.Error {
	return kerrors.New(ErrCodePaymentUnavailable, "PAYMENT_UNAVAILABLE", "unable to initiate payment at the moment, please try again later")
}

func ErrRefundFailed() *kerrors.Error {
	return kerrors.New(ErrCodeRefundFailed, "REFUND_FAILED", "failed to initiate refund")
}

func ErrWebhookInvalidPayload() *kerrors.Error {
	return kerrors.New(ErrCodeWebhookInvalidPayload, "WEBHOOK_INVALID_PAYLOAD", "webhook payload missing required fields subscriptionId | paymentId | paymentStatus | transactionId")
}

// IsCode 判断错误是否携带指定业务错误码
func IsCode(err error, code int) bool {
	if err == nil {
		return false
	}
	return kerrors.FromError(err).Code == int32(code)
}
