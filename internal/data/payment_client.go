package data

import (
	"context"
	"strconv"
	"time"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/conf"
	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/resilience"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// paymentServiceClient 支付服务客户端。所有外呼都包在熔断器里,
// 熔断器内部做线性退避重试: 一次 Fire 只向熔断器提交一个结果,
// 避免单次业务调用的多次重试把熔断器直接打穿。
type paymentServiceClient struct {
	client  *khttp.Client
	breaker *resilience.CircuitBreaker

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	callTimeout      time.Duration

	log *log.Helper
}

// NewPaymentClient 创建支付服务客户端
func NewPaymentClient(c *conf.Bootstrap, logger log.Logger) (biz.PaymentClient, error) {
	client, err := khttp.NewClient(context.Background(),
		khttp.WithEndpoint(c.Client.PaymentService.Addr),
		khttp.WithTimeout(c.CallTimeout()),
	)
	if err != nil {
		return nil, err
	}
	return &paymentServiceClient{
		client:           client,
		breaker:          resilience.NewCircuitBreaker(c.BreakerFailureThreshold(), c.BreakerRecoveryTime()),
		retryMaxAttempts: c.RetryMaxAttempts(),
		retryBaseDelay:   c.RetryBaseDelay(),
		callTimeout:      c.CallTimeout(),
		log:              log.NewHelper(logger),
	}, nil
}

// initiatePaymentRequest 支付发起请求 (订阅 ID 以字符串传输)
type initiatePaymentRequest struct {
	PlanID             uint64  `json:"planId"`
	PlanName           string  `json:"planName,omitempty"`
	Amount             float64 `json:"amount"`
	Gateway            string  `json:"gateway,omitempty"`
	SubscriptionID     string  `json:"subscriptionId"`
	MandateID          string  `json:"mandateId,omitempty"`
	PaymentMethodToken string  `json:"paymentMethodToken,omitempty"`
	ActionType         string  `json:"actionType,omitempty"`
	PreviousPlanID     uint64  `json:"previousPlanId,omitempty"`
}

type initiatePaymentReply struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
}

type initiateRefundRequest struct {
	PaymentID      string  `json:"paymentId"`
	SubscriptionID string  `json:"subscriptionId"`
	Amount         float64 `json:"amount"`
	Reason         string  `json:"reason,omitempty"`
	Gateway        string  `json:"gateway,omitempty"`
}

type initiateRefundReply struct {
	RefundID      string `json:"refundId"`
	PaymentStatus string `json:"paymentStatus"`
}

// InitiatePayment 发起支付
func (c *paymentServiceClient) InitiatePayment(ctx context.Context, order *biz.PaymentOrder) (*biz.OrderSummary, error) {
	req := &initiatePaymentRequest{
		PlanID:             order.PlanID,
		PlanName:           order.PlanName,
		Amount:             order.Amount,
		Gateway:            order.Gateway,
		SubscriptionID:     strconv.FormatUint(order.SubscriptionID, 10),
		MandateID:          order.MandateID,
		PaymentMethodToken: order.PaymentMethodToken,
		ActionType:         string(order.ActionType),
		PreviousPlanID:     order.PreviousPlanID,
	}

	var reply initiatePaymentReply
	if err := c.invoke(ctx, "/payment/initiate", req, &reply); err != nil {
		c.log.Errorf("Failed to initiate payment for subscription %d: %v", order.SubscriptionID, err)
		return nil, err
	}
	return &biz.OrderSummary{
		OrderID:   reply.OrderID,
		PaymentID: reply.PaymentID,
	}, nil
}

// InitiateRefund 发起退款
func (c *paymentServiceClient) InitiateRefund(ctx context.Context, refund *biz.RefundRequest) (*biz.RefundSummary, error) {
	req := &initiateRefundRequest{
		PaymentID:      refund.PaymentID,
		SubscriptionID: strconv.FormatUint(refund.SubscriptionID, 10),
		Amount:         refund.Amount,
		Reason:         refund.Reason,
		Gateway:        refund.Gateway,
	}

	var reply initiateRefundReply
	if err := c.invoke(ctx, "/refund/initiate", req, &reply); err != nil {
		c.log.Errorf("Failed to initiate refund for payment %s: %v", refund.PaymentID, err)
		return nil, err
	}
	return &biz.RefundSummary{
		RefundID:      reply.RefundID,
		PaymentStatus: constants.PaymentStatus(reply.PaymentStatus),
	}, nil
}

// invoke 执行一次受保护的外呼: 熔断器外层,重试内层,
// 每次尝试带独立的超时上下文。
func (c *paymentServiceClient) invoke(ctx context.Context, path string, req, reply interface{}) error {
	return c.breaker.Fire(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
			return c.client.Invoke(callCtx, "POST", path, req, reply)
		}, c.retryMaxAttempts, c.retryBaseDelay, func(attempt int, err error) {
			c.log.Warnf("Payment service call %s failed (attempt %d): %v", path, attempt, err)
		})
	})
}
