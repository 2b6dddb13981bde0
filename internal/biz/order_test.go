package biz

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderCreatesPendingAndInitiatesPayment(t *testing.T) {
	f := newFixture(basicPlan())

	result, err := f.uc.CreateOrder(context.Background(), 7, &CreateOrderRequest{
		PlanID:  1,
		Gateway: "stripe",
	})
	require.NoError(t, err)
	assert.NotZero(t, result.SubscriptionID)
	assert.NotEmpty(t, result.OrderID)

	sub, _ := f.subs.Get(context.Background(), result.SubscriptionID)
	require.NotNil(t, sub)
	assert.False(t, sub.IsActive)
	assert.Equal(t, constants.PaymentStatusPending, sub.PaymentStatus)
	assert.Equal(t, constants.SubscriptionStatusInactive, sub.SubscriptionStatus)
	assert.Equal(t, 999.0, sub.Amount)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 30), sub.ExpiresOn, time.Minute)

	require.Len(t, f.payments.orders, 1)
	order := f.payments.orders[0]
	assert.Equal(t, constants.ActionNewSubscription, order.ActionType)
	assert.Equal(t, sub.ID, order.SubscriptionID)
	assert.Equal(t, 999.0, order.Amount)
}

func TestCreateOrderRejectsUnknownPlan(t *testing.T) {
	f := newFixture(basicPlan())

	_, err := f.uc.CreateOrder(context.Background(), 7, &CreateOrderRequest{PlanID: 42})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePlanNotFound))
}

func TestCreateOrderRejectsExistingActiveSubscription(t *testing.T) {
	f := newFixture(basicPlan())
	f.subs.add(&Subscription{UserID: 7, PlanID: 1, IsActive: true})

	_, err := f.uc.CreateOrder(context.Background(), 7, &CreateOrderRequest{PlanID: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadySubscribed))
	assert.Empty(t, f.payments.orders)
}

func TestCreateOrderPaymentFailureReturnsGenericError(t *testing.T) {
	f := newFixture(basicPlan())
	f.payments.payErr = stderrors.New("dial tcp 127.0.0.1:8100: connect: connection refused")

	_, err := f.uc.CreateOrder(context.Background(), 7, &CreateOrderRequest{PlanID: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodePaymentUnavailable))
	// 网关连接细节只进日志,不进给用户的错误信息
	assert.NotContains(t, err.Error(), "dial tcp")
}
