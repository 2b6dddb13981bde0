package biz

import (
	"context"
	"testing"
	"time"

	"xinyuan_tech/billing-service/internal/constants"
	"xinyuan_tech/billing-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicPlan() *Plan {
	return &Plan{ID: 1, Name: "Basic", Price: 999, ValidityInDays: 30, IsActive: true}
}

func proPlan() *Plan {
	return &Plan{ID: 2, Name: "Pro", Price: 1999, ValidityInDays: 30, IsActive: true}
}

func TestReceiveWebhookPersistsAndPublishes(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1, PaymentStatus: constants.PaymentStatusPending})

	err := f.uc.ReceiveWebhook(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
		Amount:         999,
	})
	require.NoError(t, err)

	events, err := f.uc.ListWebhookEvents(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "pay-1", events[0].PaymentID)

	topics := f.queue.topics()
	require.Len(t, topics, 1)
	assert.Equal(t, constants.DefaultWebhookTopic, topics[0])
}

func TestReceiveWebhookRejectsMissingFields(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1})

	err := f.uc.ReceiveWebhook(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentStatus:  constants.PaymentStatusSuccess,
	})
	require.Error(t, err)
	assert.Empty(t, f.queue.topics())
	assert.Empty(t, f.events.events)
}

func TestReceiveWebhookUnknownSubscriptionDropped(t *testing.T) {
	f := newFixture(basicPlan())

	err := f.uc.ReceiveWebhook(context.Background(), &WebhookEvent{
		SubscriptionID: 4242,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
	})
	require.NoError(t, err)
	assert.Empty(t, f.queue.topics())
}

func TestReceiveWebhookStoresMandate(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1})

	err := f.uc.ReceiveWebhook(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
		Amount:         999,
		MandateID:      "mandate-1",
	})
	require.NoError(t, err)

	mandate, err := f.mandates.LatestByUser(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, mandate)
	assert.Equal(t, "mandate-1", mandate.MandateID)
}

func TestApplySuccessActivatesAndSweepsSiblings(t *testing.T) {
	f := newFixture(basicPlan())
	old := f.subs.add(&Subscription{UserID: 7, PlanID: 1, IsActive: true, SubscriptionStatus: constants.SubscriptionStatusActive})
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1, PaymentStatus: constants.PaymentStatusPending})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
		Amount:         999,
	})
	require.NoError(t, err)

	updated, _ := f.subs.Get(context.Background(), sub.ID)
	assert.True(t, updated.IsActive)
	assert.Equal(t, constants.SubscriptionStatusActive, updated.SubscriptionStatus)
	assert.Equal(t, constants.PaymentStatusSuccess, updated.PaymentStatus)
	assert.NotEmpty(t, updated.ReceiptURL)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 30), updated.ExpiresOn, time.Minute)

	sibling, _ := f.subs.Get(context.Background(), old.ID)
	assert.False(t, sibling.IsActive)

	assert.Equal(t, []string{string(constants.PaymentStatusSuccess)}, f.notifier.events)
	assert.Equal(t, []uint64{7}, f.cache.invalidated)
}

func TestApplySuccessPriceMismatchRefundsWithoutActivating(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1, PaymentStatus: constants.PaymentStatusPending, Gateway: "stripe"})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
		Amount:         500,
	})
	require.NoError(t, err)

	require.Len(t, f.payments.refunds, 1)
	refund := f.payments.refunds[0]
	assert.Equal(t, "pay-1", refund.PaymentID)
	assert.Equal(t, constants.ReasonAmountMismatch, refund.Reason)
	assert.Equal(t, "stripe", refund.Gateway)

	updated, _ := f.subs.Get(context.Background(), sub.ID)
	assert.False(t, updated.IsActive)
	assert.Equal(t, constants.PaymentStatusPending, updated.PaymentStatus)
}

func TestApplySuccessRefundFailureIsRetryable(t *testing.T) {
	f := newFixture(basicPlan())
	f.payments.refundErr = assert.AnError
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1, PaymentStatus: constants.PaymentStatusPending})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
		Amount:         500,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRefundFailed))

	updated, _ := f.subs.Get(context.Background(), sub.ID)
	assert.False(t, updated.IsActive)
}

func TestApplySuccessDuplicateIsIdempotent(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1, PaymentStatus: constants.PaymentStatusPending})

	event := &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
		Amount:         999,
	}
	require.NoError(t, f.uc.ApplyWebhookEvent(context.Background(), event))
	require.NoError(t, f.uc.ApplyWebhookEvent(context.Background(), event))

	// 第二次投递不触发重复的同级停用和通知
	assert.Len(t, f.subs.siblingSweeps, 1)
	assert.Len(t, f.notifier.events, 1)
}

func TestApplyFailedRenewalBackdatesExpiry(t *testing.T) {
	f := newFixture(basicPlan())
	future := time.Now().UTC().AddDate(0, 0, 10)
	sub := f.subs.add(&Subscription{
		UserID: 7, PlanID: 1, IsActive: true,
		SubscriptionStatus: constants.SubscriptionStatusActive,
		ExpiresOn:          future,
	})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-2",
		TransactionID:  "txn-2",
		PaymentStatus:  constants.PaymentStatusFailed,
		ActionType:     constants.ActionRenewal,
	})
	require.NoError(t, err)

	updated, _ := f.subs.Get(context.Background(), sub.ID)
	assert.False(t, updated.IsActive)
	assert.Equal(t, constants.PaymentStatusFailed, updated.PaymentStatus)
	assert.True(t, updated.ExpiresOn.Before(time.Now().UTC()), "expiry should be backdated")

	topics := f.queue.topics()
	require.Len(t, topics, 1)
	assert.Equal(t, constants.DefaultPaymentFailedTopic, topics[0])
	assert.Equal(t, []string{string(constants.ActionRenewal)}, f.notifier.events)
}

func TestApplyFailedNonRenewalKeepsExpiry(t *testing.T) {
	f := newFixture(basicPlan())
	future := time.Now().UTC().AddDate(0, 0, 10)
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1, ExpiresOn: future})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-2",
		TransactionID:  "txn-2",
		PaymentStatus:  constants.PaymentStatusFailed,
	})
	require.NoError(t, err)

	updated, _ := f.subs.Get(context.Background(), sub.ID)
	assert.True(t, updated.ExpiresOn.Equal(future))
}

func TestApplyRefundSuccessRecordsRefund(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1, PaymentStatus: constants.PaymentStatusPending})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		RefundID:       "refund-1",
		PaymentStatus:  constants.PaymentStatusRefundSuccess,
	})
	require.NoError(t, err)

	updated, _ := f.subs.Get(context.Background(), sub.ID)
	assert.Equal(t, constants.PaymentStatusRefundSuccess, updated.PaymentStatus)
	assert.Equal(t, "refund-1", updated.RefundID)
	assert.False(t, updated.IsActive)
	assert.Empty(t, f.queue.topics())
}

func TestApplyRefundFailedPublishesFailedEvent(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		TransactionID:  "txn-1",
		RefundID:       "refund-1",
		PaymentStatus:  constants.PaymentStatusRefundFailed,
	})
	require.NoError(t, err)

	topics := f.queue.topics()
	require.Len(t, topics, 1)
	assert.Equal(t, constants.DefaultPaymentFailedTopic, topics[0])
}

func TestApplyUnknownStatusDropped(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1})

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		PaymentStatus:  "chargeback",
	})
	require.NoError(t, err)

	updated, _ := f.subs.Get(context.Background(), sub.ID)
	assert.Empty(t, updated.PaymentID)
}

func TestApplyLockBusyReturnsError(t *testing.T) {
	f := newFixture(basicPlan())
	sub := f.subs.add(&Subscription{UserID: 7, PlanID: 1})
	f.locker.busy = true

	err := f.uc.ApplyWebhookEvent(context.Background(), &WebhookEvent{
		SubscriptionID: sub.ID,
		PaymentID:      "pay-1",
		PaymentStatus:  constants.PaymentStatusSuccess,
		Amount:         999,
	})
	require.Error(t, err)
}
