package biz

import (
	"context"
	"testing"

	"xinyuan_tech/billing-service/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteWithoutSubscriptionIsNewSubscription(t *testing.T) {
	f := newFixture(basicPlan(), proPlan())

	quote, err := f.uc.CalculateUpgradeQuote(context.Background(), 7, 2)
	require.NoError(t, err)

	assert.Equal(t, constants.ActionNewSubscription, quote.ActionType)
	assert.Equal(t, 1999.0, quote.AmountDue)
	assert.Nil(t, quote.CurrentPlan)
	require.NotNil(t, quote.TargetPlan)
	assert.Equal(t, uint64(2), quote.TargetPlan.ID)
}

func TestQuoteUpgradeChargesDifference(t *testing.T) {
	f := newFixture(basicPlan(), proPlan())
	f.subs.add(&Subscription{UserID: 7, PlanID: 1, IsActive: true})

	quote, err := f.uc.CalculateUpgradeQuote(context.Background(), 7, 2)
	require.NoError(t, err)

	assert.Equal(t, constants.ActionUpdatePlan, quote.ActionType)
	assert.Equal(t, 1000.0, quote.AmountDue)
	assert.Contains(t, quote.Disclaimer, "additional payment of USD1000.00")
}

func TestQuoteDowngradeIsFree(t *testing.T) {
	f := newFixture(basicPlan(), proPlan())
	f.subs.add(&Subscription{UserID: 7, PlanID: 2, IsActive: true})

	quote, err := f.uc.CalculateUpgradeQuote(context.Background(), 7, 1)
	require.NoError(t, err)

	assert.Equal(t, constants.ActionDowngradePlan, quote.ActionType)
	assert.Equal(t, 0.0, quote.AmountDue)
	assert.Contains(t, quote.Disclaimer, "next billing cycle")
}

func TestQuoteSamePlanNoChange(t *testing.T) {
	f := newFixture(basicPlan(), proPlan())
	f.subs.add(&Subscription{UserID: 7, PlanID: 1, IsActive: true})

	quote, err := f.uc.CalculateUpgradeQuote(context.Background(), 7, 1)
	require.NoError(t, err)

	assert.Equal(t, constants.ActionNoChange, quote.ActionType)
	assert.Equal(t, 0.0, quote.AmountDue)
}

func TestQuoteUnknownTargetPlan(t *testing.T) {
	f := newFixture(basicPlan())

	_, err := f.uc.CalculateUpgradeQuote(context.Background(), 7, 42)
	require.Error(t, err)
}

func TestCheckPrice(t *testing.T) {
	f := newFixture(basicPlan(), proPlan())

	tests := []struct {
		name           string
		planID         uint64
		amount         float64
		actionType     constants.SubscriptionAction
		previousPlanID uint64
		want           bool
	}{
		{"exact match", 1, 999, "", 0, true},
		{"amount mismatch", 1, 500, "", 0, false},
		{"renewal exact match", 2, 1999, constants.ActionRenewal, 0, true},
		{"upgrade difference adds up", 2, 1000, constants.ActionUpdatePlan, 1, true},
		{"upgrade difference short", 2, 500, constants.ActionUpdatePlan, 1, false},
		{"upgrade missing previous plan", 2, 1000, constants.ActionUpdatePlan, 0, false},
		{"upgrade unknown previous plan", 2, 1000, constants.ActionUpdatePlan, 42, false},
		{"unknown plan fails closed", 42, 999, "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.uc.CheckPrice(context.Background(), tt.planID, tt.amount, tt.actionType, tt.previousPlanID)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListPlansForUser(t *testing.T) {
	f := newFixture(basicPlan(), proPlan())
	f.subs.add(&Subscription{UserID: 7, PlanID: 1, IsActive: true})

	plans, err := f.uc.ListPlansForUser(context.Background(), 7)
	require.NoError(t, err)

	require.NotNil(t, plans.SubscribedPlan)
	assert.Equal(t, uint64(1), plans.SubscribedPlan.ID)
	require.Len(t, plans.AvailablePlans, 1)
	assert.Equal(t, uint64(2), plans.AvailablePlans[0].ID)
}

func TestListPlansForUserWithoutSubscription(t *testing.T) {
	f := newFixture(basicPlan(), proPlan())

	plans, err := f.uc.ListPlansForUser(context.Background(), 7)
	require.NoError(t, err)

	assert.Nil(t, plans.SubscribedPlan)
	assert.Len(t, plans.AvailablePlans, 2)
}
