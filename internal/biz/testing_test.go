package biz

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"xinyuan_tech/billing-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// 内存版仓库与协作方实现,测试专用

type fakeSubRepo struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription

	deactivated     []uint64
	siblingSweeps   []uint64 // 每次 DeactivateSiblings 的 keepID
	activateMissing bool     // Activate 返回 0 行
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{nextID: 1, subs: map[uint64]*Subscription{}}
}

func (r *fakeSubRepo) add(sub *Subscription) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == 0 {
		sub.ID = r.nextID
		r.nextID++
	} else if sub.ID >= r.nextID {
		r.nextID = sub.ID + 1
	}
	cp := *sub
	r.subs[cp.ID] = &cp
	return sub
}

func (r *fakeSubRepo) Create(ctx context.Context, sub *Subscription) error {
	r.add(sub)
	return nil
}

func (r *fakeSubRepo) Get(ctx context.Context, id uint64) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeSubRepo) Update(ctx context.Context, sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs[cp.ID] = &cp
	return nil
}

func (r *fakeSubRepo) FindActiveByUser(ctx context.Context, userID uint64) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.IsActive {
			if found == nil || sub.ID > found.ID {
				found = sub
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (r *fakeSubRepo) DeactivateSiblings(ctx context.Context, userID, keepID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.siblingSweeps = append(r.siblingSweeps, keepID)
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.ID != keepID {
			sub.IsActive = false
			sub.SubscriptionStatus = "inactive"
		}
	}
	return nil
}

func (r *fakeSubRepo) Deactivate(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivated = append(r.deactivated, id)
	if sub, ok := r.subs[id]; ok {
		sub.IsActive = false
		sub.SubscriptionStatus = "inactive"
	}
	return nil
}

func (r *fakeSubRepo) Activate(ctx context.Context, id uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activateMissing {
		return 0, nil
	}
	sub, ok := r.subs[id]
	if !ok {
		return 0, nil
	}
	sub.IsActive = true
	sub.SubscriptionStatus = "active"
	return 1, nil
}

func (r *fakeSubRepo) FindExpiring(ctx context.Context, before time.Time) ([]*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Subscription
	for _, sub := range r.subs {
		if sub.IsActive && !sub.ExpiresOn.After(before) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*WebhookEvent
}

func (r *fakeEventRepo) Append(ctx context.Context, event *WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uint64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) ListBySubscription(ctx context.Context, subscriptionID uint64) ([]*WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*WebhookEvent
	for _, e := range r.events {
		if e.SubscriptionID == subscriptionID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeMandateRepo struct {
	mu       sync.Mutex
	mandates []*Mandate
}

func (r *fakeMandateRepo) Create(ctx context.Context, mandate *Mandate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mandate.ID = uint64(len(r.mandates) + 1)
	r.mandates = append(r.mandates, mandate)
	return nil
}

func (r *fakeMandateRepo) LatestByUser(ctx context.Context, userID uint64) (*Mandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Mandate
	for _, m := range r.mandates {
		if m.UserID == userID {
			latest = m
		}
	}
	return latest, nil
}

func (r *fakeMandateRepo) RevokeByUser(ctx context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.mandates[:0]
	for _, m := range r.mandates {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	r.mandates = kept
	return nil
}

type fakePlanRepo struct {
	plans map[uint64]*Plan
}

func (r *fakePlanRepo) Get(ctx context.Context, id uint64) (*Plan, error) {
	plan, ok := r.plans[id]
	if !ok {
		return nil, nil
	}
	cp := *plan
	return &cp, nil
}

func (r *fakePlanRepo) ListActive(ctx context.Context, excludePlanID uint64) ([]*Plan, error) {
	var out []*Plan
	for _, plan := range r.plans {
		if plan.IsActive && plan.ID != excludePlanID {
			cp := *plan
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakePaymentClient struct {
	mu      sync.Mutex
	orders  []*PaymentOrder
	refunds []*RefundRequest

	payErr    error
	refundErr error
}

func (c *fakePaymentClient) InitiatePayment(ctx context.Context, order *PaymentOrder) (*OrderSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payErr != nil {
		return nil, c.payErr
	}
	c.orders = append(c.orders, order)
	return &OrderSummary{
		OrderID:   fmt.Sprintf("order-%d", len(c.orders)),
		PaymentID: fmt.Sprintf("pay-%d", len(c.orders)),
	}, nil
}

func (c *fakePaymentClient) InitiateRefund(ctx context.Context, refund *RefundRequest) (*RefundSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refundErr != nil {
		return nil, c.refundErr
	}
	c.refunds = append(c.refunds, refund)
	return &RefundSummary{RefundID: fmt.Sprintf("refund-%d", len(c.refunds))}, nil
}

type publishedMessage struct {
	topic   string
	payload []byte
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (q *fakeQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (q *fakeQueue) topics() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.messages))
	for _, m := range q.messages {
		out = append(out, m.topic)
	}
	return out
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []uint64
}

func (c *fakeCache) InvalidateUser(ctx context.Context, userID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uint64, event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	keys []string
	busy bool
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return nil, fmt.Errorf("lock %s held", key)
	}
	l.keys = append(l.keys, key)
	return func(ctx context.Context) error { return nil }, nil
}

type fakeTx struct{}

func (fakeTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeUserClient struct{}

func (fakeUserClient) GetUser(ctx context.Context, userID uint64) (*UserInfo, error) {
	return &UserInfo{ID: userID, Email: fmt.Sprintf("user%d@example.com", userID)}, nil
}

// fixture 聚合所有测试替身
type fixture struct {
	uc *SubscriptionUsecase

	subs     *fakeSubRepo
	events   *fakeEventRepo
	mandates *fakeMandateRepo
	plans    *fakePlanRepo
	payments *fakePaymentClient
	queue    *fakeQueue
	cache    *fakeCache
	notifier *fakeNotifier
	locker   *fakeLocker
}

func newFixture(plans ...*Plan) *fixture {
	f := &fixture{
		subs:     newFakeSubRepo(),
		events:   &fakeEventRepo{},
		mandates: &fakeMandateRepo{},
		plans:    &fakePlanRepo{plans: map[uint64]*Plan{}},
		payments: &fakePaymentClient{},
		queue:    &fakeQueue{},
		cache:    &fakeCache{},
		notifier: &fakeNotifier{},
		locker:   &fakeLocker{},
	}
	for _, plan := range plans {
		f.plans.plans[plan.ID] = plan
	}
	f.uc = NewSubscriptionUsecase(
		f.subs, f.events, f.mandates, f.plans,
		f.payments, f.queue, f.cache, f.notifier,
		f.locker, fakeTx{},
		&conf.Bootstrap{},
		log.NewStdLogger(io.Discard),
	)
	return f
}
