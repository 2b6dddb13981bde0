package server

import (
	"context"
	"encoding/json"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/conf"
	"xinyuan_tech/billing-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
)

// QueueConsumer 回调事件队列消费端,作为应用内的 transport.Server
// 随进程启停。消息经过基本校验后交给状态机应用;
// 格式非法的消息直接确认丢弃,业务失败的消息由队列重投。
type QueueConsumer struct {
	queue  *data.RedisQueue
	uc     *biz.SubscriptionUsecase
	topic  string
	cancel context.CancelFunc
	done   chan struct{}
	log    *log.Helper
}

// NewQueueConsumer 创建队列消费端
func NewQueueConsumer(c *conf.Bootstrap, queue *data.RedisQueue, uc *biz.SubscriptionUsecase, logger log.Logger) *QueueConsumer {
	return &QueueConsumer{
		queue: queue,
		uc:    uc,
		topic: c.WebhookTopic(),
		done:  make(chan struct{}),
		log:   log.NewHelper(logger),
	}
}

// Start 启动消费循环
func (s *QueueConsumer) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.log.Infof("Starting queue consumer on topic %s", s.topic)

	go func() {
		defer close(s.done)
		if err := s.queue.Consume(ctx, s.topic, s.handle); err != nil && ctx.Err() == nil {
			s.log.Errorf("Queue consumer stopped unexpectedly: %v", err)
		}
	}()
	return nil
}

// Stop 停止消费循环
func (s *QueueConsumer) Stop(ctx context.Context) error {
	s.log.Info("Stopping queue consumer")
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

// handle 处理一条队列消息。返回错误会触发重投,
// 所以只有可重试的业务失败才返回错误。
func (s *QueueConsumer) handle(ctx context.Context, payload []byte) error {
	var event biz.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.log.Warnf("Discarding malformed queue message: %v", err)
		return nil
	}
	if event.SubscriptionID == 0 || event.PaymentID == "" || event.PaymentStatus == "" {
		s.log.Warnf("Discarding queue message with missing fields: subscription=%d payment=%q status=%q",
			event.SubscriptionID, event.PaymentID, event.PaymentStatus)
		return nil
	}
	return s.uc.ApplyWebhookEvent(ctx, &event)
}
