package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RedisQueue 基于 Redis 列表的持久化事件队列。
// 每个 topic 两个列表: pending 存待消费消息, processing 存已取出
// 但尚未确认的消息。取出用 BLMove 原子地在两个列表间移动,
// 处理成功后 LRem 确认; 处理失败或进程崩溃的消息会回到 pending,
// 因此投递语义是至少一次,消费方必须幂等。
type RedisQueue struct {
	rdb *redis.Client
	log *log.Helper
}

// NewRedisQueue 创建事件队列
func NewRedisQueue(rdb *redis.Client, logger log.Logger) *RedisQueue {
	return &RedisQueue{
		rdb: rdb,
		log: log.NewHelper(logger),
	}
}

func pendingKey(topic string) string    { return fmt.Sprintf("queue:%s:pending", topic) }
func processingKey(topic string) string { return fmt.Sprintf("queue:%s:processing", topic) }

// Publish 消息入队
func (q *RedisQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := q.rdb.RPush(ctx, pendingKey(topic), payload).Err(); err != nil {
		q.log.Errorf("Failed to publish to topic %s: %v", topic, err)
		return err
	}
	return nil
}

// Handler 消费回调。返回错误时消息回到 pending 队列尾部重投。
type Handler func(ctx context.Context, payload []byte) error

// Consume 阻塞消费循环,直到 ctx 取消。启动时先回收
// 上次进程崩溃遗留在 processing 里的消息。
func (q *RedisQueue) Consume(ctx context.Context, topic string, handler Handler) error {
	q.requeueOrphans(ctx, topic)

	pending := pendingKey(topic)
	processing := processingKey(topic)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := q.rdb.BLMove(ctx, pending, processing, "LEFT", "RIGHT", time.Second).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.Errorf("Failed to dequeue from topic %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		if herr := handler(ctx, []byte(payload)); herr != nil {
			q.log.Warnf("Handler failed for topic %s, requeueing: %v", topic, herr)
			q.requeue(ctx, topic, payload)
			continue
		}

		if err := q.rdb.LRem(ctx, processing, 1, payload).Err(); err != nil {
			q.log.Errorf("Failed to ack message on topic %s: %v", topic, err)
		}
	}
}

// requeue 把消息从 processing 移回 pending 队列尾部
func (q *RedisQueue) requeue(ctx context.Context, topic, payload string) {
	if err := q.rdb.LRem(ctx, processingKey(topic), 1, payload).Err(); err != nil {
		q.log.Errorf("Failed to remove message from processing on topic %s: %v", topic, err)
	}
	if err := q.rdb.RPush(ctx, pendingKey(topic), payload).Err(); err != nil {
		q.log.Errorf("Failed to requeue message on topic %s: %v", topic, err)
	}
}

// requeueOrphans 回收 processing 列表里的遗留消息
func (q *RedisQueue) requeueOrphans(ctx context.Context, topic string) {
	for {
		payload, err := q.rdb.RPopLPush(ctx, processingKey(topic), pendingKey(topic)).Result()
		if errors.Is(err, redis.Nil) {
			return
		}
		if err != nil {
			q.log.Warnf("Failed to recover orphaned messages on topic %s: %v", topic, err)
			return
		}
		q.log.Infof("Recovered orphaned message on topic %s (%d bytes)", topic, len(payload))
	}
}
