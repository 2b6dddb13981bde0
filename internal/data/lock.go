package data

import (
	"context"
	"time"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// redsyncLocker 基于 redsync 的分布式锁实现。
// 只尝试一次, 拿不到锁立即失败, 由调用方决定重投或放弃。
type redsyncLocker struct {
	rs  *redsync.Redsync
	log *log.Helper
}

// NewLocker 创建分布式锁
func NewLocker(rs *redsync.Redsync, logger log.Logger) biz.Locker {
	return &redsyncLocker{
		rs:  rs,
		log: log.NewHelper(logger),
	}
}

// Acquire 获取锁,返回解锁函数
func (l *redsyncLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, error) {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(constants.LockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		_, err := mutex.UnlockContext(ctx)
		return err
	}, nil
}
