package data

import (
	"context"
	"fmt"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// cacheInvalidator 订阅变更后清理用户的读视图缓存。
// 缓存由读侧服务维护,本服务只负责失效。
type cacheInvalidator struct {
	rdb *redis.Client
	log *log.Helper
}

// NewCacheInvalidator 创建缓存失效器
func NewCacheInvalidator(rdb *redis.Client, logger log.Logger) biz.CacheInvalidator {
	return &cacheInvalidator{
		rdb: rdb,
		log: log.NewHelper(logger),
	}
}

// InvalidateUser 删除该用户的资料、订阅和报价缓存
func (c *cacheInvalidator) InvalidateUser(ctx context.Context, userID uint64) error {
	keys := []string{
		fmt.Sprintf("%s%d", constants.CacheKeyUserProfile, userID),
		fmt.Sprintf("%s%d", constants.CacheKeyUserSubscriptions, userID),
		fmt.Sprintf("%s%d", constants.CacheKeyUpgradeQuote, userID),
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warnf("Failed to invalidate caches for user %d: %v", userID, err)
		return err
	}
	return nil
}
