package data

import (
	"context"
	"time"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewDB,
	NewRedis,
	NewRedsync,
	NewSubscriptionRepo,
	NewWebhookEventRepo,
	NewMandateRepo,
	NewPlanRepo,
	NewPaymentClient,
	NewUserClient,
	NewNotifier,
	NewRedisQueue,
	NewCacheInvalidator,
	NewLocker,
	wire.Bind(new(biz.Transaction), new(*Data)),
	wire.Bind(new(biz.EventQueue), new(*RedisQueue)),
)

// Data .
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

type contextTxKey struct{}

// Exec 执行事务。fn 内通过 DB(ctx) 拿到的连接都在同一个事务里。
func (d *Data) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, contextTxKey{}, tx)
		return fn(ctx)
	})
}

// DB 返回当前上下文的数据库连接,事务内返回事务连接
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.db.WithContext(ctx)
}

// NewData .
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	cleanup := func() {
		helper.Info("closing the data resources")
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = rdb.Close()
	}
	return &Data{db: db, rdb: rdb}, cleanup, nil
}

// NewDB .
func NewDB(c *conf.Bootstrap) *gorm.DB {
	if c == nil || c.Data == nil || c.Data.Database.Source == "" {
		panic("database source is required")
	}
	source := c.Data.Database.Source

	db, err := gorm.Open(mysql.Open(source), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	if c.Data.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.Data.Database.MaxIdleConns)
	}
	if c.Data.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.Data.Database.MaxOpenConns)
	}
	return db
}

// NewRedis .
func NewRedis(c *conf.Bootstrap) *redis.Client {
	addr := "localhost:6379"
	password := ""
	var db int32
	var readTimeout, writeTimeout time.Duration

	if c != nil && c.Data != nil {
		redisConf := c.Data.Redis
		if redisConf.Addr != "" {
			addr = redisConf.Addr
		}
		password = redisConf.Password
		db = redisConf.Db
		if d, err := time.ParseDuration(redisConf.ReadTimeout); err == nil {
			readTimeout = d
		}
		if d, err := time.ParseDuration(redisConf.WriteTimeout); err == nil {
			writeTimeout = d
		}
	}

	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           int(db),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
}

// NewRedsync 创建分布式锁工厂
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	pool := goredis.NewPool(rdb)
	return redsync.New(pool)
}
