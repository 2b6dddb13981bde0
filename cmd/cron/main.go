package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/conf"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// CronApp Cron 应用结构
type CronApp struct {
	subscriptionUsecase *biz.SubscriptionUsecase
}

// newLogger 创建 logger
func newLogger() klog.Logger {
	return klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.name", "billing-cron",
	)
}

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// cron 进程一次性读取配置即可,不需要配置热更新
	bc, err := conf.Load(flagconf)
	if err != nil {
		panic(err)
	}

	// 初始化应用
	app, cleanup, err := wireApp(bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	schedule := bc.RenewalSchedule()

	// 到期订阅续费扫描
	_, err = cronScheduler.AddFunc(schedule, func() {
		log.Println("[CRON] Starting renewal sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		summary, err := app.subscriptionUsecase.ProcessExpiringSubscriptions(ctx)
		if err != nil {
			log.Printf("[CRON] Error processing expiring subscriptions: %v", err)
			return
		}
		log.Printf("[CRON] Renewal sweep completed: total=%d, renewed=%d, skipped=%d, failed=%d",
			summary.Total, summary.Renewed, summary.Skipped, summary.Failed)
	})
	if err != nil {
		log.Printf("Failed to add renewal sweep job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	log.Println("========================================")
	log.Println("Cron jobs started successfully")
	log.Printf("  - Renewal sweep:  %s", schedule)
	log.Println("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		log.Println("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Cron jobs forced to stop after timeout")
	}
}
