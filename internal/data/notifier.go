package data

import (
	"context"

	"xinyuan_tech/billing-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// notifier 用户通知实现。先从用户服务解析收件地址,
// 再交给通知通道。当前通道为日志输出,邮件网关接入后替换。
type notifier struct {
	users biz.UserClient
	log   *log.Helper
}

// NewNotifier 创建用户通知器
func NewNotifier(users biz.UserClient, logger log.Logger) biz.Notifier {
	return &notifier{
		users: users,
		log:   log.NewHelper(logger),
	}
}

// Notify 发送订阅事件通知
func (n *notifier) Notify(ctx context.Context, userID uint64, event string) error {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		// 拿不到用户信息不阻塞主流程,记录后退出
		n.log.Warnf("Failed to resolve user %d for notification %s: %v", userID, event, err)
		return err
	}

	n.log.Infof("Notification sent: user=%d email=%s event=%s", userID, user.Email, event)
	return nil
}
