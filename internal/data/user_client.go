package data

import (
	"context"
	"fmt"

	"xinyuan_tech/billing-service/internal/biz"
	"xinyuan_tech/billing-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

type userServiceClient struct {
	client *khttp.Client
	log    *log.Helper
}

// NewUserClient 创建用户服务客户端
func NewUserClient(c *conf.Bootstrap, logger log.Logger) (biz.UserClient, error) {
	addr := ""
	if c != nil && c.Client != nil && c.Client.UserService != nil {
		addr = c.Client.UserService.Addr
	}
	if addr == "" {
		// 如果没有配置，返回空实现（优雅降级）
		return &emptyUserClient{}, nil
	}

	client, err := khttp.NewClient(context.Background(),
		khttp.WithEndpoint(addr),
		khttp.WithTimeout(c.CallTimeout()),
	)
	if err != nil {
		return &emptyUserClient{}, nil
	}
	return &userServiceClient{
		client: client,
		log:    log.NewHelper(logger),
	}, nil
}

type userReply struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GetUser 获取用户信息
func (c *userServiceClient) GetUser(ctx context.Context, userID uint64) (*biz.UserInfo, error) {
	var reply userReply
	path := fmt.Sprintf("/v1/users/%d", userID)
	if err := c.client.Invoke(ctx, "GET", path, nil, &reply); err != nil {
		c.log.Warnf("Failed to get user %d from user service: %v", userID, err)
		return nil, err
	}
	return &biz.UserInfo{
		ID:    reply.ID,
		Email: reply.Email,
		Name:  reply.Name,
	}, nil
}

// emptyUserClient 空的用户服务客户端实现（优雅降级）
type emptyUserClient struct{}

func (c *emptyUserClient) GetUser(ctx context.Context, userID uint64) (*biz.UserInfo, error) {
	return &biz.UserInfo{ID: userID}, nil
}
