package server

import (
	"encoding/json"
	stdhttp "net/http"
	"strconv"
	"time"

	"xinyuan_tech/billing-service/internal/auth"
	"xinyuan_tech/billing-service/internal/conf"
	"xinyuan_tech/billing-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer, NewQueueConsumer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, billing *service.BillingService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.Filter(auth.HTTPFilter),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if c.Server.Http.Timeout != "" {
		if d, err := time.ParseDuration(c.Server.Http.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, billing)

	// 注册健康检查端点
	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, map[string]string{
			"service": "billing-service",
			"status":  "ok",
		})
	})

	return srv
}

// registerRoutes 注册业务路由
func registerRoutes(srv *http.Server, billing *service.BillingService) {
	r := srv.Route("/v1")

	r.POST("/orders", func(ctx http.Context) error {
		var req service.CreateOrderRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := billing.CreateOrder(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/payment/webhook", func(ctx http.Context) error {
		var req service.WebhookRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if _, err := billing.HandleWebhook(ctx, &req); err != nil {
			return err
		}
		// 确认即可,回调方不消费响应体
		return ctx.String(stdhttp.StatusNoContent, "")
	})

	r.POST("/subscriptions/action", func(ctx http.Context) error {
		var req service.SubscriptionActionRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := billing.HandleSubscriptionAction(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/plans/quote", func(ctx http.Context) error {
		targetPlanID, _ := strconv.ParseUint(ctx.Query().Get("target_plan_id"), 10, 64)
		reply, err := billing.GetUpgradeQuote(ctx, targetPlanID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/plans", func(ctx http.Context) error {
		reply, err := billing.ListPlans(ctx)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/mandates/revoke", func(ctx http.Context) error {
		if err := billing.RevokeMandate(ctx); err != nil {
			return err
		}
		return ctx.String(stdhttp.StatusNoContent, "")
	})

	r.GET("/subscriptions/{id}", func(ctx http.Context) error {
		id, _ := strconv.ParseUint(ctx.Vars().Get("id"), 10, 64)
		reply, err := billing.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/subscriptions/{id}/events", func(ctx http.Context) error {
		id, _ := strconv.ParseUint(ctx.Vars().Get("id"), 10, 64)
		reply, err := billing.ListSubscriptionEvents(ctx, id)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"message": "internal server error",
	}

	if se != nil && se.Reason != "" {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	}
	// 未携带业务错误码的错误一律返回通用文案,不回显内部细节

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	if code >= 140400 && code < 140500 {
		// 支付通道故障属于临时不可用,提示稍后重试
		return stdhttp.StatusServiceUnavailable
	}
	if code >= 140000 && code < 150000 {
		return stdhttp.StatusBadRequest
	}
	return stdhttp.StatusInternalServerError
}
