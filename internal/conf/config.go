package conf

import (
	"fmt"
	"time"

	"xinyuan_tech/billing-service/internal/constants"
)

type Bootstrap struct {
	Server     *Server     `yaml:"server" json:"server"`
	Data       *Data       `yaml:"data" json:"data"`
	Client     *Client     `yaml:"client" json:"client"`
	Queue      *Queue      `yaml:"queue" json:"queue"`
	Renewal    *Renewal    `yaml:"renewal" json:"renewal"`
	Resilience *Resilience `yaml:"resilience" json:"resilience"`
	Log        *Log        `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver       string `yaml:"driver" json:"driver"`
		Source       string `yaml:"source" json:"source"`
		MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	} `yaml:"redis" json:"redis"`
}

type Client struct {
	PaymentService *PaymentService `yaml:"payment_service" json:"payment_service"`
	UserService    *UserService    `yaml:"user_service" json:"user_service"`
}

type PaymentService struct {
	Addr string `yaml:"addr" json:"addr"`
}

type UserService struct {
	Addr string `yaml:"addr" json:"addr"`
}

type Queue struct {
	WebhookTopic       string `yaml:"webhook_topic" json:"webhook_topic"`
	PaymentFailedTopic string `yaml:"payment_failed_topic" json:"payment_failed_topic"`
}

type Renewal struct {
	// Schedule 续费扫描 cron 表达式 (秒级精度)
	Schedule string `yaml:"schedule" json:"schedule"`
}

type Resilience struct {
	RetryMaxAttempts        int    `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryBaseDelay          string `yaml:"retry_base_delay" json:"retry_base_delay"`
	BreakerFailureThreshold int    `yaml:"breaker_failure_threshold" json:"breaker_failure_threshold"`
	BreakerRecoveryTime     string `yaml:"breaker_recovery_time" json:"breaker_recovery_time"`
	CallTimeout             string `yaml:"call_timeout" json:"call_timeout"`
}

type Log struct {
	Level string `yaml:"level" json:"level"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Client == nil || b.Client.PaymentService == nil || b.Client.PaymentService.Addr == "" {
		return fmt.Errorf("client.payment_service.addr is required")
	}
	return nil
}

// WebhookTopic 带缺省值的回调事件队列名
func (b *Bootstrap) WebhookTopic() string {
	if b.Queue != nil && b.Queue.WebhookTopic != "" {
		return b.Queue.WebhookTopic
	}
	return constants.DefaultWebhookTopic
}

// PaymentFailedTopic 带缺省值的支付失败事件队列名
func (b *Bootstrap) PaymentFailedTopic() string {
	if b.Queue != nil && b.Queue.PaymentFailedTopic != "" {
		return b.Queue.PaymentFailedTopic
	}
	return constants.DefaultPaymentFailedTopic
}

// RenewalSchedule 带缺省值的续费扫描调度表达式
func (b *Bootstrap) RenewalSchedule() string {
	if b.Renewal != nil && b.Renewal.Schedule != "" {
		return b.Renewal.Schedule
	}
	return constants.DefaultRenewalSchedule
}

// RetryMaxAttempts 带缺省值的重试次数
func (b *Bootstrap) RetryMaxAttempts() int {
	if b.Resilience != nil && b.Resilience.RetryMaxAttempts > 0 {
		return b.Resilience.RetryMaxAttempts
	}
	return constants.DefaultRetryMaxAttempts
}

// RetryBaseDelay 带缺省值的重试基础延迟
func (b *Bootstrap) RetryBaseDelay() time.Duration {
	if b.Resilience != nil {
		if d, err := time.ParseDuration(b.Resilience.RetryBaseDelay); err == nil && d > 0 {
			return d
		}
	}
	return constants.DefaultRetryBaseDelay
}

// BreakerFailureThreshold 带缺省值的熔断阈值
func (b *Bootstrap) BreakerFailureThreshold() int {
	if b.Resilience != nil && b.Resilience.BreakerFailureThreshold > 0 {
		return b.Resilience.BreakerFailureThreshold
	}
	return constants.DefaultBreakerFailureThreshold
}

// BreakerRecoveryTime 带缺省值的熔断恢复时间
func (b *Bootstrap) BreakerRecoveryTime() time.Duration {
	if b.Resilience != nil {
		if d, err := time.ParseDuration(b.Resilience.BreakerRecoveryTime); err == nil && d > 0 {
			return d
		}
	}
	return constants.DefaultBreakerRecoveryTime
}

// CallTimeout 带缺省值的单次外呼超时
func (b *Bootstrap) CallTimeout() time.Duration {
	if b.Resilience != nil {
		if d, err := time.ParseDuration(b.Resilience.CallTimeout); err == nil && d > 0 {
			return d
		}
	}
	return constants.DefaultCallTimeout
}
