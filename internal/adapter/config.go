package adapter

import (
	"strings"
	"time"
)

const (
	// DefaultTimeout 单次请求默认超时时间
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries 默认最大重试次数
	DefaultMaxRetries = 3
	// DefaultRetryDelay 默认退避基数
	DefaultRetryDelay = time.Second
)

// Config 适配器配置
// 构造之后不可变，由单个Adapter实例独占
type Config struct {
	BaseURL    string        // 远程服务基础URL，必填
	APIKey     string        // API密钥，为空时不发送Authorization头
	Timeout    time.Duration // 单次请求超时时间
	MaxRetries int           // 最大重试次数，0表示不重试
	RetryDelay time.Duration // 线性退避的基数
}

// DefaultConfig 返回指定基础URL的默认配置
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// withDefaults 补全未设置的字段
// MaxRetries为0是合法值，只有负数才回退到默认值
func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}
