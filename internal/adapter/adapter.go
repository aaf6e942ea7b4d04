// Package adapter 提供带重试和端点回退的出站HTTP适配器
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Request 单次出站请求的描述，每次调用时构造
type Request struct {
	Method  string            // HTTP方法
	Path    string            // 相对于BaseURL的路径
	Body    interface{}       // JSON请求体，可为空
	Headers map[string]string // 额外请求头
	Files   []File            // multipart文件，非空时忽略Body
	Result  interface{}       // 响应JSON的解码目标，可为空
}

// File multipart上传的单个文件
// 内容以字节保存，重试时可以重新读取
type File struct {
	Field       string // 表单字段名，默认file
	Name        string // 文件名
	ContentType string // MIME类型
	Content     []byte // 文件内容
}

// Response 出站请求的原始响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// SleepFunc 退避等待函数，ctx取消时应立即返回ctx.Err()
type SleepFunc func(ctx context.Context, d time.Duration) error

// Adapter 弹性HTTP适配器
// 并发安全：每次Execute调用拥有自己的重试预算，调用之间不共享可变状态
type Adapter struct {
	cfg      Config
	client   *resty.Client
	observer Observer
	sleep    SleepFunc
}

// Option 适配器选项
type Option func(*Adapter)

// WithObserver 设置观测钩子
func WithObserver(observer Observer) Option {
	return func(a *Adapter) {
		if observer != nil {
			a.observer = observer
		}
	}
}

// WithLogger 使用logrus记录适配器事件和底层客户端日志
func WithLogger(logger *logrus.Logger) Option {
	return func(a *Adapter) {
		if logger == nil {
			return
		}
		a.observer = NewLogObserver(logger)
		a.client.SetLogger(logger)
	}
}

// WithSleeper 替换退避等待函数，主要用于测试
func WithSleeper(sleep SleepFunc) Option {
	return func(a *Adapter) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

// WithTransport 替换底层RoundTripper
func WithTransport(transport http.RoundTripper) Option {
	return func(a *Adapter) {
		if transport != nil {
			a.client.SetTransport(transport)
		}
	}
}

// New 创建适配器，仅在BaseURL为空时失败
func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	// 重试完全由适配器控制，底层客户端不重试
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "ragflow-setup/1.0")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	a := &Adapter{
		cfg:      cfg,
		client:   client,
		observer: nopObserver{},
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config 返回适配器配置的副本
func (a *Adapter) Config() Config {
	return a.cfg
}

// BaseURL 返回基础URL
func (a *Adapter) BaseURL() string {
	return a.cfg.BaseURL
}

// Do 执行一次出站请求，不做重试
// 状态码>=400返回*HTTPError，未收到响应返回*TransportError
func (a *Adapter) Do(ctx context.Context, req *Request) (*Response, error) {
	endpoint := a.cfg.BaseURL + req.Path
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := a.client.R().SetContext(ctx)
	for key, value := range req.Headers {
		r.SetHeader(key, value)
	}

	if len(req.Files) > 0 {
		fields := make([]*resty.MultipartField, 0, len(req.Files))
		for _, f := range req.Files {
			field := f.Field
			if field == "" {
				field = "file"
			}
			contentType := f.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			fields = append(fields, &resty.MultipartField{
				Param:       field,
				FileName:    f.Name,
				ContentType: contentType,
				Reader:      bytes.NewReader(f.Content),
			})
		}
		r.SetMultipartFields(fields...)
	} else if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body for %s: %w", endpoint, err)
		}
		r.SetHeader("Content-Type", "application/json").SetBody(data)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.Path)
	if err != nil {
		transportErr := &TransportError{Method: method, Endpoint: endpoint, Err: err}
		a.observer.Observe(Event{
			Kind:     EventRequest,
			Method:   method,
			Endpoint: endpoint,
			Latency:  time.Since(start),
			Err:      transportErr,
		})
		return nil, transportErr
	}

	result := &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}
	a.observer.Observe(Event{
		Kind:       EventRequest,
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: result.StatusCode,
		Latency:    time.Since(start),
	})

	if result.StatusCode >= http.StatusBadRequest {
		return result, &HTTPError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: result.StatusCode,
			Message:    errorMessage(result.Body),
		}
	}

	if req.Result != nil && len(result.Body) > 0 {
		if err := json.Unmarshal(result.Body, req.Result); err != nil {
			return result, &ProtocolError{
				Endpoint: endpoint,
				Message:  "failed to decode response JSON",
				Err:      err,
			}
		}
	}

	return result, nil
}

// errorMessage 从错误响应体中提取可读信息
func errorMessage(body []byte) string {
	var errResp struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Message != "":
			return errResp.Message
		case errResp.Detail != "":
			return errResp.Detail
		case errResp.Error != "":
			return errResp.Error
		}
	}

	const maxLen = 256
	msg := string(bytes.TrimSpace(body))
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}

// sleepContext 默认的退避等待实现
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
