package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrEmptyBaseURL 未配置基础URL
	ErrEmptyBaseURL = errors.New("adapter: base URL is required")
	// ErrNoEndpoints 没有可用的候选端点
	ErrNoEndpoints = errors.New("adapter: no candidate endpoints")
	// ErrAborted 调用方的ctx在重试过程中取消或到期
	ErrAborted = errors.New("adapter: retry aborted")
)

// HTTPError 表示收到了状态码>=400的HTTP响应
type HTTPError struct {
	Method     string `json:"method"`
	Endpoint   string `json:"endpoint"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
}

// TransportError 表示请求没有得到HTTP响应（连接被重置、超时等）
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError 表示响应格式不符合预期
type ProtocolError struct {
	Endpoint string
	Message  string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// StatusCode 返回错误链中的HTTP状态码，不存在时返回0
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsRetryable 判断错误是否可以重试
// 可重试：连接被重置、传输层超时或连接中止、5xx、429
// 调用方取消或到期（context.Canceled、ErrAborted）永远不可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrAborted) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError ||
			httpErr.StatusCode == http.StatusTooManyRequests
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// 对端在响应前关闭连接，Go客户端表现为EOF
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	}

	return false
}
