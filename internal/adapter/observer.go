package adapter

import (
	"time"

	"github.com/sirupsen/logrus"
)

// EventKind 观测事件类型
type EventKind string

const (
	// EventRequest 一次出站请求完成
	EventRequest EventKind = "request"
	// EventRetry 即将退避并重试
	EventRetry EventKind = "retry"
	// EventGiveUp 放弃重试，错误将传播给调用方
	EventGiveUp EventKind = "give_up"
	// EventFallback 当前候选端点失败，切换到下一个
	EventFallback EventKind = "fallback"
	// EventProbe 一次健康检查探测
	EventProbe EventKind = "probe"
)

// Event 观测事件
type Event struct {
	Kind       EventKind
	Method     string
	Endpoint   string
	Attempt    int
	Delay      time.Duration
	StatusCode int
	Latency    time.Duration
	Err        error
}

// Observer 可注入的观测钩子
// 适配器不直接打印日志，所有输出都经过这里
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc 函数形式的Observer
type ObserverFunc func(ev Event)

// Observe 实现Observer接口
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// LogObserver 使用logrus输出事件
type LogObserver struct {
	logger *logrus.Logger
}

// NewLogObserver 创建基于logrus的观测器
func NewLogObserver(logger *logrus.Logger) *LogObserver {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogObserver{logger: logger}
}

// Observe 实现Observer接口
func (o *LogObserver) Observe(ev Event) {
	fields := logrus.Fields{
		"event": string(ev.Kind),
	}
	if ev.Method != "" {
		fields["method"] = ev.Method
	}
	if ev.Endpoint != "" {
		fields["endpoint"] = ev.Endpoint
	}
	if ev.Attempt > 0 {
		fields["attempt"] = ev.Attempt
	}
	if ev.StatusCode > 0 {
		fields["status_code"] = ev.StatusCode
	}
	if ev.Delay > 0 {
		fields["delay"] = ev.Delay.String()
	}
	if ev.Latency > 0 {
		fields["latency"] = ev.Latency.String()
	}
	entry := o.logger.WithFields(fields)
	if ev.Err != nil {
		entry = entry.WithError(ev.Err)
	}

	switch ev.Kind {
	case EventRequest, EventProbe:
		entry.Debug("Outbound request finished")
	case EventRetry:
		entry.Warn("Outbound call failed, retrying")
	case EventFallback:
		entry.Warn("Endpoint failed, trying next candidate")
	case EventGiveUp:
		entry.Error("Outbound call failed")
	default:
		entry.Info("Adapter event")
	}
}
