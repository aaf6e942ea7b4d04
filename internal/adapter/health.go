package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultHealthPaths 健康检查默认探测路径，按顺序尝试
var DefaultHealthPaths = []string{"/health", "/api/health", "/v1/health", "/status"}

// HealthCheck 依次探测健康路径，任一返回200即认为服务可用
// 每个路径只尝试一次，不重试；永远不返回错误
func (a *Adapter) HealthCheck(ctx context.Context, paths ...string) (healthy bool) {
	if len(paths) == 0 {
		paths = DefaultHealthPaths
	}

	defer func() {
		if r := recover(); r != nil {
			a.observer.Observe(Event{Kind: EventProbe, Err: fmt.Errorf("health probe panic: %v", r)})
			healthy = false
		}
	}()

	for _, path := range paths {
		if ctx.Err() != nil {
			return false
		}

		start := time.Now()
		resp, err := a.Do(ctx, &Request{Method: http.MethodGet, Path: path})
		ev := Event{
			Kind:     EventProbe,
			Method:   http.MethodGet,
			Endpoint: a.cfg.BaseURL + path,
			Latency:  time.Since(start),
			Err:      err,
		}
		if resp != nil {
			ev.StatusCode = resp.StatusCode
		}
		a.observer.Observe(ev)

		if err == nil && resp.StatusCode == http.StatusOK {
			return true
		}
	}
	return false
}
