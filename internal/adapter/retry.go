package adapter

import (
	"context"
	"fmt"
	"time"
)

// Operation 一次可重试的远程操作，结果通过闭包带回
type Operation func(ctx context.Context) error

// EndpointOperation 针对单个候选端点的操作
type EndpointOperation func(ctx context.Context, path string) error

// retryState 单次调用的重试状态，不在调用之间共享
type retryState struct {
	remaining int   // 剩余可重试次数
	retries   int   // 已经发生的重试次数，决定退避时长
	lastErr   error // 最近一次失败
}

func (a *Adapter) newRetryState() *retryState {
	return &retryState{remaining: a.cfg.MaxRetries}
}

// Backoff 返回第attempt次重试前的等待时间（线性增长）
func (a *Adapter) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return a.cfg.RetryDelay * time.Duration(attempt)
}

// Execute 执行op，对可重试错误做线性退避重试
// 最多执行MaxRetries+1次，终止性错误在首次出现时原样返回
func (a *Adapter) Execute(ctx context.Context, op Operation) error {
	state := a.newRetryState()
	for {
		if err := ctx.Err(); err != nil {
			return a.aborted(err, state.lastErr)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		state.lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return a.aborted(ctxErr, err)
		}
		if !IsRetryable(err) {
			return err
		}
		if state.remaining == 0 {
			a.observer.Observe(Event{Kind: EventGiveUp, Attempt: state.retries + 1, Err: err})
			return err
		}

		if err := a.backoff(ctx, state, ""); err != nil {
			return err
		}
	}
}

// Fallback 按顺序尝试候选端点，第一个成功的胜出
// 所有候选共享一份重试预算：终止性错误直接切换到下一个候选且不消耗预算，
// 可重试错误在预算允许时重试当前候选，预算耗尽后切换
// 全部失败时返回最后一次观察到的错误
func (a *Adapter) Fallback(ctx context.Context, paths []string, op EndpointOperation) error {
	if len(paths) == 0 {
		return ErrNoEndpoints
	}

	state := a.newRetryState()
	for i, path := range paths {
		for {
			if err := ctx.Err(); err != nil {
				return a.aborted(err, state.lastErr)
			}

			err := op(ctx, path)
			if err == nil {
				return nil
			}
			state.lastErr = err

			if ctxErr := ctx.Err(); ctxErr != nil {
				return a.aborted(ctxErr, err)
			}
			if !IsRetryable(err) || state.remaining == 0 {
				break
			}
			if err := a.backoff(ctx, state, path); err != nil {
				return err
			}
		}

		if i < len(paths)-1 {
			a.observer.Observe(Event{
				Kind:       EventFallback,
				Endpoint:   path,
				StatusCode: StatusCode(state.lastErr),
				Err:        state.lastErr,
			})
		}
	}

	a.observer.Observe(Event{
		Kind:       EventGiveUp,
		Endpoint:   paths[len(paths)-1],
		StatusCode: StatusCode(state.lastErr),
		Err:        state.lastErr,
	})
	return state.lastErr
}

// backoff 消耗一次预算并等待，等待期间ctx取消会立即返回
func (a *Adapter) backoff(ctx context.Context, state *retryState, endpoint string) error {
	state.remaining--
	state.retries++
	delay := a.Backoff(state.retries)

	a.observer.Observe(Event{
		Kind:       EventRetry,
		Endpoint:   endpoint,
		Attempt:    state.retries,
		Delay:      delay,
		StatusCode: StatusCode(state.lastErr),
		Err:        state.lastErr,
	})

	if err := a.sleep(ctx, delay); err != nil {
		return a.aborted(err, state.lastErr)
	}
	return nil
}

// aborted 构造取消错误，同时包装ErrAborted和ctx错误
// 到期的调用方不能被当作可重试的传输超时
func (a *Adapter) aborted(ctxErr, lastErr error) error {
	if lastErr == nil {
		return fmt.Errorf("%w: %w", ErrAborted, ctxErr)
	}
	return fmt.Errorf("%w: %w (last error: %v)", ErrAborted, ctxErr, lastErr)
}
