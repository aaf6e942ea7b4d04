package taskqueue

import "context"

// HandlerFunc 将函数适配为Handler
type HandlerFunc struct {
	Types []TaskType
	Fn    func(ctx context.Context, task *Task) (interface{}, error)
}

// ProcessTask 处理任务
func (h HandlerFunc) ProcessTask(ctx context.Context, task *Task) (interface{}, error) {
	return h.Fn(ctx, task)
}

// GetTaskTypes 返回支持的任务类型
func (h HandlerFunc) GetTaskTypes() []TaskType {
	return h.Types
}

// RegisterHandlers 将处理器注册到它支持的所有任务类型
func RegisterHandlers(w Worker, handlers ...Handler) {
	for _, h := range handlers {
		for _, t := range h.GetTaskTypes() {
			w.RegisterHandler(t, h)
		}
	}
}
