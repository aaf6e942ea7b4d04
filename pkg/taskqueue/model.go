package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskSetupSystem 完整的Ragflow初始化流程任务
	TaskSetupSystem TaskType = "setup_system"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理（包括等待重试）
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	RunID       string          `json:"run_id"`       // 关联的初始化运行ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// IsFinished 任务是否已结束
func (t *Task) IsFinished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// StoredFile 已归档的源文件
type StoredFile struct {
	Name        string `json:"name"`         // 原始文件名
	StoragePath string `json:"storage_path"` // 存储键
	Size        int64  `json:"size"`         // 文件大小
}

// SetupPayload 初始化任务载荷
// 文件内容不进入Redis，worker从存储中读取
type SetupPayload struct {
	RunID string       `json:"run_id"`
	Files []StoredFile `json:"files"`
}

// SetupResult 初始化任务结果
type SetupResult struct {
	RunID       string   `json:"run_id"`
	DatasetID   string   `json:"dataset_id"`
	AssistantID string   `json:"assistant_id"`
	DocumentIDs []string `json:"document_ids"`
}
