package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStatus 初始化流程运行状态
type RunStatus string

const (
	// RunStatusPending 已创建，等待执行（异步模式下已入队）
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning 执行中
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted 全部步骤完成
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed 某一步失败，已创建的远程资源不会回滚
	RunStatusFailed RunStatus = "failed"
)

// SetupStep 初始化流程的步骤
type SetupStep string

const (
	// StepInspect 本地文件检查
	StepInspect SetupStep = "inspect"
	// StepArchive 原始文件归档
	StepArchive SetupStep = "archive"
	// StepCreateDataset 创建数据集
	StepCreateDataset SetupStep = "create_dataset"
	// StepUpload 上传文档
	StepUpload SetupStep = "upload"
	// StepParse 触发解析
	StepParse SetupStep = "parse"
	// StepCreateAssistant 创建助手
	StepCreateAssistant SetupStep = "create_assistant"
	// StepDone 完成
	StepDone SetupStep = "done"
)

// SetupRun 一次初始化流程的记录
// 失败时保留已创建的数据集和文档ID，便于人工清理
type SetupRun struct {
	ID          string         `gorm:"primaryKey;size:36"`     // 运行ID
	Status      RunStatus      `gorm:"not null;size:20;index"` // 运行状态
	Step        SetupStep      `gorm:"size:32"`                // 当前或失败时所在的步骤
	DatasetID   string         `gorm:"size:64;index"`          // 创建的数据集ID
	AssistantID string         `gorm:"size:64"`                // 创建的助手ID
	DocumentIDs datatypes.JSON `gorm:"type:json"`              // 上传得到的文档ID列表
	FileCount   int            `gorm:"not null;default:0"`     // 输入文件数量
	Async       bool           `gorm:"default:false"`          // 是否通过任务队列执行
	TaskID      string         `gorm:"size:64;index"`          // 关联的任务ID
	Error       string         `gorm:"type:text"`              // 错误信息
	CreatedAt   time.Time      `gorm:"not null;index"`         // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`               // 更新时间
	FinishedAt  *time.Time     `gorm:"index"`                  // 结束时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *SetupRun) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = RunStatusPending
	}
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *SetupRun) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (SetupRun) TableName() string {
	return "setup_runs"
}

// SetDocumentIDs 以JSON形式保存文档ID
func (r *SetupRun) SetDocumentIDs(ids []string) {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	r.DocumentIDs = datatypes.JSON(data)
}

// GetDocumentIDs 解析文档ID列表
func (r *SetupRun) GetDocumentIDs() []string {
	ids := []string{}
	if len(r.DocumentIDs) == 0 {
		return ids
	}
	_ = json.Unmarshal(r.DocumentIDs, &ids)
	return ids
}

// IsFinished 是否已经结束
func (r *SetupRun) IsFinished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// SetupFile 参与初始化的源文件
type SetupFile struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"` // 主键ID
	RunID       string    `gorm:"not null;size:36;index"`   // 所属运行ID
	FileName    string    `gorm:"not null"`                 // 文件名
	FileType    string    `gorm:"size:16"`                  // 文件类型
	FileSize    int64     `gorm:"not null;default:0"`       // 文件大小（字节）
	PageCount   int       `gorm:"default:0"`                // PDF页数
	Title       string    `gorm:"size:255"`                 // 文档标题
	StoragePath string    `gorm:"size:512"`                 // 归档位置
	DocumentID  string    `gorm:"size:64"`                  // Ragflow中的文档ID
	CreatedAt   time.Time `gorm:"not null"`                 // 创建时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (f *SetupFile) BeforeCreate(tx *gorm.DB) (err error) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (SetupFile) TableName() string {
	return "setup_files"
}
