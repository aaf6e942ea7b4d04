package repository

import "github.com/fyerfyer/ragflow-setup/internal/models"

// SetupRunRepository 初始化运行记录仓储接口
// 负责运行记录和源文件记录的存储和检索
type SetupRunRepository interface {
	// Create 创建运行记录
	Create(run *models.SetupRun) error

	// Update 更新运行记录
	Update(run *models.SetupRun) error

	// GetByID 根据ID获取运行记录
	GetByID(id string) (*models.SetupRun, error)

	// List 列出运行记录，按创建时间倒序，支持分页和按状态筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.SetupRun, int64, error)

	// UpdateStep 更新当前步骤并标记为运行中
	UpdateStep(id string, step models.SetupStep) error

	// AttachTask 关联异步任务ID
	AttachTask(id string, taskID string) error

	// MarkFailed 标记运行失败，记录失败的步骤和错误
	MarkFailed(id string, step models.SetupStep, errorMsg string) error

	// MarkCompleted 标记运行成功
	MarkCompleted(id string, datasetID, assistantID string, documentIDs []string) error

	// SaveFiles 批量保存源文件记录
	SaveFiles(files []*models.SetupFile) error

	// GetFiles 获取运行的所有源文件记录
	GetFiles(runID string) ([]*models.SetupFile, error)
}
