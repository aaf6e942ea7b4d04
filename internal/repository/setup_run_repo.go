package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fyerfyer/ragflow-setup/internal/database"
	"github.com/fyerfyer/ragflow-setup/internal/models"
)

// runRepository 运行记录仓储实现
type runRepository struct {
	db *gorm.DB // 数据库连接
}

// NewSetupRunRepository 使用全局数据库连接创建仓储实例
func NewSetupRunRepository() SetupRunRepository {
	return &runRepository{db: database.MustDB()}
}

// NewSetupRunRepositoryWithDB 使用指定的数据库连接创建仓储实例
func NewSetupRunRepositoryWithDB(db *gorm.DB) SetupRunRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &runRepository{db: db}
}

// Create 创建运行记录
func (r *runRepository) Create(run *models.SetupRun) error {
	if run.ID == "" {
		return errors.New("setup run ID cannot be empty")
	}
	if run.Status != "" && !models.ValidRunStatus(run.Status) {
		return models.ErrInvalidRunStatus
	}
	if run.DocumentIDs == nil {
		run.SetDocumentIDs(nil)
	}

	return r.db.Create(run).Error
}

// Update 更新运行记录
func (r *runRepository) Update(run *models.SetupRun) error {
	if run.ID == "" {
		return errors.New("setup run ID cannot be empty")
	}
	if !models.ValidRunStatus(run.Status) {
		return models.ErrInvalidRunStatus
	}

	return r.db.Save(run).Error
}

// GetByID 根据ID获取运行记录
func (r *runRepository) GetByID(id string) (*models.SetupRun, error) {
	var run models.SetupRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
		}
		return nil, err
	}
	return &run, nil
}

// List 列出运行记录
func (r *runRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.SetupRun, int64, error) {
	var runs []*models.SetupRun
	var total int64

	query := r.db.Model(&models.SetupRun{})

	if filters != nil {
		// 状态过滤
		switch s := filters["status"].(type) {
		case models.RunStatus:
			if s != "" {
				query = query.Where("status = ?", string(s))
			}
		case string:
			if s != "" {
				query = query.Where("status = ?", s)
			}
		}

		// 数据集过滤
		if datasetID, ok := filters["dataset_id"].(string); ok && datasetID != "" {
			query = query.Where("dataset_id = ?", datasetID)
		}
	}

	// 获取总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// UpdateStep 更新当前步骤
func (r *runRepository) UpdateStep(id string, step models.SetupStep) error {
	result := r.db.Model(&models.SetupRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"step":       step,
		"status":     models.RunStatusRunning,
		"updated_at": time.Now(),
	})
	return checkAffected(result, id)
}

// AttachTask 关联异步任务ID，只更新task_id列
func (r *runRepository) AttachTask(id string, taskID string) error {
	result := r.db.Model(&models.SetupRun{}).Where("id = ?", id).Update("task_id", taskID)
	return checkAffected(result, id)
}

// MarkFailed 标记运行失败
func (r *runRepository) MarkFailed(id string, step models.SetupStep, errorMsg string) error {
	now := time.Now()
	result := r.db.Model(&models.SetupRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"step":        step,
		"status":      models.RunStatusFailed,
		"error":       errorMsg,
		"finished_at": &now,
		"updated_at":  now,
	})
	return checkAffected(result, id)
}

// MarkCompleted 标记运行成功
func (r *runRepository) MarkCompleted(id string, datasetID, assistantID string, documentIDs []string) error {
	run := &models.SetupRun{}
	run.SetDocumentIDs(documentIDs)

	now := time.Now()
	result := r.db.Model(&models.SetupRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"step":         models.StepDone,
		"status":       models.RunStatusCompleted,
		"dataset_id":   datasetID,
		"assistant_id": assistantID,
		"document_ids": run.DocumentIDs,
		"error":        "",
		"finished_at":  &now,
		"updated_at":   now,
	})
	return checkAffected(result, id)
}

// SaveFiles 批量保存源文件记录
func (r *runRepository) SaveFiles(files []*models.SetupFile) error {
	if len(files) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, f := range files {
			if f.RunID == "" {
				return errors.New("setup file run ID cannot be empty")
			}
			if err := tx.Save(f).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFiles 获取运行的所有源文件记录
func (r *runRepository) GetFiles(runID string) ([]*models.SetupFile, error) {
	var files []*models.SetupFile
	err := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func checkAffected(result *gorm.DB, id string) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	return nil
}
