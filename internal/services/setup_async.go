package services

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/ragflow-setup/internal/adapter"
	"github.com/fyerfyer/ragflow-setup/internal/document"
	"github.com/fyerfyer/ragflow-setup/internal/models"
	"github.com/fyerfyer/ragflow-setup/pkg/storage"
	"github.com/fyerfyer/ragflow-setup/pkg/taskqueue"
)

var (
	// ErrQueueUnavailable 未配置任务队列
	ErrQueueUnavailable = errors.New("task queue is not configured")
	// ErrStorageRequired 异步执行需要文件存储，文件内容不进入队列
	ErrStorageRequired = errors.New("async setup requires file storage")
)

// WithTaskQueue 设置任务队列，设置后支持异步初始化
func WithTaskQueue(q taskqueue.Queue) SetupOption {
	return func(s *SetupService) {
		s.queue = q
	}
}

// AsyncEnabled 是否支持异步初始化
func (s *SetupService) AsyncEnabled() bool {
	return s.queue != nil && s.storage != nil
}

// AsyncSetup 异步初始化的入队结果
type AsyncSetup struct {
	RunID  string               `json:"run_id"`
	TaskID string               `json:"task_id"`
	Files  []*document.FileInfo `json:"files"`
}

// EnqueueSetup 检查并归档文件后将初始化流程加入任务队列
// 文件检查在入队前完成，非法文件直接返回错误
func (s *SetupService) EnqueueSetup(ctx context.Context, files []SourceFile) (*AsyncSetup, error) {
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}
	if s.storage == nil {
		return nil, ErrStorageRequired
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	infos, err := s.inspectFiles(files)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := s.logger.WithField("run_id", runID)

	stored := make([]taskqueue.StoredFile, 0, len(files))
	for i, f := range files {
		saved, err := s.storage.Save(ctx, runID, infos[i].Name, bytes.NewReader(f.Content))
		if err != nil {
			s.discardStored(ctx, stored)
			return nil, errors.Wrapf(err, "failed to archive %s", infos[i].Name)
		}
		stored = append(stored, taskqueue.StoredFile{
			Name:        infos[i].Name,
			StoragePath: saved.Path,
			Size:        saved.Size,
		})
	}

	// 先创建运行记录，worker可能在入队后立即开始执行
	if err := s.CreatePendingRun(runID, len(files), ""); err != nil {
		s.discardStored(ctx, stored)
		return nil, errors.Wrap(err, "failed to record setup run")
	}

	taskID, err := s.queue.Enqueue(ctx, taskqueue.TaskSetupSystem, runID, &taskqueue.SetupPayload{
		RunID: runID,
		Files: stored,
	})
	if err != nil {
		s.recordFailure(runID, models.StepArchive, err)
		s.discardStored(ctx, stored)
		return nil, errors.Wrap(err, "failed to enqueue setup task")
	}

	if s.repo != nil {
		if err := s.repo.AttachTask(runID, taskID); err != nil {
			log.WithError(err).Warn("Failed to attach task to setup run")
		}
	}

	log.WithFields(logrus.Fields{
		"task_id": taskID,
		"files":   len(files),
	}).Info("Ragflow setup enqueued")

	return &AsyncSetup{RunID: runID, TaskID: taskID, Files: infos}, nil
}

// GetTask 获取异步任务状态
func (s *SetupService) GetTask(ctx context.Context, taskID string) (*taskqueue.Task, error) {
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}
	return s.queue.GetTask(ctx, taskID)
}

func (s *SetupService) discardStored(ctx context.Context, stored []taskqueue.StoredFile) {
	for _, f := range stored {
		if err := s.storage.Delete(ctx, f.StoragePath); err != nil {
			s.logger.WithError(err).WithField("path", f.StoragePath).Warn("Failed to discard archived file")
		}
	}
}

// SetupTaskHandler 在worker中执行初始化任务
type SetupTaskHandler struct {
	service *SetupService
}

// NewSetupTaskHandler 创建初始化任务处理器
func NewSetupTaskHandler(service *SetupService) *SetupTaskHandler {
	return &SetupTaskHandler{service: service}
}

// GetTaskTypes 返回支持的任务类型
func (h *SetupTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskSetupSystem}
}

// ProcessTask 从存储读取源文件并执行初始化流程
// 只有可重试的远程错误交给队列重试，其他错误直接失败
func (h *SetupTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var payload taskqueue.SetupPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, taskqueue.Permanent(err)
	}
	if payload.RunID == "" {
		payload.RunID = task.RunID
	}

	s := h.service
	if s.storage == nil {
		return nil, taskqueue.Permanent(ErrStorageRequired)
	}

	files := make([]SourceFile, 0, len(payload.Files))
	for _, f := range payload.Files {
		content, err := storage.ReadAll(ctx, s.storage, f.StoragePath)
		if err != nil {
			err = errors.Wrapf(err, "failed to load archived file %s", f.Name)
			s.recordFailure(payload.RunID, models.StepArchive, err)
			return nil, taskqueue.Permanent(err)
		}
		files = append(files, SourceFile{
			Name:        f.Name,
			Content:     content,
			StoragePath: f.StoragePath,
		})
	}

	result, err := s.RunSetup(ctx, payload.RunID, files)
	if err != nil {
		// 任务到期或被取消后重放会重复创建数据集
		if ctx.Err() == nil && adapter.IsRetryable(err) {
			return nil, err
		}
		return nil, taskqueue.Permanent(err)
	}

	return &taskqueue.SetupResult{
		RunID:       result.RunID,
		DatasetID:   result.DatasetID,
		AssistantID: result.AssistantID,
		DocumentIDs: result.DocumentIDs,
	}, nil
}
