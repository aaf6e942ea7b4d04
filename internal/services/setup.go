package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/ragflow-setup/internal/cache"
	"github.com/fyerfyer/ragflow-setup/internal/document"
	"github.com/fyerfyer/ragflow-setup/internal/models"
	"github.com/fyerfyer/ragflow-setup/internal/ragflow"
	"github.com/fyerfyer/ragflow-setup/internal/repository"
	"github.com/fyerfyer/ragflow-setup/pkg/storage"
	"github.com/fyerfyer/ragflow-setup/pkg/taskqueue"
)

var (
	// ErrNoFiles 没有提供任何文件
	ErrNoFiles = errors.New("no files provided")
	// ErrMissingDatasetID 创建数据集成功但响应中没有ID
	ErrMissingDatasetID = fmt.Errorf("dataset created without id: %w", ragflow.ErrMissingID)
	// ErrNoDocuments 上传后没有得到任何文档ID
	ErrNoDocuments = fmt.Errorf("upload returned no document ids: %w", ragflow.ErrMissingID)
	// ErrMissingAssistantID 创建助手成功但响应中没有ID
	ErrMissingAssistantID = fmt.Errorf("assistant created without id: %w", ragflow.ErrMissingID)
)

// RagflowClient Ragflow远程操作接口
type RagflowClient interface {
	CreateDataset(ctx context.Context, req *ragflow.CreateDatasetRequest) (*ragflow.Dataset, error)
	UploadDocuments(ctx context.Context, datasetID string, files []ragflow.UploadFile) ([]ragflow.Document, error)
	ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	CreateChatAssistant(ctx context.Context, req *ragflow.CreateChatAssistantRequest) (*ragflow.ChatAssistant, error)
	ListDatasets(ctx context.Context) ([]ragflow.Dataset, error)
	ListDocuments(ctx context.Context, datasetID string) (*ragflow.DocumentList, error)
	HealthCheck(ctx context.Context) bool
}

// SourceFile 参与初始化的源文件
type SourceFile struct {
	Name        string // 文件名
	Content     []byte // 文件内容
	StoragePath string // 已归档时的存储键，为空时由服务归档
}

// SetupResult 初始化结果
type SetupResult struct {
	RunID       string               `json:"run_id"`
	DatasetID   string               `json:"dataset_id"`
	AssistantID string               `json:"assistant_id"`
	DocumentIDs []string             `json:"document_ids"`
	Files       []*document.FileInfo `json:"files"`
}

// SetupError 某一步失败
// 已创建的数据集和文档不会回滚，ID保留在错误中
type SetupError struct {
	RunID       string
	Step        models.SetupStep
	DatasetID   string
	DocumentIDs []string
	Err         error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup run %s failed at %s: %v", e.RunID, e.Step, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// SetupService 财报分析系统初始化服务
// 串联创建数据集、上传文档、解析文档、创建助手四个远程步骤
type SetupService struct {
	client          RagflowClient
	inspector       document.Inspector
	storage         storage.Storage
	repo            repository.SetupRunRepository
	queue           taskqueue.Queue
	healthCache     *cache.HealthCache
	healthTarget    string
	datasetConfig   ragflow.CreateDatasetRequest
	assistantConfig ragflow.CreateChatAssistantRequest
	logger          *logrus.Logger
}

// SetupOption 初始化服务配置选项
type SetupOption func(*SetupService)

// NewSetupService 创建初始化服务
func NewSetupService(client RagflowClient, opts ...SetupOption) *SetupService {
	srv := &SetupService{
		client:          client,
		inspector:       document.NewInspector(),
		datasetConfig:   DefaultDatasetConfig(),
		assistantConfig: DefaultAssistantConfig(),
		logger:          logrus.New(),
		healthTarget:    "ragflow",
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithSetupLogger 设置日志记录器
func WithSetupLogger(logger *logrus.Logger) SetupOption {
	return func(s *SetupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRunRepository 设置运行记录仓储，不设置时不记录
func WithRunRepository(repo repository.SetupRunRepository) SetupOption {
	return func(s *SetupService) {
		s.repo = repo
	}
}

// WithStorage 设置源文件归档存储，不设置时不归档
func WithStorage(store storage.Storage) SetupOption {
	return func(s *SetupService) {
		s.storage = store
	}
}

// WithInspector 设置文件检查器
func WithInspector(inspector document.Inspector) SetupOption {
	return func(s *SetupService) {
		if inspector != nil {
			s.inspector = inspector
		}
	}
}

// WithHealthCache 缓存健康检查结果，target用于区分不同的Ragflow实例
func WithHealthCache(hc *cache.HealthCache, target string) SetupOption {
	return func(s *SetupService) {
		s.healthCache = hc
		if target != "" {
			s.healthTarget = target
		}
	}
}

// WithDatasetConfig 覆盖默认的数据集配置
func WithDatasetConfig(cfg ragflow.CreateDatasetRequest) SetupOption {
	return func(s *SetupService) {
		s.datasetConfig = cfg
	}
}

// WithAssistantConfig 覆盖默认的助手配置，dataset_ids总是使用本次创建的数据集
func WithAssistantConfig(cfg ragflow.CreateChatAssistantRequest) SetupOption {
	return func(s *SetupService) {
		s.assistantConfig = cfg
	}
}

// DatasetConfig 返回当前数据集配置
func (s *SetupService) DatasetConfig() ragflow.CreateDatasetRequest {
	return s.datasetConfig
}

// AssistantConfig 返回当前助手配置
func (s *SetupService) AssistantConfig() ragflow.CreateChatAssistantRequest {
	return s.assistantConfig
}

// SetupSystem 执行完整的初始化流程
func (s *SetupService) SetupSystem(ctx context.Context, files []SourceFile) (*SetupResult, error) {
	return s.RunSetup(ctx, uuid.New().String(), files)
}

// RunSetup 以指定的运行ID执行初始化流程
// 异步任务在入队时已创建运行记录，这里复用该记录
func (s *SetupService) RunSetup(ctx context.Context, runID string, files []SourceFile) (*SetupResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	files = append([]SourceFile(nil), files...)

	log := s.logger.WithField("run_id", runID)
	log.WithField("files", len(files)).Info("Starting ragflow setup")
	start := time.Now()

	if err := s.startRun(runID, len(files)); err != nil {
		return nil, errors.Wrap(err, "failed to record setup run")
	}

	result := &SetupResult{RunID: runID}
	fail := func(step models.SetupStep, err error) (*SetupResult, error) {
		setupErr := &SetupError{
			RunID:       runID,
			Step:        step,
			DatasetID:   result.DatasetID,
			DocumentIDs: result.DocumentIDs,
			Err:         err,
		}
		s.recordFailure(runID, step, err)
		log.WithFields(logrus.Fields{
			"step":       step,
			"dataset_id": result.DatasetID,
			"error":      err.Error(),
		}).Error("Ragflow setup failed")
		return nil, setupErr
	}

	// 1. 检查本地文件
	s.recordStep(runID, models.StepInspect)
	infos, err := s.inspectFiles(files)
	if err != nil {
		return fail(models.StepInspect, err)
	}
	result.Files = infos

	// 2. 归档源文件
	records, err := s.archiveFiles(ctx, runID, files, infos)
	if err != nil {
		return fail(models.StepArchive, err)
	}

	// 3. 创建数据集
	s.recordStep(runID, models.StepCreateDataset)
	datasetID, err := s.createDataset(ctx)
	if err != nil {
		return fail(models.StepCreateDataset, err)
	}
	result.DatasetID = datasetID
	log.WithField("dataset_id", datasetID).Info("Dataset created")

	// 4. 上传文档
	s.recordStep(runID, models.StepUpload)
	documentIDs, err := s.uploadDocuments(ctx, datasetID, files, infos, records)
	if err != nil {
		return fail(models.StepUpload, err)
	}
	result.DocumentIDs = documentIDs
	log.WithField("documents", len(documentIDs)).Info("Documents uploaded")

	// 5. 解析文档
	s.recordStep(runID, models.StepParse)
	if err := s.client.ParseDocuments(ctx, datasetID, documentIDs); err != nil {
		return fail(models.StepParse, errors.Wrap(err, "failed to start parsing"))
	}
	log.Info("Document parsing started")

	// 6. 创建助手
	s.recordStep(runID, models.StepCreateAssistant)
	assistantID, err := s.createAssistant(ctx, datasetID)
	if err != nil {
		return fail(models.StepCreateAssistant, err)
	}
	result.AssistantID = assistantID

	if s.repo != nil {
		if err := s.repo.MarkCompleted(runID, datasetID, assistantID, documentIDs); err != nil {
			log.WithError(err).Warn("Failed to mark setup run completed")
		}
	}

	log.WithFields(logrus.Fields{
		"dataset_id":   datasetID,
		"assistant_id": assistantID,
		"documents":    len(documentIDs),
		"elapsed":      time.Since(start).String(),
	}).Info("Ragflow setup completed")

	return result, nil
}

// inspectFiles 检查所有文件，任何一个不合法都终止流程
func (s *SetupService) inspectFiles(files []SourceFile) ([]*document.FileInfo, error) {
	infos := make([]*document.FileInfo, 0, len(files))
	for _, f := range files {
		info, err := s.inspector.Inspect(f.Name, f.Content)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// archiveFiles 归档源文件并保存文件记录
func (s *SetupService) archiveFiles(ctx context.Context, runID string, files []SourceFile, infos []*document.FileInfo) ([]*models.SetupFile, error) {
	if s.storage != nil {
		s.recordStep(runID, models.StepArchive)
	}

	// 任务重试时复用同一运行已有的记录，按文件名对应
	existing := s.existingFiles(runID)

	records := make([]*models.SetupFile, len(files))
	for i := range files {
		if s.storage != nil && files[i].StoragePath == "" {
			saved, err := s.storage.Save(ctx, runID, infos[i].Name, bytes.NewReader(files[i].Content))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to archive %s", infos[i].Name)
			}
			files[i].StoragePath = saved.Path
		}

		records[i] = &models.SetupFile{
			RunID:       runID,
			FileName:    infos[i].Name,
			FileType:    string(infos[i].Type),
			FileSize:    infos[i].Size,
			PageCount:   infos[i].PageCount,
			Title:       infos[i].Title,
			StoragePath: files[i].StoragePath,
		}
		if prev := takeFile(existing, infos[i].Name); prev != nil {
			records[i].ID = prev.ID
			records[i].CreatedAt = prev.CreatedAt
		}
	}

	if s.repo != nil {
		if err := s.repo.SaveFiles(records); err != nil {
			s.logger.WithError(err).WithField("run_id", runID).Warn("Failed to save setup file records")
		}
	}
	return records, nil
}

func (s *SetupService) existingFiles(runID string) map[string][]*models.SetupFile {
	if s.repo == nil {
		return nil
	}
	files, err := s.repo.GetFiles(runID)
	if err != nil {
		s.logger.WithError(err).WithField("run_id", runID).Warn("Failed to load existing setup file records")
		return nil
	}

	byName := make(map[string][]*models.SetupFile, len(files))
	for _, f := range files {
		byName[f.FileName] = append(byName[f.FileName], f)
	}
	return byName
}

// takeFile 取出一条同名记录，同名文件按顺序各对应一条
func takeFile(byName map[string][]*models.SetupFile, name string) *models.SetupFile {
	list := byName[name]
	if len(list) == 0 {
		return nil
	}
	byName[name] = list[1:]
	return list[0]
}

func (s *SetupService) createDataset(ctx context.Context) (string, error) {
	req := s.datasetConfig
	dataset, err := s.client.CreateDataset(ctx, &req)
	if err != nil {
		return "", errors.Wrap(err, "failed to create dataset")
	}
	if dataset == nil || strings.TrimSpace(dataset.ID) == "" {
		return "", ErrMissingDatasetID
	}
	return dataset.ID, nil
}

func (s *SetupService) uploadDocuments(ctx context.Context, datasetID string, files []SourceFile, infos []*document.FileInfo, records []*models.SetupFile) ([]string, error) {
	uploads := make([]ragflow.UploadFile, len(files))
	for i := range files {
		uploads[i] = ragflow.UploadFile{
			Name:        infos[i].Name,
			ContentType: infos[i].ContentType,
			Content:     files[i].Content,
		}
	}

	docs, err := s.client.UploadDocuments(ctx, datasetID, uploads)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upload documents")
	}

	documentIDs := make([]string, 0, len(docs))
	byName := make(map[string]string, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		documentIDs = append(documentIDs, doc.ID)
		if _, ok := byName[doc.Name]; !ok {
			byName[doc.Name] = doc.ID
		}
	}
	if len(documentIDs) == 0 {
		return nil, ErrNoDocuments
	}
	if len(documentIDs) < len(files) {
		s.logger.WithFields(logrus.Fields{
			"dataset_id": datasetID,
			"files":      len(files),
			"documents":  len(documentIDs),
		}).Warn("Ragflow returned fewer documents than uploaded files")
	}

	if s.repo != nil {
		for _, r := range records {
			r.DocumentID = byName[r.FileName]
		}
		if err := s.repo.SaveFiles(records); err != nil {
			s.logger.WithError(err).Warn("Failed to update setup file records")
		}
	}

	return documentIDs, nil
}

func (s *SetupService) createAssistant(ctx context.Context, datasetID string) (string, error) {
	req := s.assistantConfig
	req.DatasetIDs = []string{datasetID}

	assistant, err := s.client.CreateChatAssistant(ctx, &req)
	if err != nil {
		return "", errors.Wrap(err, "failed to create chat assistant")
	}
	if assistant == nil || strings.TrimSpace(assistant.ID) == "" {
		return "", ErrMissingAssistantID
	}
	return assistant.ID, nil
}

// startRun 创建运行记录，记录已存在时沿用
func (s *SetupService) startRun(runID string, fileCount int) error {
	if s.repo == nil {
		return nil
	}
	if _, err := s.repo.GetByID(runID); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrRunNotFound) {
		return err
	}
	return s.repo.Create(&models.SetupRun{
		ID:        runID,
		Status:    models.RunStatusPending,
		FileCount: fileCount,
	})
}

func (s *SetupService) recordStep(runID string, step models.SetupStep) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpdateStep(runID, step); err != nil {
		s.logger.WithError(err).WithField("run_id", runID).Warn("Failed to record setup step")
	}
}

func (s *SetupService) recordFailure(runID string, step models.SetupStep, cause error) {
	if s.repo == nil {
		return
	}
	if err := s.repo.MarkFailed(runID, step, cause.Error()); err != nil {
		s.logger.WithError(err).WithField("run_id", runID).Warn("Failed to mark setup run failed")
	}
}

// HealthCheck 检查Ragflow服务是否可用
func (s *SetupService) HealthCheck(ctx context.Context) bool {
	healthy, cached := s.healthCache.Check(ctx, s.healthTarget, s.client.HealthCheck)
	s.logger.WithFields(logrus.Fields{
		"healthy": healthy,
		"cached":  cached,
	}).Debug("Ragflow health checked")
	return healthy
}

// ListDatasets 获取数据集列表
func (s *SetupService) ListDatasets(ctx context.Context) ([]ragflow.Dataset, error) {
	datasets, err := s.client.ListDatasets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list datasets")
	}
	return datasets, nil
}

// ListDocuments 获取数据集中的文档列表
func (s *SetupService) ListDocuments(ctx context.Context, datasetID string) (*ragflow.DocumentList, error) {
	if strings.TrimSpace(datasetID) == "" {
		return nil, ragflow.ErrEmptyDatasetID
	}
	docs, err := s.client.ListDocuments(ctx, datasetID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list documents of dataset %s", datasetID)
	}
	return docs, nil
}

// GetRun 获取运行记录和源文件
func (s *SetupService) GetRun(runID string) (*models.SetupRun, []*models.SetupFile, error) {
	if s.repo == nil {
		return nil, nil, models.ErrRunNotFound
	}
	run, err := s.repo.GetByID(runID)
	if err != nil {
		return nil, nil, err
	}
	files, err := s.repo.GetFiles(runID)
	if err != nil {
		return nil, nil, err
	}
	return run, files, nil
}

// ListRuns 分页列出运行记录
func (s *SetupService) ListRuns(page, pageSize int, status string) ([]*models.SetupRun, int64, error) {
	if s.repo == nil {
		return []*models.SetupRun{}, 0, nil
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var filters map[string]interface{}
	if status != "" {
		filters = map[string]interface{}{"status": status}
	}
	return s.repo.List((page-1)*pageSize, pageSize, filters)
}

// CreatePendingRun 为异步执行预先创建运行记录
func (s *SetupService) CreatePendingRun(runID string, fileCount int, taskID string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Create(&models.SetupRun{
		ID:        runID,
		Status:    models.RunStatusPending,
		FileCount: fileCount,
		Async:     true,
		TaskID:    taskID,
	})
}
