package model

import (
	"time"

	"github.com/fyerfyer/ragflow-setup/internal/document"
	"github.com/fyerfyer/ragflow-setup/internal/models"
	"github.com/fyerfyer/ragflow-setup/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// StatusResponse 管理接口的状态响应
type StatusResponse struct {
	Status string `json:"status"`
}

// ItemsResponse 管理接口的列表响应
type ItemsResponse struct {
	Items []interface{} `json:"items"`
}

// RagflowHealthResponse Ragflow健康检查响应
type RagflowHealthResponse struct {
	Healthy bool   `json:"healthy"`  // 是否可用
	BaseURL string `json:"base_url"` // Ragflow地址
}

// SetupResponse 同步初始化响应
type SetupResponse struct {
	RunID       string               `json:"run_id"`       // 运行ID
	DatasetID   string               `json:"dataset_id"`   // 数据集ID
	AssistantID string               `json:"assistant_id"` // 助手ID
	DocumentIDs []string             `json:"document_ids"` // 文档ID列表
	Files       []*document.FileInfo `json:"files"`        // 文件检查结果
}

// NewSetupResponse 从初始化结果创建响应
func NewSetupResponse(result *services.SetupResult) *SetupResponse {
	return &SetupResponse{
		RunID:       result.RunID,
		DatasetID:   result.DatasetID,
		AssistantID: result.AssistantID,
		DocumentIDs: result.DocumentIDs,
		Files:       result.Files,
	}
}

// SetupAcceptedResponse 异步初始化响应
type SetupAcceptedResponse struct {
	RunID  string               `json:"run_id"`  // 运行ID
	TaskID string               `json:"task_id"` // 任务ID
	Status string               `json:"status"`  // 任务状态
	Files  []*document.FileInfo `json:"files"`   // 文件检查结果
}

// SetupFileInfo 运行中的源文件
type SetupFileInfo struct {
	FileName    string `json:"filename"`               // 文件名
	FileType    string `json:"file_type"`              // 文件类型
	FileSize    int64  `json:"file_size"`              // 文件大小
	PageCount   int    `json:"page_count,omitempty"`   // PDF页数
	Title       string `json:"title,omitempty"`        // 标题
	StoragePath string `json:"storage_path,omitempty"` // 存储键
	DocumentID  string `json:"document_id,omitempty"`  // Ragflow文档ID
}

// SetupRunInfo 运行记录信息
type SetupRunInfo struct {
	ID          string          `json:"id"`                    // 运行ID
	Status      string          `json:"status"`                // 运行状态
	Step        string          `json:"step"`                  // 当前或失败时的步骤
	DatasetID   string          `json:"dataset_id"`            // 数据集ID
	AssistantID string          `json:"assistant_id"`          // 助手ID
	DocumentIDs []string        `json:"document_ids"`          // 文档ID列表
	FileCount   int             `json:"file_count"`            // 文件数量
	Async       bool            `json:"async"`                 // 是否异步执行
	TaskID      string          `json:"task_id,omitempty"`     // 任务ID
	Error       string          `json:"error,omitempty"`       // 错误信息
	CreatedAt   time.Time       `json:"created_at"`            // 创建时间
	FinishedAt  *time.Time      `json:"finished_at,omitempty"` // 结束时间
	Files       []SetupFileInfo `json:"files,omitempty"`       // 源文件
}

// NewSetupRunInfo 将运行记录转换为响应结构
func NewSetupRunInfo(run *models.SetupRun, files []*models.SetupFile) SetupRunInfo {
	info := SetupRunInfo{
		ID:          run.ID,
		Status:      string(run.Status),
		Step:        string(run.Step),
		DatasetID:   run.DatasetID,
		AssistantID: run.AssistantID,
		DocumentIDs: run.GetDocumentIDs(),
		FileCount:   run.FileCount,
		Async:       run.Async,
		TaskID:      run.TaskID,
		Error:       run.Error,
		CreatedAt:   run.CreatedAt,
		FinishedAt:  run.FinishedAt,
	}
	for _, f := range files {
		info.Files = append(info.Files, SetupFileInfo{
			FileName:    f.FileName,
			FileType:    f.FileType,
			FileSize:    f.FileSize,
			PageCount:   f.PageCount,
			Title:       f.Title,
			StoragePath: f.StoragePath,
			DocumentID:  f.DocumentID,
		})
	}
	return info
}

// SetupRunListResponse 运行记录列表响应
type SetupRunListResponse struct {
	Total    int64          `json:"total"`     // 总数量
	Page     int            `json:"page"`      // 当前页码
	PageSize int            `json:"page_size"` // 每页大小
	Runs     []SetupRunInfo `json:"runs"`      // 运行记录
}
