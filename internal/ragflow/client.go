// Package ragflow 封装Ragflow知识库服务的REST接口
package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/fyerfyer/ragflow-setup/internal/adapter"
)

const (
	datasetsPath = "/api/v1/datasets"
	chatsPath    = "/api/v1/chats"
)

// DatasetCreatePaths 创建数据集的候选端点，兼容不同版本的Ragflow
var DatasetCreatePaths = []string{"/api/v1/datasets", "/api/v1/dataset", "/datasets"}

// Client Ragflow客户端
// 所有请求都经过同一个适配器，重试和回退策略由适配器负责
type Client struct {
	adapter *adapter.Adapter
}

// NewClient 创建Ragflow客户端
func NewClient(a *adapter.Adapter) *Client {
	return &Client{adapter: a}
}

// Adapter 返回底层适配器
func (c *Client) Adapter() *adapter.Adapter {
	return c.adapter
}

// CreateDataset 创建数据集，依次尝试候选端点
// 返回的数据集ID可能为空，由调用方判断
func (c *Client) CreateDataset(ctx context.Context, req *CreateDatasetRequest) (*Dataset, error) {
	var dataset Dataset
	err := c.adapter.Fallback(ctx, DatasetCreatePaths, func(ctx context.Context, path string) error {
		dataset = Dataset{}
		return c.call(ctx, &adapter.Request{
			Method: http.MethodPost,
			Path:   path,
			Body:   req,
		}, &dataset)
	})
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// UploadDocuments 以multipart形式上传文件，每个文件一个file字段
func (c *Client) UploadDocuments(ctx context.Context, datasetID string, files []UploadFile) ([]Document, error) {
	if datasetID == "" {
		return nil, ErrEmptyDatasetID
	}

	parts := make([]adapter.File, 0, len(files))
	for _, f := range files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(f.Name))
		}
		parts = append(parts, adapter.File{
			Field:       "file",
			Name:        f.Name,
			ContentType: contentType,
			Content:     f.Content,
		})
	}

	var docs []Document
	err := c.adapter.Execute(ctx, func(ctx context.Context) error {
		docs = nil
		return c.call(ctx, &adapter.Request{
			Method: http.MethodPost,
			Path:   documentsPath(datasetID),
			Files:  parts,
		}, &docs)
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ParseDocuments 触发文档解析，只确认请求被接受，不等待解析完成
func (c *Client) ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	if datasetID == "" {
		return ErrEmptyDatasetID
	}
	if documentIDs == nil {
		documentIDs = []string{}
	}

	return c.adapter.Execute(ctx, func(ctx context.Context) error {
		return c.call(ctx, &adapter.Request{
			Method: http.MethodPost,
			Path:   datasetPath(datasetID) + "/chunks",
			Body:   &ParseRequest{DocumentIDs: documentIDs},
		}, nil)
	})
}

// CreateChatAssistant 创建聊天助手
func (c *Client) CreateChatAssistant(ctx context.Context, req *CreateChatAssistantRequest) (*ChatAssistant, error) {
	var assistant ChatAssistant
	err := c.adapter.Execute(ctx, func(ctx context.Context) error {
		assistant = ChatAssistant{}
		return c.call(ctx, &adapter.Request{
			Method: http.MethodPost,
			Path:   chatsPath,
			Body:   req,
		}, &assistant)
	})
	if err != nil {
		return nil, err
	}
	return &assistant, nil
}

// ListDatasets 获取数据集列表
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	err := c.adapter.Execute(ctx, func(ctx context.Context) error {
		datasets = nil
		return c.call(ctx, &adapter.Request{Method: http.MethodGet, Path: datasetsPath}, &datasets)
	})
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

// ListDocuments 获取数据集下的文档列表
func (c *Client) ListDocuments(ctx context.Context, datasetID string) (*DocumentList, error) {
	if datasetID == "" {
		return nil, ErrEmptyDatasetID
	}

	var raw json.RawMessage
	err := c.adapter.Execute(ctx, func(ctx context.Context) error {
		raw = nil
		return c.call(ctx, &adapter.Request{Method: http.MethodGet, Path: documentsPath(datasetID)}, &raw)
	})
	if err != nil {
		return nil, err
	}

	return decodeDocumentList(c.adapter.BaseURL()+documentsPath(datasetID), raw)
}

// HealthCheck 探测Ragflow服务是否可用
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.adapter.HealthCheck(ctx)
}

// call 发送请求并解析统一响应包装，业务失败返回*APIError
func (c *Client) call(ctx context.Context, req *adapter.Request, out interface{}) error {
	var env envelope
	req.Result = &env
	if _, err := c.adapter.Do(ctx, req); err != nil {
		return err
	}

	endpoint := c.adapter.BaseURL() + req.Path
	if env.failed() {
		code := 0
		if env.Code != nil {
			code = *env.Code
		}
		return &APIError{Endpoint: endpoint, Code: code, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &adapter.ProtocolError{Endpoint: endpoint, Message: "unexpected data payload", Err: err}
	}
	return nil
}

// decodeDocumentList 兼容{docs,total}和直接返回数组两种格式
func decodeDocumentList(endpoint string, raw json.RawMessage) (*DocumentList, error) {
	list := &DocumentList{Docs: []Document{}}
	if len(raw) == 0 {
		return list, nil
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &list.Docs); err != nil {
			return nil, &adapter.ProtocolError{Endpoint: endpoint, Message: "unexpected document list", Err: err}
		}
		list.Total = len(list.Docs)
		return list, nil
	}

	if err := json.Unmarshal(raw, list); err != nil {
		return nil, &adapter.ProtocolError{Endpoint: endpoint, Message: "unexpected document list", Err: err}
	}
	if list.Docs == nil {
		list.Docs = []Document{}
	}
	if list.Total == 0 {
		list.Total = len(list.Docs)
	}
	return list, nil
}

func datasetPath(datasetID string) string {
	return datasetsPath + "/" + url.PathEscape(datasetID)
}

func documentsPath(datasetID string) string {
	return datasetPath(datasetID) + "/documents"
}
