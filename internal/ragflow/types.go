package ragflow

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingID 远程响应中缺少资源ID
	ErrMissingID = errors.New("ragflow: response is missing resource id")
	// ErrEmptyDatasetID 调用方未提供数据集ID
	ErrEmptyDatasetID = errors.New("ragflow: dataset id is required")
)

// RaptorConfig RAPTOR分层摘要配置
type RaptorConfig struct {
	UseRaptor bool `json:"use_raptor"`
}

// GraphragConfig 知识图谱配置
type GraphragConfig struct {
	UseGraphrag bool `json:"use_graphrag"`
}

// ParserConfig 文档解析配置，不同chunk_method只使用其中一部分字段
type ParserConfig struct {
	AutoKeywords    int             `json:"auto_keywords,omitempty"`
	AutoQuestions   int             `json:"auto_questions,omitempty"`
	ChunkTokenNum   int             `json:"chunk_token_num,omitempty"`
	Delimiter       string          `json:"delimiter,omitempty"`
	LayoutRecognize string          `json:"layout_recognize,omitempty"`
	TaskPageSize    int             `json:"task_page_size,omitempty"`
	Raptor          *RaptorConfig   `json:"raptor,omitempty"`
	Graphrag        *GraphragConfig `json:"graphrag,omitempty"`
}

// CreateDatasetRequest 创建数据集请求
type CreateDatasetRequest struct {
	Name           string        `json:"name"`
	Avatar         string        `json:"avatar,omitempty"`
	Description    string        `json:"description,omitempty"`
	EmbeddingModel string        `json:"embedding_model,omitempty"`
	Permission     string        `json:"permission,omitempty"`   // me | team
	ChunkMethod    string        `json:"chunk_method,omitempty"` // naive, paper, book, ...
	ParserConfig   *ParserConfig `json:"parser_config,omitempty"`
}

// Dataset 数据集
type Dataset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Permission     string `json:"permission,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ChunkMethod    string `json:"chunk_method,omitempty"`
	Status         string `json:"status,omitempty"`
	DocumentCount  int    `json:"document_count"`
	ChunkCount     int    `json:"chunk_count"`
	TokenNum       int    `json:"token_num"`
	CreateTime     int64  `json:"create_time,omitempty"`
	UpdateTime     int64  `json:"update_time,omitempty"`
}

// Document 数据集中的文档
type Document struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DatasetID   string  `json:"dataset_id,omitempty"`
	Location    string  `json:"location,omitempty"`
	Size        int64   `json:"size"`
	Type        string  `json:"type,omitempty"`
	ChunkMethod string  `json:"chunk_method,omitempty"`
	Run         string  `json:"run,omitempty"`
	Progress    float64 `json:"progress,omitempty"`
	ChunkCount  int     `json:"chunk_count"`
	TokenCount  int     `json:"token_count"`
}

// DocumentList 文档列表
type DocumentList struct {
	Docs  []Document `json:"docs"`
	Total int        `json:"total"`
}

// UploadFile 待上传的文件
type UploadFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// ParseRequest 开始解析文档请求
type ParseRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// LLMConfig 助手使用的大模型配置
type LLMConfig struct {
	ModelName        string  `json:"model_name,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"top_p,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
}

// PromptVariable 提示词变量
type PromptVariable struct {
	Key      string `json:"key"`
	Optional bool   `json:"optional"`
}

// PromptConfig 助手检索和提示词配置
type PromptConfig struct {
	SimilarityThreshold      float64          `json:"similarity_threshold,omitempty"`
	KeywordsSimilarityWeight float64          `json:"keywords_similarity_weight,omitempty"`
	TopN                     int              `json:"top_n,omitempty"`
	TopK                     int              `json:"top_k,omitempty"`
	Variables                []PromptVariable `json:"variables,omitempty"`
	RerankModel              string           `json:"rerank_model,omitempty"`
	EmptyResponse            string           `json:"empty_response,omitempty"`
	Opener                   string           `json:"opener,omitempty"`
	ShowQuote                bool             `json:"show_quote"`
	Prompt                   string           `json:"prompt,omitempty"`
}

// CreateChatAssistantRequest 创建聊天助手请求
type CreateChatAssistantRequest struct {
	Name        string        `json:"name"`
	Avatar      string        `json:"avatar,omitempty"`
	Description string        `json:"description,omitempty"`
	DatasetIDs  []string      `json:"dataset_ids,omitempty"`
	LLM         *LLMConfig    `json:"llm,omitempty"`
	Prompt      *PromptConfig `json:"prompt,omitempty"`
}

// ChatAssistant 聊天助手
type ChatAssistant struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	DatasetIDs  []string `json:"dataset_ids,omitempty"`
}

// envelope Ragflow统一响应包装
// code和success都是可选字段，不同版本的服务端只返回其中之一
type envelope struct {
	Code    *int            `json:"code,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// failed 判断是否为业务失败
func (e *envelope) failed() bool {
	if e.Success != nil && !*e.Success {
		return true
	}
	return e.Code != nil && *e.Code != 0
}

// APIError Ragflow以HTTP 200返回的业务错误，不可重试
type APIError struct {
	Endpoint string `json:"endpoint"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragflow %s: code %d: %s", e.Endpoint, e.Code, e.Message)
}
