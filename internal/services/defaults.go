package services

import "github.com/fyerfyer/ragflow-setup/internal/ragflow"

const (
	// DefaultDatasetName 默认财报数据集名称
	DefaultDatasetName = "financial-reports-2024"
	// DefaultEmbeddingModel 默认嵌入模型
	DefaultEmbeddingModel = "maidalun1020/bce-embedding-base_v1@Youdao"
	// DefaultChunkMethod 财报按论文格式分块
	DefaultChunkMethod = "paper"
	// DefaultAssistantName 默认助手名称
	DefaultAssistantName = "财报分析专家"
	// DefaultLLMModel 默认助手模型
	DefaultLLMModel = "deepseek-chat@Deepseek"
)

const financialAnalystPrompt = `你是一位专业的财务分析师，专门负责解读和分析企业财报。

请基于提供的财报信息，帮助用户：
1. 分析财务报表的关键指标
2. 解读经营状况和趋势
3. 识别潜在风险和机会
4. 提供投资建议和决策支持

请确保回答准确、专业，并基于财报数据提供具体分析。`

const emptyResponseText = "抱歉，我在财报中没有找到相关信息，请检查查询内容或提供更多上下文。"

// DefaultDatasetConfig 返回财报数据集的默认配置
func DefaultDatasetConfig() ragflow.CreateDatasetRequest {
	return ragflow.CreateDatasetRequest{
		Name:           DefaultDatasetName,
		Description:    "2024年度企业财报数据集，包含财务报表、经营分析、风险提示等关键信息",
		EmbeddingModel: DefaultEmbeddingModel,
		Permission:     "me",
		ChunkMethod:    DefaultChunkMethod,
		ParserConfig: &ragflow.ParserConfig{
			Raptor: &ragflow.RaptorConfig{UseRaptor: true},
		},
	}
}

// DefaultAssistantConfig 返回财报分析助手的默认配置
func DefaultAssistantConfig() ragflow.CreateChatAssistantRequest {
	return ragflow.CreateChatAssistantRequest{
		Name:        DefaultAssistantName,
		Description: "专业的财报分析助手，能够解读财务报表、分析经营状况、识别风险点",
		LLM: &ragflow.LLMConfig{
			ModelName:   DefaultLLMModel,
			Temperature: 0.3,
			TopP:        0.9,
		},
		Prompt: &ragflow.PromptConfig{
			Prompt:              financialAnalystPrompt,
			SimilarityThreshold: 0.7,
			TopN:                5,
			ShowQuote:           true,
			EmptyResponse:       emptyResponseText,
		},
	}
}

// Overrides 可由配置覆盖的默认值，空字段保持默认
type Overrides struct {
	DatasetName    string
	EmbeddingModel string
	ChunkMethod    string
	AssistantName  string
	LLMModel       string
}

// Apply 返回应用覆盖后的数据集和助手配置
func (o Overrides) Apply() (ragflow.CreateDatasetRequest, ragflow.CreateChatAssistantRequest) {
	dataset := DefaultDatasetConfig()
	assistant := DefaultAssistantConfig()

	if o.DatasetName != "" {
		dataset.Name = o.DatasetName
	}
	if o.EmbeddingModel != "" {
		dataset.EmbeddingModel = o.EmbeddingModel
	}
	if o.ChunkMethod != "" {
		dataset.ChunkMethod = o.ChunkMethod
	}
	if o.AssistantName != "" {
		assistant.Name = o.AssistantName
	}
	if o.LLMModel != "" {
		assistant.LLM.ModelName = o.LLMModel
	}
	return dataset, assistant
}
