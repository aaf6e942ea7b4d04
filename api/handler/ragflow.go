package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/ragflow-setup/api/middleware"
	"github.com/fyerfyer/ragflow-setup/api/model"
	"github.com/fyerfyer/ragflow-setup/internal/services"
)

// RagflowHandler 代理Ragflow的健康检查和查询接口
type RagflowHandler struct {
	service *services.SetupService
	baseURL string
}

// NewRagflowHandler 创建Ragflow处理器
func NewRagflowHandler(service *services.SetupService, baseURL string) *RagflowHandler {
	return &RagflowHandler{service: service, baseURL: baseURL}
}

// Health 检查Ragflow是否可用，不可用时返回503
// GET /api/ragflow/health
func (h *RagflowHandler) Health(c *gin.Context) {
	healthy := h.service.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, model.NewSuccessResponse(model.RagflowHealthResponse{
		Healthy: healthy,
		BaseURL: h.baseURL,
	}))
}

// ListDatasets 列出Ragflow中的数据集
// GET /api/datasets
func (h *RagflowHandler) ListDatasets(c *gin.Context) {
	datasets, err := h.service.ListDatasets(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(datasets))
}

// ListDocuments 列出数据集中的文档
// GET /api/datasets/:id/documents
func (h *RagflowHandler) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(docs))
}
