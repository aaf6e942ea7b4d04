package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/ragflow-setup/api/middleware"
	"github.com/fyerfyer/ragflow-setup/api/model"
	"github.com/fyerfyer/ragflow-setup/internal/services"
	"github.com/fyerfyer/ragflow-setup/pkg/taskqueue"
)

// TaskHandler 处理异步任务查询
type TaskHandler struct {
	service *services.SetupService
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(service *services.SetupService) *TaskHandler {
	return &TaskHandler{service: service}
}

// GetTask 获取任务状态和结果
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	var req model.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid task id", err.Error()))
		return
	}

	task, err := h.service.GetTask(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(taskqueue.NewTaskInfo(task)))
}
