package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/ragflow-setup/api/middleware"
	"github.com/fyerfyer/ragflow-setup/api/model"
	"github.com/fyerfyer/ragflow-setup/internal/services"
	"github.com/fyerfyer/ragflow-setup/pkg/taskqueue"
)

// DefaultMaxFileSize 单个上传文件的默认大小上限
const DefaultMaxFileSize int64 = 50 << 20

// SetupHandler 处理初始化相关的API请求
type SetupHandler struct {
	service     *services.SetupService // 初始化服务
	maxFileSize int64                  // 单个文件大小上限
	logger      *logrus.Logger         // 日志记录器
}

// NewSetupHandler 创建初始化处理器
func NewSetupHandler(service *services.SetupService, maxFileSize int64) *SetupHandler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &SetupHandler{
		service:     service,
		maxFileSize: maxFileSize,
		logger:      middleware.GetLogger(),
	}
}

// Setup 上传文件并执行初始化流程
// POST /api/setup
func (h *SetupHandler) Setup(c *gin.Context) {
	var req model.SetupRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid setup request", err.Error()))
		return
	}
	// async也可以通过查询参数指定
	if v, ok := c.GetQuery("async"); ok {
		async, err := strconv.ParseBool(v)
		if err != nil {
			middleware.HandleError(c, middleware.NewValidationError("Invalid async flag", err.Error()))
			return
		}
		req.Async = async
	}
	if len(req.Files) == 0 {
		middleware.HandleError(c, services.ErrNoFiles)
		return
	}

	files, err := h.readFiles(req)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"files":                 len(files),
		"async":                 req.Async,
		middleware.FieldTraceID: middleware.GetTraceID(c),
	}).Info("Received setup request")

	if req.Async {
		queued, err := h.service.EnqueueSetup(c.Request.Context(), files)
		if err != nil {
			middleware.HandleError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.SetupAcceptedResponse{
			RunID:  queued.RunID,
			TaskID: queued.TaskID,
			Status: string(taskqueue.StatusPending),
			Files:  queued.Files,
		}))
		return
	}

	result, err := h.service.SetupSystem(c.Request.Context(), files)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewSetupResponse(result)))
}

// readFiles 读取上传的文件内容
func (h *SetupHandler) readFiles(req model.SetupRequest) ([]services.SourceFile, error) {
	files := make([]services.SourceFile, 0, len(req.Files))
	for _, fh := range req.Files {
		if fh.Size > h.maxFileSize {
			return nil, middleware.NewValidationError(
				"File too large",
				fmt.Sprintf("file=%s", fh.Filename),
				fmt.Sprintf("limit=%d", h.maxFileSize),
			)
		}

		f, err := fh.Open()
		if err != nil {
			return nil, middleware.NewInternalError("Failed to open uploaded file", err.Error())
		}
		content, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
		f.Close()
		if err != nil {
			return nil, middleware.NewInternalError("Failed to read uploaded file", err.Error())
		}
		if int64(len(content)) > h.maxFileSize {
			return nil, middleware.NewValidationError("File too large", fmt.Sprintf("file=%s", fh.Filename))
		}

		files = append(files, services.SourceFile{Name: fh.Filename, Content: content})
	}
	return files, nil
}

// ListRuns 分页列出初始化运行记录
// GET /api/setup/runs
func (h *SetupHandler) ListRuns(c *gin.Context) {
	var req model.SetupRunListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid query parameters", err.Error()))
		return
	}

	page, pageSize := req.GetPage(), req.GetPageSize()
	runs, total, err := h.service.ListRuns(page, pageSize, req.Status)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.SetupRunListResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Runs:     make([]model.SetupRunInfo, 0, len(runs)),
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, model.NewSetupRunInfo(run, nil))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetRun 获取单次运行记录和源文件
// GET /api/setup/runs/:id
func (h *SetupHandler) GetRun(c *gin.Context) {
	var req model.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid run id", err.Error()))
		return
	}

	run, files, err := h.service.GetRun(req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewSetupRunInfo(run, files)))
}
