package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/ragflow-setup/api/model"
	"github.com/fyerfyer/ragflow-setup/internal/adapter"
	"github.com/fyerfyer/ragflow-setup/internal/document"
	"github.com/fyerfyer/ragflow-setup/internal/models"
	"github.com/fyerfyer/ragflow-setup/internal/ragflow"
	"github.com/fyerfyer/ragflow-setup/internal/services"
	"github.com/fyerfyer/ragflow-setup/pkg/taskqueue"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation  = "VALIDATION_ERROR"  // 输入验证错误
	ErrorTypeNotFound    = "NOT_FOUND_ERROR"   // 资源不存在错误
	ErrorTypeInternal    = "INTERNAL_ERROR"    // 内部服务器错误
	ErrorTypeUpstream    = "UPSTREAM_ERROR"    // Ragflow调用失败
	ErrorTypeUnavailable = "UNAVAILABLE_ERROR" // 功能未启用
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // 错误代码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// NewUpstreamError 创建远程服务错误
func NewUpstreamError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadGateway,
	}
}

// NewUnavailableError 创建功能未启用错误
func NewUnavailableError(message string) AppError {
	return AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Code:    http.StatusServiceUnavailable,
	}
}

// classify 将任意错误转换为AppError
// 初始化流程的错误附带失败的步骤和已创建的数据集ID
func classify(err error) AppError {
	appErr := classifyCause(err)

	var setupErr *services.SetupError
	if errors.As(err, &setupErr) {
		details := []string{
			fmt.Sprintf("run_id=%s", setupErr.RunID),
			fmt.Sprintf("step=%s", setupErr.Step),
		}
		if setupErr.DatasetID != "" {
			details = append(details, fmt.Sprintf("dataset_id=%s", setupErr.DatasetID))
		}
		if appErr.Details != "" && appErr.Type != ErrorTypeInternal {
			details = append(details, appErr.Details)
		}
		appErr.Details = strings.Join(details, "; ")
	}
	return appErr
}

// classifyCause 根据错误链中的具体错误确定类型
// Ragflow相关的失败统一映射为502，并带上远程状态码和端点
func classifyCause(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var appErrPtr *AppError
	if errors.As(err, &appErrPtr) {
		return *appErrPtr
	}

	var inspectErr *document.InspectError
	if errors.As(err, &inspectErr) {
		return NewValidationError(err.Error(), fmt.Sprintf("file=%s", inspectErr.Name))
	}
	switch {
	case errors.Is(err, services.ErrNoFiles), errors.Is(err, ragflow.ErrEmptyDatasetID):
		return NewValidationError(err.Error())
	case errors.Is(err, models.ErrRunNotFound), errors.Is(err, taskqueue.ErrTaskNotFound):
		return NewNotFoundError(err.Error())
	case errors.Is(err, services.ErrQueueUnavailable), errors.Is(err, services.ErrStorageRequired):
		return NewUnavailableError(err.Error())
	}

	var httpErr *adapter.HTTPError
	if errors.As(err, &httpErr) {
		return NewUpstreamError(err.Error(),
			fmt.Sprintf("status=%d", httpErr.StatusCode),
			fmt.Sprintf("endpoint=%s", httpErr.Endpoint))
	}
	var apiErr *ragflow.APIError
	if errors.As(err, &apiErr) {
		return NewUpstreamError(err.Error(),
			fmt.Sprintf("code=%d", apiErr.Code),
			fmt.Sprintf("endpoint=%s", apiErr.Endpoint))
	}
	var transportErr *adapter.TransportError
	if errors.As(err, &transportErr) {
		return NewUpstreamError(err.Error(), fmt.Sprintf("endpoint=%s", transportErr.Endpoint))
	}
	var protoErr *adapter.ProtocolError
	if errors.As(err, &protoErr) {
		return NewUpstreamError(err.Error(), fmt.Sprintf("endpoint=%s", protoErr.Endpoint))
	}
	if errors.Is(err, ragflow.ErrMissingID) {
		return NewUpstreamError(err.Error())
	}

	return NewInternalError("Internal server error", err.Error())
}

// ErrorHandler 统一错误处理中间件
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 捕获 panic
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					FieldError:   err,
					"stack":      string(debug.Stack()),
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: GetTraceID(c),
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)

				// 在开发环境中可以返回详细错误
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}
				errorResponse.TraceID = GetTraceID(c)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		// 处理请求
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// 取最后一个错误进行处理
		err := c.Errors.Last().Err
		traceID := GetTraceID(c)
		appErr := classify(err)

		entry := log.WithFields(logrus.Fields{
			"error_type": appErr.Type,
			FieldTraceID: traceID,
			FieldPath:    c.Request.URL.Path,
		})
		if appErr.Details != "" {
			entry = entry.WithField("details", appErr.Details)
		}
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
		errResp.TraceID = traceID
		if appErr.Details != "" && (appErr.Type != ErrorTypeInternal || gin.Mode() == gin.DebugMode) {
			errResp.Data = gin.H{"details": appErr.Details}
		}

		c.AbortWithStatusJSON(appErr.Code, errResp)
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	// 添加错误到上下文中
	_ = c.Error(err)
}
