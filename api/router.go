package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/ragflow-setup/api/handler"
	"github.com/fyerfyer/ragflow-setup/api/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Setup   *handler.SetupHandler
	Ragflow *handler.RagflowHandler
	Task    *handler.TaskHandler
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(h Handlers) *gin.Engine {
	router := gin.New()

	// 应用全局中间件，追踪ID需要最先设置
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(Cors())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestLogger())
	}

	api := router.Group("/api")
	{
		// 健康检查API
		api.GET("/health", handler.Health)

		// 管理API
		admin := api.Group("/admin")
		{
			admin.GET("/health", handler.Health)
			admin.GET("/models", handler.Models)
		}

		// 初始化API
		setupGroup := api.Group("/setup")
		{
			// 执行初始化 - POST /api/setup
			setupGroup.POST("", h.Setup.Setup)

			// 运行记录列表 - GET /api/setup/runs
			setupGroup.GET("/runs", h.Setup.ListRuns)

			// 运行记录详情 - GET /api/setup/runs/:id
			setupGroup.GET("/runs/:id", h.Setup.GetRun)
		}

		// 异步任务API - GET /api/tasks/:id
		api.GET("/tasks/:id", h.Task.GetTask)

		// Ragflow代理API
		api.GET("/ragflow/health", h.Ragflow.Health)
		api.GET("/datasets", h.Ragflow.ListDatasets)
		api.GET("/datasets/:id/documents", h.Ragflow.ListDocuments)
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
