package middleware

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

// 初始化日志配置
func init() {
	// 设置输出到标准输出
	log.SetOutput(os.Stdout)
	// 设置日志格式为JSON格式
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	// 根据环境变量设置日志级别
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// LogOptions 日志输出选项
type LogOptions struct {
	Level      string // debug/info/warn/error
	File       string // 日志文件路径，为空时只写标准输出
	MaxSizeMB  int    // 单个文件大小上限
	MaxBackups int    // 保留的旧文件数
	MaxAgeDays int    // 旧文件保留天数
}

// ConfigureLogger 根据选项调整全局日志
// 配置了文件时同时写入标准输出和按大小轮转的文件
func ConfigureLogger(opts LogOptions) *logrus.Logger {
	log.SetLevel(ParseLevel(opts.Level))

	if opts.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			LocalTime:  true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotate))
	} else {
		log.SetOutput(os.Stdout)
	}

	return log
}

// ParseLevel 解析日志级别，无法识别时使用info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger 日志中间件
// 记录请求信息和响应时间
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 开始时间
		start := time.Now()

		// 记录请求路径
		path := c.Request.URL.Path

		// 处理请求前
		c.Next()

		fields := logrus.Fields{
			FieldStatus:   c.Writer.Status(),
			FieldLatency:  time.Since(start).String(),
			FieldClientIP: c.ClientIP(),
			FieldMethod:   c.Request.Method,
			FieldPath:     path,
			"user_agent":  c.Request.UserAgent(),
		}
		if traceID := GetTraceID(c); traceID != "" {
			fields[FieldTraceID] = traceID
		}

		log.WithFields(fields).Info("HTTP request")
	}
}

// RequestLogger 请求体日志中间件
// 在DEBUG模式下记录JSON请求体，multipart上传不记录
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if log.Level >= logrus.DebugLevel &&
			!strings.HasPrefix(c.ContentType(), "multipart/") &&
			c.Request.Body != nil {
			var buf bytes.Buffer
			tee := io.TeeReader(c.Request.Body, &buf)
			body, _ := io.ReadAll(tee)
			c.Request.Body = io.NopCloser(&buf)

			if len(body) > 0 {
				log.WithFields(logrus.Fields{
					FieldMethod:  c.Request.Method,
					FieldPath:    c.Request.URL.Path,
					FieldTraceID: GetTraceID(c),
					"body":       string(body),
				}).Debug("Request body")
			}
		}

		c.Next()
	}
}

// SetTraceID 将追踪ID设置到上下文和响应头中
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头中获取追踪ID
		traceID := c.GetHeader(HeaderTraceID)

		// 如果没有，则生成一个新的
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(ContextTraceID, traceID)
		c.Header(HeaderTraceID, traceID)

		c.Next()
	}
}

// GetTraceID 从上下文中读取追踪ID
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(ContextTraceID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

const (
	// HeaderTraceID 追踪ID请求头
	HeaderTraceID = "X-Trace-ID"
	// ContextTraceID 追踪ID在gin上下文中的键
	ContextTraceID = "TraceID"
)

// 常用日志字段
const (
	FieldTraceID  = "trace_id"    // 追踪ID
	FieldPath     = "path"        // 请求路径
	FieldMethod   = "method"      // 请求方法
	FieldStatus   = "status_code" // 状态码
	FieldLatency  = "latency"     // 延迟时间
	FieldClientIP = "client_ip"   // 客户端IP
	FieldError    = "error"       // 错误信息
)

// GetLogger 返回全局日志实例
func GetLogger() *logrus.Logger {
	return log
}
