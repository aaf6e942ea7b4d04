package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/ragflow-setup/api"
	"github.com/fyerfyer/ragflow-setup/api/handler"
	"github.com/fyerfyer/ragflow-setup/api/middleware"
	appconfig "github.com/fyerfyer/ragflow-setup/config"
	"github.com/fyerfyer/ragflow-setup/internal/adapter"
	"github.com/fyerfyer/ragflow-setup/internal/cache"
	"github.com/fyerfyer/ragflow-setup/internal/database"
	"github.com/fyerfyer/ragflow-setup/internal/ragflow"
	"github.com/fyerfyer/ragflow-setup/internal/repository"
	"github.com/fyerfyer/ragflow-setup/internal/services"
	"github.com/fyerfyer/ragflow-setup/pkg/storage"
	"github.com/fyerfyer/ragflow-setup/pkg/taskqueue"
)

// 命令行参数，非零值覆盖配置文件
type flags struct {
	ConfigFile string // 配置文件路径
	Port       int    // 服务端口
	Mode       string // 运行模式 (debug/release)
	LogLevel   string // 日志级别
	Queue      bool   // 启用任务队列
}

func main() {
	// 解析命令行参数
	f := parseFlags()

	cfg, err := appconfig.Load(f.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, f)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化日志
	logger := setupLogger(cfg.Log)
	logger.Info("Starting Ragflow setup service...")
	for _, w := range cfg.Ragflow.Warnings() {
		logger.Warn(w)
	}

	// 初始化数据库
	if err := setupDatabase(cfg.Database, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建Ragflow客户端
	client, err := setupRagflow(cfg.Ragflow, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize ragflow client: %v", err)
	}

	opts := []services.SetupOption{
		services.WithSetupLogger(logger),
		services.WithRunRepository(repository.NewSetupRunRepository()),
		services.WithStorage(fileStorage),
	}
	opts = append(opts, setupConfigOptions(cfg.Setup)...)

	// 健康检查结果缓存
	if cfg.Cache.Enable {
		cacheService, err := setupCache(cfg.Cache)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		hc := cache.NewHealthCache(cacheService, time.Duration(cfg.Cache.HealthTTL)*time.Second)
		opts = append(opts, services.WithHealthCache(hc, cfg.Ragflow.BaseURL()))
	}

	// 初始化任务队列（如果启用）
	var queue *taskqueue.RedisQueue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		opts = append(opts, services.WithTaskQueue(queue))
		logger.Info("Task queue initialized successfully")
	}

	setupService := services.NewSetupService(client, opts...)

	// 启动任务处理器
	if queue != nil {
		worker := taskqueue.NewRedisWorker(queue, nil)
		taskqueue.RegisterHandlers(worker, services.NewSetupTaskHandler(setupService))
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	// 设置路由
	r := api.SetupRouter(api.Handlers{
		Setup:   handler.NewSetupHandler(setupService, int64(cfg.Server.MaxUploadMB)<<20),
		Ragflow: handler.NewRagflowHandler(setupService, cfg.Ragflow.BaseURL()),
		Task:    handler.NewTaskHandler(setupService),
	})

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 优雅关闭
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"ragflow": cfg.Ragflow.BaseURL(),
			"async":   setupService.AsyncEnabled(),
		}).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.ConfigFile, "config", "", "Path to config file")
	flag.IntVar(&f.Port, "port", 0, "Server port (overrides config)")
	flag.StringVar(&f.Mode, "mode", "", "Run mode (debug/release)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.BoolVar(&f.Queue, "queue", false, "Enable async setup task queue")
	flag.Parse()
	return f
}

// applyFlags 用命令行参数覆盖配置
func applyFlags(cfg *appconfig.Config, f flags) {
	if f.Port > 0 {
		cfg.Server.Port = f.Port
	}
	if f.Mode != "" {
		cfg.Server.Mode = f.Mode
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.Queue {
		cfg.Queue.Enable = true
	}
}

// setupLogger 设置日志系统
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	return middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Level,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}

// setupDatabase 设置数据库
func setupDatabase(cfg appconfig.DatabaseConfig, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Type
	if cfg.DSN != "" {
		dbConfig.DSN = cfg.DSN
	}
	return database.Setup(dbConfig, logger)
}

// setupStorage 设置文件存储服务
func setupStorage(cfg appconfig.StorageConfig) (storage.Storage, error) {
	if cfg.Type == "local" {
		if err := os.MkdirAll(filepath.Clean(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %v", err)
		}
	}
	return storage.New(storage.Config{
		Type:  cfg.Type,
		Local: storage.LocalConfig{Path: cfg.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		},
	})
}

// setupRagflow 创建带重试和回退的Ragflow客户端
func setupRagflow(cfg appconfig.RagflowConfig, logger *logrus.Logger) (*ragflow.Client, error) {
	a, err := adapter.New(cfg.AdapterConfig(),
		adapter.WithLogger(logger),
		adapter.WithObserver(adapter.NewLogObserver(logger)),
	)
	if err != nil {
		return nil, err
	}
	return ragflow.NewClient(a), nil
}

// setupConfigOptions 将配置中的数据集和助手设置转换为服务选项
func setupConfigOptions(cfg appconfig.SetupConfig) []services.SetupOption {
	dataset, assistant := services.Overrides{
		DatasetName:    cfg.DatasetName,
		EmbeddingModel: cfg.EmbeddingModel,
		ChunkMethod:    cfg.ChunkMethod,
		AssistantName:  cfg.AssistantName,
		LLMModel:       cfg.LLMModel,
	}.Apply()
	return []services.SetupOption{
		services.WithDatasetConfig(dataset),
		services.WithAssistantConfig(assistant),
	}
}

// setupCache 设置缓存服务
func setupCache(cfg appconfig.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Type
	if cfg.TTL > 0 {
		cacheConfig.DefaultTTL = time.Duration(cfg.TTL) * time.Second
	}
	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}
	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg appconfig.QueueConfig, logger *logrus.Logger) (*taskqueue.RedisQueue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.RedisAddr
	queueConfig.RedisPassword = cfg.RedisPassword
	queueConfig.RedisDB = cfg.RedisDB
	queueConfig.RetryLimit = cfg.RetryLimit
	if cfg.Concurrency > 0 {
		queueConfig.Concurrency = cfg.Concurrency
	}
	if cfg.RetryDelay > 0 {
		queueConfig.RetryDelay = time.Duration(cfg.RetryDelay) * time.Second
	}

	logger.WithFields(logrus.Fields{
		"redis_addr":  queueConfig.RedisAddr,
		"concurrency": queueConfig.Concurrency,
		"retry_limit": queueConfig.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewRedisQueueWithLogger(queueConfig, logger)
}
