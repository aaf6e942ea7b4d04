package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fyerfyer/ragflow-setup/internal/adapter"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Ragflow  RagflowConfig  `mapstructure:"ragflow"`
	Setup    SetupConfig    `mapstructure:"setup"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string `mapstructure:"host"`                                     // 服务器主机
	Port         int    `mapstructure:"port" validate:"min=1,max=65535"`          // 服务器端口
	Mode         string `mapstructure:"mode" validate:"oneof=debug release test"` // gin运行模式
	ReadTimeout  int    `mapstructure:"read_timeout"`                             // 读取超时（秒）
	WriteTimeout int    `mapstructure:"write_timeout"`                            // 写入超时（秒），同步setup可能耗时较长
	MaxUploadMB  int    `mapstructure:"max_upload_mb" validate:"min=1"`           // 单次上传大小上限
}

// RagflowConfig Ragflow服务连接配置
type RagflowConfig struct {
	Host       string `mapstructure:"host" validate:"required"`           // 主机
	Port       int    `mapstructure:"port" validate:"min=1,max=65535"`    // API端口
	APIKey     string `mapstructure:"api_key"`                            // API密钥
	Timeout    int    `mapstructure:"timeout" validate:"min=1"`           // 单次请求超时（毫秒）
	Retries    int    `mapstructure:"retries" validate:"min=0"`           // 最大重试次数
	RetryDelay int    `mapstructure:"retry_delay" validate:"min=1"`       // 退避基数（毫秒）
	Scheme     string `mapstructure:"scheme" validate:"oneof=http https"` // 协议
}

// SetupConfig 初始化流程中创建的数据集和助手配置
type SetupConfig struct {
	DatasetName    string `mapstructure:"dataset_name"`    // 数据集名称
	EmbeddingModel string `mapstructure:"embedding_model"` // 嵌入模型
	ChunkMethod    string `mapstructure:"chunk_method"`    // 分块方式
	AssistantName  string `mapstructure:"assistant_name"`  // 助手名称
	LLMModel       string `mapstructure:"llm_model"`       // 助手使用的模型
	DataDir        string `mapstructure:"data_dir"`        // 命令行工具默认读取的目录
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"` // 日志级别
	File       string `mapstructure:"file"`                                         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`                                  // 单个文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`                                  // 保留的旧文件数
	MaxAgeDays int    `mapstructure:"max_age_days"`                                 // 旧文件保留天数
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable    bool   `mapstructure:"enable"`                             // 是否启用缓存
	Type      string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型：memory 或 redis
	Address   string `mapstructure:"address"`                            // Redis地址
	Password  string `mapstructure:"password"`                           // Redis密码
	DB        int    `mapstructure:"db"`                                 // Redis数据库
	TTL       int    `mapstructure:"ttl"`                                // 缓存TTL（秒）
	HealthTTL int    `mapstructure:"health_ttl"`                         // 健康检查结果缓存时间（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用任务队列
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    int    `mapstructure:"retry_delay"`    // 重试延迟(秒)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"oneof=sqlite"` // 数据库类型
	DSN  string `mapstructure:"dsn"`                          // 数据源名称
}

// BaseURL 返回Ragflow服务的基础URL
func (r RagflowConfig) BaseURL() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, r.Host, r.Port)
}

// Validate 检查连接配置，缺少API密钥不算错误
func (r RagflowConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return errors.New("ragflow host is not set (RAGFLOW_HOST)")
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("ragflow port %d is invalid (RAGFLOW_PORT)", r.Port)
	}
	return nil
}

// Warnings 返回不影响启动但可能限制功能的配置问题
func (r RagflowConfig) Warnings() []string {
	var warnings []string
	if r.APIKey == "" {
		warnings = append(warnings, "RAGFLOW_API_KEY is not set, some features may be limited")
	}
	return warnings
}

// AdapterConfig 转换为HTTP适配器配置
func (r RagflowConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		BaseURL:    r.BaseURL(),
		APIKey:     r.APIKey,
		Timeout:    time.Duration(r.Timeout) * time.Millisecond,
		MaxRetries: r.Retries,
		RetryDelay: time.Duration(r.RetryDelay) * time.Millisecond,
	}
}

// Load 从文件和环境变量加载配置
// 配置文件可选，环境变量优先级最高；当前目录下的.env会先被加载
func Load(configPath string) (*Config, error) {
	var config Config

	// .env不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Failed to load .env file: %v", err)
	}

	// 初始化viper
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			} else {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			log.Printf("Using config file: %s", v.ConfigFileUsed())
		}
	}

	// 支持环境变量覆盖，ragflow.api_key 对应 RAGFLOW_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 校验整个配置
func (c *Config) Validate() error {
	if err := c.Ragflow.Validate(); err != nil {
		return err
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// processEnvironmentVariables 展开配置文件中${VAR}形式的密钥
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.Ragflow.APIKey,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 300)
	v.SetDefault("server.max_upload_mb", 100)

	// Ragflow默认配置
	v.SetDefault("ragflow.host", "localhost")
	v.SetDefault("ragflow.port", 9380)
	v.SetDefault("ragflow.api_key", "")
	v.SetDefault("ragflow.timeout", 30000)
	v.SetDefault("ragflow.retries", adapter.DefaultMaxRetries)
	v.SetDefault("ragflow.retry_delay", 1000)
	v.SetDefault("ragflow.scheme", "http")

	// 初始化流程默认配置
	v.SetDefault("setup.dataset_name", "financial-reports-2024")
	v.SetDefault("setup.embedding_model", "maidalun1020/bce-embedding-base_v1@Youdao")
	v.SetDefault("setup.chunk_method", "paper")
	v.SetDefault("setup.assistant_name", "财报分析专家")
	v.SetDefault("setup.llm_model", "deepseek-chat@Deepseek")
	v.SetDefault("setup.data_dir", "./data/reports")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/uploads")
	v.SetDefault("storage.bucket", "ragflow-setup")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 3600) // 1小时
	v.SetDefault("cache.health_ttl", 15)

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.retry_limit", 0) // setup本身不幂等，默认不重放
	v.SetDefault("queue.retry_delay", 60)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/ragflow-setup.db")
}
