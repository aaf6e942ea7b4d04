// setup 命令行工具：检查Ragflow连接，上传财报并创建分析助手
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/ragflow-setup/api/middleware"
	appconfig "github.com/fyerfyer/ragflow-setup/config"
	"github.com/fyerfyer/ragflow-setup/internal/adapter"
	"github.com/fyerfyer/ragflow-setup/internal/database"
	"github.com/fyerfyer/ragflow-setup/internal/document"
	"github.com/fyerfyer/ragflow-setup/internal/ragflow"
	"github.com/fyerfyer/ragflow-setup/internal/repository"
	"github.com/fyerfyer/ragflow-setup/internal/services"
)

type options struct {
	ConfigFile string
	DataDir    string
	Samples    int
	LogLevel   string
	Timeout    time.Duration
	NoRecord   bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.ConfigFile, "config", "", "Path to config file")
	flag.StringVar(&opts.DataDir, "data", "", "Directory containing report files (overrides setup.data_dir)")
	flag.IntVar(&opts.Samples, "sample", 0, "Generate N sample report PDFs into the data directory before setup")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.DurationVar(&opts.Timeout, "timeout", 30*time.Minute, "Overall timeout for the setup run")
	flag.BoolVar(&opts.NoRecord, "no-record", false, "Do not record the run in the local database")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.DataDir != "" {
		cfg.Setup.DataDir = opts.DataDir
	}

	logger := middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	for _, w := range cfg.Ragflow.Warnings() {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	a, err := adapter.New(cfg.Ragflow.AdapterConfig(),
		adapter.WithLogger(logger),
		adapter.WithObserver(adapter.NewLogObserver(logger)),
	)
	if err != nil {
		return err
	}
	client := ragflow.NewClient(a)

	// 1. 连接检查
	logger.WithField("base_url", a.BaseURL()).Info("Checking ragflow connectivity")
	if !client.HealthCheck(ctx) {
		printHints(cfg.Ragflow)
		return fmt.Errorf("ragflow at %s is not reachable", a.BaseURL())
	}

	// 2. 准备文件
	if opts.Samples > 0 {
		if err := writeSamples(cfg.Setup.DataDir, opts.Samples); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"count": opts.Samples,
			"dir":   cfg.Setup.DataDir,
		}).Info("Sample reports generated")
	}
	files, err := collectFiles(cfg.Setup.DataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no report files found in %s (use -sample N to generate some)", cfg.Setup.DataDir)
	}

	// 3. 执行初始化
	dataset, assistant := services.Overrides{
		DatasetName:    cfg.Setup.DatasetName,
		EmbeddingModel: cfg.Setup.EmbeddingModel,
		ChunkMethod:    cfg.Setup.ChunkMethod,
		AssistantName:  cfg.Setup.AssistantName,
		LLMModel:       cfg.Setup.LLMModel,
	}.Apply()
	setupOpts := []services.SetupOption{
		services.WithSetupLogger(logger),
		services.WithDatasetConfig(dataset),
		services.WithAssistantConfig(assistant),
	}
	if !opts.NoRecord {
		dbConfig := database.DefaultConfig()
		if cfg.Database.DSN != "" {
			dbConfig.DSN = cfg.Database.DSN
		}
		if err := database.Setup(dbConfig, logger); err != nil {
			return err
		}
		defer database.Close()
		setupOpts = append(setupOpts, services.WithRunRepository(repository.NewSetupRunRepository()))
	}

	result, err := services.NewSetupService(client, setupOpts...).SetupSystem(ctx, files)
	if err != nil {
		var setupErr *services.SetupError
		if errors.As(err, &setupErr) && setupErr.DatasetID != "" {
			fmt.Fprintf(os.Stderr, "dataset %s was created before the failure and was not removed\n", setupErr.DatasetID)
		}
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// collectFiles 读取目录下所有支持的文件，按文件名排序
func collectFiles(dir string) ([]services.SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var files []services.SourceFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := document.DetectType(entry.Name()); err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, services.SourceFile{
			Name:        entry.Name(),
			Content:     content,
			StoragePath: path,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// writeSamples 生成示例财报PDF
func writeSamples(dir string, n int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	for i, report := range document.SampleReports(n) {
		pdf, err := document.GenerateSampleReport(report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, document.SampleFileName(i)), pdf, 0644); err != nil {
			return fmt.Errorf("failed to write sample report: %w", err)
		}
	}
	return nil
}

func printHints(cfg appconfig.RagflowConfig) {
	fmt.Fprintln(os.Stderr, "Ragflow health check failed. Please check:")
	fmt.Fprintf(os.Stderr, "  1. Ragflow is running at %s\n", cfg.BaseURL())
	fmt.Fprintln(os.Stderr, "  2. RAGFLOW_HOST and RAGFLOW_PORT point to the API port (default 9380)")
	fmt.Fprintln(os.Stderr, "  3. RAGFLOW_API_KEY is set if the server requires authentication")
}
