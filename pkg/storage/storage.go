// Package storage 归档setup请求上传的源文件
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// FileInfo 文件元数据结构
type FileInfo struct {
	ID       string `json:"id"`        // 文件唯一标识符
	Name     string `json:"name"`      // 原始文件名
	Size     int64  `json:"size"`      // 文件大小(字节)
	MimeType string `json:"mime_type"` // 文件MIME类型
	Path     string `json:"path"`      // 存储键：{run_id}/{id}{ext}
}

// Storage 文件存储接口
// 文件按运行ID分组，Path是读取和删除时使用的键
type Storage interface {
	// Save 保存文件并返回文件信息
	Save(ctx context.Context, runID, filename string, reader io.Reader) (FileInfo, error)

	// Get 根据存储键获取文件内容
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除文件
	Delete(ctx context.Context, key string) error

	// List 列出某次运行归档的文件，runID为空时列出全部
	List(ctx context.Context, runID string) ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type  string // local 或 minio
	Local LocalConfig
	Minio MinioConfig
}

// New 根据配置创建存储实例
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "minio":
		return NewMinioStorage(cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ReadAll 读取存储中的完整文件内容
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// objectKey 构建存储键
func objectKey(runID, id, filename string) string {
	return path.Join(sanitizeSegment(runID), id+strings.ToLower(filepath.Ext(filename)))
}

// validateKey 拒绝越出存储根目录的键
func validateKey(key string) error {
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) {
		return fmt.Errorf("invalid storage key: %q", key)
	}
	return nil
}

func sanitizeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "default"
	}
	return s
}

// idFromKey 从存储键中提取文件ID
func idFromKey(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// getMimeType 根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".md", ".markdown":
		return "text/markdown"
	case "":
		return "application/octet-stream"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
