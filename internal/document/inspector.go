// Package document 在上传到Ragflow之前检查本地文件
package document

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// FileType 支持的文件类型
type FileType string

const (
	// TypePDF PDF文档
	TypePDF FileType = "pdf"
	// TypeMarkdown Markdown文档
	TypeMarkdown FileType = "md"
	// TypeText 纯文本
	TypeText FileType = "txt"
)

var (
	// ErrUnsupportedType 不支持的文件类型
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyFile 文件内容为空
	ErrEmptyFile = errors.New("file is empty")
	// ErrInvalidPDF PDF结构损坏或无法解析
	ErrInvalidPDF = errors.New("invalid pdf")
	// ErrNoPages PDF没有页面
	ErrNoPages = errors.New("pdf has no pages")
	// ErrInvalidEncoding 文本不是合法的UTF-8
	ErrInvalidEncoding = errors.New("text is not valid utf-8")
)

// FileInfo 文件检查结果
type FileInfo struct {
	Name        string   `json:"name"`
	Type        FileType `json:"type"`
	ContentType string   `json:"content_type"`
	Size        int64    `json:"size"`
	PageCount   int      `json:"page_count,omitempty"`
	Title       string   `json:"title,omitempty"`
}

// InspectError 单个文件检查失败
type InspectError struct {
	Name string
	Err  error
}

func (e *InspectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *InspectError) Unwrap() error {
	return e.Err
}

// Inspector 文件检查器接口
type Inspector interface {
	// Inspect 检查文件内容，返回类型、大小、页数等信息
	Inspect(name string, content []byte) (*FileInfo, error)
}

// DefaultInspector 默认文件检查器
type DefaultInspector struct {
	conf *model.Configuration
}

// NewInspector 创建文件检查器
func NewInspector() *DefaultInspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &DefaultInspector{conf: conf}
}

// DetectType 根据扩展名判断文件类型
func DetectType(name string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return TypePDF, nil
	case ".md", ".markdown":
		return TypeMarkdown, nil
	case ".txt":
		return TypeText, nil
	default:
		return "", ErrUnsupportedType
	}
}

// ContentType 返回文件类型对应的MIME类型
func ContentType(t FileType) string {
	switch t {
	case TypePDF:
		return "application/pdf"
	case TypeMarkdown:
		return "text/markdown"
	case TypeText:
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// Inspect 检查单个文件
func (i *DefaultInspector) Inspect(name string, content []byte) (*FileInfo, error) {
	fileType, err := DetectType(name)
	if err != nil {
		return nil, &InspectError{Name: name, Err: err}
	}
	if len(content) == 0 {
		return nil, &InspectError{Name: name, Err: ErrEmptyFile}
	}

	info := &FileInfo{
		Name:        filepath.Base(name),
		Type:        fileType,
		ContentType: ContentType(fileType),
		Size:        int64(len(content)),
	}

	switch fileType {
	case TypePDF:
		pages, err := i.inspectPDF(content)
		if err != nil {
			return nil, &InspectError{Name: name, Err: err}
		}
		info.PageCount = pages
	case TypeMarkdown:
		title, err := inspectMarkdown(content)
		if err != nil {
			return nil, &InspectError{Name: name, Err: err}
		}
		info.Title = title
	case TypeText:
		title, err := inspectText(content)
		if err != nil {
			return nil, &InspectError{Name: name, Err: err}
		}
		info.Title = title
	}

	return info, nil
}

// inspectPDF 校验PDF结构并返回页数
func (i *DefaultInspector) inspectPDF(content []byte) (pages int, err error) {
	// pdfcpu在遇到严重损坏的文件时可能panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	if err := api.Validate(bytes.NewReader(content), i.conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}

	pages, err = api.PageCount(bytes.NewReader(content), i.conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if pages < 1 {
		return 0, ErrNoPages
	}
	return pages, nil
}

// inspectText 校验纯文本，首个非空行作为标题
func inspectText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", ErrInvalidEncoding
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", ErrEmptyFile
	}
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	return truncate(strings.TrimSpace(line), 255), nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
