package model

import "mime/multipart"

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// SetupRequest 初始化请求
type SetupRequest struct {
	Files []*multipart.FileHeader `form:"file" binding:"required"` // 源文件，可重复
	Async bool                    `form:"async"`                   // 是否通过任务队列执行
}

// SetupRunListRequest 运行记录列表请求
type SetupRunListRequest struct {
	PaginationRequest
	Status string `form:"status" json:"status" binding:"omitempty,oneof=pending running completed failed"` // 运行状态
}

// IDRequest 路径中的资源ID
type IDRequest struct {
	ID string `uri:"id" binding:"required"`
}
