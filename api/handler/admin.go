package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/ragflow-setup/api/model"
)

// Health 本地存活检查
// GET /api/health, GET /api/admin/health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}

// Models 管理端模型列表，模型由Ragflow管理，这里总是返回空列表
// GET /api/admin/models
func Models(c *gin.Context) {
	c.JSON(http.StatusOK, model.ItemsResponse{Items: []interface{}{}})
}
