package resthttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"scalpel/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// RunService 供应用层实现，处理触发与查询。
type RunService interface {
	TriggerRun(ctx context.Context, symbol string) (pipeline.Result, error)
	RecentRuns(limit int) []pipeline.Result
	RunByID(traceID string) (pipeline.Result, bool)
	Symbols() []string
}

// Router 暴露运行相关接口。
type Router struct {
	service RunService
}

func NewRouter(service RunService) *Router {
	return &Router{service: service}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/runs", r.handleTriggerRun)
	group.GET("/runs", r.handleRecentRuns)
	group.GET("/runs/:id", r.handleRunByID)
	group.GET("/symbols", r.handleSymbols)
}

type triggerRequest struct {
	Symbol string `json:"symbol"`
}

func (r *Router) handleTriggerRun(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	res, err := r.service.TriggerRun(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleRecentRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	c.JSON(http.StatusOK, gin.H{"runs": r.service.RecentRuns(limit)})
}

func (r *Router) handleRunByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	res, ok := r.service.RunByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": r.service.Symbols()})
}
