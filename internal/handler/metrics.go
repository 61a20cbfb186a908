package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mentor/internal/budget"
	"mentor/internal/model"
	"mentor/internal/ratelimit"
	"mentor/internal/retrieval"
)

// MetricsHandler 运行指标
type MetricsHandler struct {
	limiter *ratelimit.Limiter
	budget  *budget.Manager
	index   *retrieval.Index
}

// NewMetricsHandler 创建指标处理器
func NewMetricsHandler(limiter *ratelimit.Limiter, budget *budget.Manager, index *retrieval.Index) *MetricsHandler {
	return &MetricsHandler{limiter: limiter, budget: budget, index: index}
}

// Metrics 限流、配额与向量索引概况
// @Summary  运行指标
// @Tags     系统
// @Produce  json
// @Success  200  {object}  model.MetricsResponse
// @Router   /metrics [get]
func (h *MetricsHandler) Metrics(c *gin.Context) {
	stats := h.limiter.Stats()
	c.JSON(http.StatusOK, model.MetricsResponse{
		ActiveRateLimits: stats.Tracked,
		BlockedIPs:       stats.Blocked,
		TrackedBudgets:   h.budget.Tracked(),
		VectorStoreDocs:  h.index.Len(),
		IndexDimension:   h.index.Dim(),
	})
}
