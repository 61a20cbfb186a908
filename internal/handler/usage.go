package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mentor/internal/budget"
	"mentor/internal/model"
)

// UsageHandler 配额查询
type UsageHandler struct {
	budget *budget.Manager
}

// NewUsageHandler 创建配额查询处理器
func NewUsageHandler(budget *budget.Manager) *UsageHandler {
	return &UsageHandler{budget: budget}
}

// Usage 当前调用方的 token 用量
// @Summary      配额
// @Tags         对话
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.UsageResponse
// @Router       /api/v1/usage [get]
func (h *UsageHandler) Usage(c *gin.Context) {
	id := identity(c)
	u := h.budget.Snapshot(id)

	c.JSON(http.StatusOK, model.UsageResponse{
		IsAuthenticated: id.IsRegistered(),
		Class:           id.Kind.String(),
		TokensUsed:      u.Used,
		TokensLimit:     u.Limit,
		TokensRemaining: u.Remaining,
		ResetTime:       u.ResetTime,
	})
}
