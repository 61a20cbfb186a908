package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mentor/internal/model"
	"mentor/internal/service"
)

// ConversationHandler 会话管理处理器，路由挂在 RequireAuth 之后
type ConversationHandler struct {
	conversations *service.ConversationService
}

// NewConversationHandler 创建会话管理处理器
func NewConversationHandler(conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// List 获取会话列表
// @Summary      会话列表
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.ConversationListResponse
// @Failure      401  {object}  model.ErrorResponse
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	userID := identity(c).AccountID

	convs, err := h.conversations.ListFor(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ConversationListResponse{
		Conversations: convs,
		Total:         len(convs),
	})
}

// Create 创建会话
// @Summary      创建会话
// @Tags         会话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.CreateConversationRequest  false  "会话标题"
// @Success      201      {object}  model.Conversation
// @Failure      400      {object}  model.ErrorResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req model.CreateConversationRequest
	// 允许空 body
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	conv, err := h.conversations.Create(c.Request.Context(), identity(c).AccountID, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// Messages 获取会话消息，非本人会话返回空列表
// @Summary      会话消息
// @Tags         会话
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  model.MessageListResponse
// @Failure      401  {object}  model.ErrorResponse
// @Router       /api/v1/conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.conversations.MessagesFor(c.Request.Context(), c.Param("id"), identity(c).AccountID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MessageListResponse{Messages: msgs})
}

// UpdateTitle 修改会话标题
// @Summary      修改会话标题
// @Tags         会话
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "会话ID"
// @Param        request  body      model.UpdateConversationRequest  true  "新标题"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  model.ErrorResponse
// @Failure      404      {object}  model.ErrorResponse
// @Router       /api/v1/conversations/{id} [put]
func (h *ConversationHandler) UpdateTitle(c *gin.Context) {
	var req model.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ok, err := h.conversations.UpdateTitle(c.Request.Context(), c.Param("id"), identity(c).AccountID, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    CodeNotFound,
			Message: "Conversation not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Title updated successfully"})
}
