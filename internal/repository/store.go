package repository

import (
	"context"
	"errors"
	"time"

	"mentor/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ConversationStore 会话与消息存储
type ConversationStore interface {
	// CreateConversation 创建会话
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	// FindConversation 查询会话，不存在返回 ErrNotFound
	FindConversation(ctx context.Context, id string) (*model.Conversation, error)
	// ListConversations 用户的会话，按 updated_at 倒序
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	// UpdateTitle 修改属于 userID 的会话标题，返回是否命中
	UpdateTitle(ctx context.Context, id, userID, title string, at time.Time) (bool, error)
	// AppendMessages 追加消息并推进会话的 updated_at
	AppendMessages(ctx context.Context, conversationID string, msgs []model.Message, at time.Time) error
	// ListMessages 会话消息，按 created_at 正序
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	// Ping 就绪检查
	Ping(ctx context.Context) error
}

// UploadStore 上传记录存储
type UploadStore interface {
	CreateUpload(ctx context.Context, rec *model.UploadRecord) error
	ListUploads(ctx context.Context, userID string, limit int) ([]model.UploadRecord, error)
}
