package model

import (
	"time"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultConversationTitle 无法从首条消息生成标题时使用
const DefaultConversationTitle = "New Chat"

// Conversation 会话实体
//
// 同一结构同时用于 SQLite (gorm) 与 MongoDB 存储。
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	UserID    string    `gorm:"index;type:varchar(64);not null" bson:"user_id" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" bson:"title" json:"title"`
	CreatedAt time.Time `gorm:"not null" bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"index;not null" bson:"updated_at" json:"updated_at"`
}

// TableName 表名
func (Conversation) TableName() string {
	return "conversations"
}

// Message 会话中的一条消息，写入后不再修改
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	ConversationID string    `gorm:"index;type:varchar(36);not null" bson:"conversation_id" json:"conversation_id"`
	Role           string    `gorm:"type:varchar(16);not null" bson:"role" json:"role"`
	Content        string    `gorm:"type:text;not null" bson:"content" json:"content"`
	TokensUsed     int       `gorm:"not null;default:0" bson:"tokens_used" json:"tokens_used"`
	CreatedAt      time.Time `gorm:"index;not null" bson:"created_at" json:"created_at"`
}

// TableName 表名
func (Message) TableName() string {
	return "messages"
}

// UploadRecord 注册用户上传文件的记录
type UploadRecord struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	UserID      string    `gorm:"index;type:varchar(64);not null" bson:"user_id" json:"user_id"`
	Filename    string    `gorm:"type:varchar(255);not null" bson:"filename" json:"filename"`
	FileType    string    `gorm:"type:varchar(32)" bson:"file_type" json:"file_type"`
	FileSize    int64     `bson:"file_size" json:"file_size"`
	StorageKey  string    `gorm:"type:varchar(512)" bson:"storage_key" json:"storage_key"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}

// TableName 表名
func (UploadRecord) TableName() string {
	return "uploaded_files"
}
