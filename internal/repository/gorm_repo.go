package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mentor/internal/model"
)

// GormRepo SQLite (gorm) 实现的会话与上传记录仓库
type GormRepo struct {
	db *gorm.DB
}

// NewGormRepo 创建 gorm 仓库，表结构需已迁移
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// Models 需要迁移的表
func Models() []any {
	return []any{&model.Conversation{}, &model.Message{}, &model.UploadRecord{}}
}

// CreateConversation 创建会话
func (r *GormRepo) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// FindConversation 根据 ID 查询
func (r *GormRepo) FindConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations 查询用户会话列表
func (r *GormRepo) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	convs := []model.Conversation{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// UpdateTitle 修改标题
func (r *GormRepo) UpdateTitle(ctx context.Context, id, userID, title string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendMessages 在一个事务里写入消息并推进 updated_at
func (r *GormRepo) AppendMessages(ctx context.Context, conversationID string, msgs []model.Message, at time.Time) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msgs).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", at).Error
	})
}

// ListMessages 查询会话消息
func (r *GormRepo) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	msgs := []model.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

// Ping 就绪检查
func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateUpload 写入上传记录
func (r *GormRepo) CreateUpload(ctx context.Context, rec *model.UploadRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListUploads 查询用户最近的上传
func (r *GormRepo) ListUploads(ctx context.Context, userID string, limit int) ([]model.UploadRecord, error) {
	recs := []model.UploadRecord{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("processed_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
