package model

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection 集合名称
func (Conversation) Collection() string {
	return "conversations"
}

// EnsureIndexes 会话列表按 user_id + updated_at 倒序查询
func (c Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(c.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_updated"),
		},
	})
	return err
}

// Collection 集合名称
func (Message) Collection() string {
	return "messages"
}

// EnsureIndexes 消息按会话 + 创建时间正序查询
func (m Message) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(m.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "conversation_id", Value: 1}, bson.E{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_conversation_created"),
		},
	})
	return err
}

// Collection 集合名称
func (UploadRecord) Collection() string {
	return "uploaded_files"
}

// EnsureIndexes 上传记录按用户查询
func (u UploadRecord) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(u.Collection()).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "processed_at", Value: -1}},
			Options: options.Index().SetName("idx_user_processed"),
		},
	})
	return err
}
