package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mentor/internal/model"
)

// ConversationRepo MongoDB 会话仓库
// 会话与消息分两个集合存放
type ConversationRepo struct {
	client        *mongo.Client
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewConversationRepo 创建会话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		client:        db.Client(),
		conversations: db.Collection(model.Conversation{}.Collection()),
		messages:      db.Collection(model.Message{}.Collection()),
	}
}

// CreateConversation 创建会话
func (r *ConversationRepo) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	_, err := r.conversations.InsertOne(ctx, conv)
	return err
}

// FindConversation 根据 ID 查询
func (r *ConversationRepo) FindConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations 查询用户会话列表
func (r *ConversationRepo) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}})

	cursor, err := r.conversations.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := []model.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// UpdateTitle 修改标题
func (r *ConversationRepo) UpdateTitle(ctx context.Context, id, userID, title string, at time.Time) (bool, error) {
	res, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"title": title, "updated_at": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// AppendMessages 追加消息
func (r *ConversationRepo) AppendMessages(ctx context.Context, conversationID string, msgs []model.Message, at time.Time) error {
	if len(msgs) == 0 {
		return nil
	}

	docs := make([]any, len(msgs))
	for i := range msgs {
		docs[i] = msgs[i]
	}

	if _, err := r.messages.InsertMany(ctx, docs); err != nil {
		return err
	}

	_, err := r.conversations.UpdateByID(ctx, conversationID, bson.M{
		"$set": bson.M{"updated_at": at},
	})
	return err
}

// ListMessages 查询会话消息
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})

	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []model.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Ping 就绪检查
func (r *ConversationRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}
