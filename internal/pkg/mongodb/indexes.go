package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"mentor/internal/model"
)

// EnsureIndexes 创建所有模型的索引
// 应用启动时调用，模型通过 Model 接口声明自己的索引
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models := []Model{
		model.Conversation{},
		model.Message{},
		model.UploadRecord{},
	}

	return EnsureAllIndexes(ctx, db, models...)
}
