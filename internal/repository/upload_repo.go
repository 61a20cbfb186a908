package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mentor/internal/model"
)

// UploadRepo MongoDB 上传记录仓库
type UploadRepo struct {
	collection *mongo.Collection
}

// NewUploadRepo 创建上传记录仓库
func NewUploadRepo(db *mongo.Database) *UploadRepo {
	return &UploadRepo{
		collection: db.Collection(model.UploadRecord{}.Collection()),
	}
}

// CreateUpload 写入上传记录
func (r *UploadRepo) CreateUpload(ctx context.Context, rec *model.UploadRecord) error {
	_, err := r.collection.InsertOne(ctx, rec)
	return err
}

// ListUploads 查询用户最近的上传
func (r *UploadRepo) ListUploads(ctx context.Context, userID string, limit int) ([]model.UploadRecord, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "processed_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	recs := []model.UploadRecord{}
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
