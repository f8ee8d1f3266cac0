package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// snapshotDocument 集合快照文档，_id 为集合名
type snapshotDocument struct {
	Name      string    `bson:"_id"`
	Payload   any       `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoSnapshotStore 以 MongoDB 文档保存集合快照（snapshots 集合，每个集合一条文档）
type MongoSnapshotStore struct {
	collection *mongo.Collection
}

// NewMongoSnapshotStore 创建 MongoDB 快照存储
func NewMongoSnapshotStore(db *mongo.Database) *MongoSnapshotStore {
	return &MongoSnapshotStore{
		collection: db.Collection("snapshots"),
	}
}

// Load 读取集合快照
func (r *MongoSnapshotStore) Load(ctx context.Context, name string, out any) (bool, error) {
	var doc struct {
		Payload bson.RawValue `bson:"payload"`
	}

	err := r.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load snapshot %s: %w", name, err)
	}

	if doc.Payload.Type == 0 || doc.Payload.Type == bson.TypeNull {
		return false, nil
	}
	if err := doc.Payload.Unmarshal(out); err != nil {
		return false, fmt.Errorf("%w: snapshot %s: %v", ErrDecodeFailed, name, err)
	}
	return true, nil
}

// Save 以 upsert 方式整体替换集合快照
func (r *MongoSnapshotStore) Save(ctx context.Context, name string, v any) error {
	doc := snapshotDocument{
		Name:      name,
		Payload:   v,
		UpdatedAt: time.Now(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": name}, doc, opts); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	return nil
}

// Close MongoDB 客户端由 app 统一关闭
func (r *MongoSnapshotStore) Close(ctx context.Context) error {
	return nil
}

// Ping 检查 MongoDB 连接
func (r *MongoSnapshotStore) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}
