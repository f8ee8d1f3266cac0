package models

import (
	"strings"
	"time"
)

// UserHandle 用户 ID 与 @username 的对应关系（用于 /addfor 跨用户指派）
type UserHandle struct {
	UserID    int64     `json:"user_id" bson:"user_id"`
	Handle    string    `json:"handle" bson:"handle"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NormalizeHandle 去掉前缀 @ 并统一为小写
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
