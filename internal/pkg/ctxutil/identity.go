package ctxutil

import (
	"context"

	"mentor/internal/model"
)

// 使用私有类型避免与其他 context key 冲突
type (
	identityKeyType  struct{}
	requestIDKeyType struct{}
)

var (
	identityKey  = identityKeyType{}
	requestIDKey = requestIDKeyType{}
)

// WithIdentity 将调用方身份注入到 context 中
// 由 Identify 中间件在解析网络地址与可选 Bearer Token 后调用
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity 从 context 中解析调用方身份
func GetIdentity(ctx context.Context) (model.Identity, bool) {
	if ctx == nil {
		return model.Identity{}, false
	}
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

// GetUserID 注册用户的账号 ID
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || !id.IsRegistered() {
		return "", false
	}
	return id.AccountID, true
}

// WithRequestID 注入请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID 读取请求 ID
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}
