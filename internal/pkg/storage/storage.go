package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Storage 上传文件存储
type Storage interface {
	// Put 保存文件，返回访问地址
	Put(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Delete 删除文件，文件不存在时不报错
	Delete(ctx context.Context, key string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Type 存储类型
	Type() string
}

// 存储类型
const (
	TypeLocal = "local" // 本地文件系统
	TypeOSS   = "oss"   // 阿里云OSS
)

// UploadKey 上传文件的存储 key: uploads/<user>/<yyyymmdd>/<id>_<name>
func UploadKey(userID, uploadID, filename string, at time.Time) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return fmt.Sprintf("uploads/%s/%s/%s_%s", userID, at.Format("20060102"), uploadID, name)
}
