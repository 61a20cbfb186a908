package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mentor/internal/ai"
	"mentor/internal/ai/chain"
	"mentor/internal/config"
	"mentor/internal/model"
	"mentor/internal/pkg/extraction"
	"mentor/internal/pkg/id"
	"mentor/internal/pkg/storage"
	"mentor/internal/repository"
)

const previewLength = 1000

// 支持的扩展名 -> 文件类型
var supportedFormats = map[string]string{
	"pdf":  "document",
	"docx": "document",
	"txt":  "document",
	"md":   "document",
	"png":  "image",
	"jpg":  "image",
	"jpeg": "image",
	"gif":  "image",
	"bmp":  "image",
	"tiff": "image",
	"py":   "code",
	"js":   "code",
	"html": "code",
	"css":  "code",
	"java": "code",
	"cpp":  "code",
	"c":    "code",
	"csv":  "data",
	"json": "data",
	"xlsx": "spreadsheet",
}

// FileFormat 文件扩展名与类型，不支持时 ok 为 false
func FileFormat(filename string) (format, fileType string, ok bool) {
	format = strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	fileType, ok = supportedFormats[format]
	return format, fileType, ok
}

// Extractor 内容提取
type Extractor interface {
	Extract(ctx context.Context, filename, format string, data []byte) (*extraction.Result, error)
}

// Analyzer 文件分析
type Analyzer interface {
	Analyze(ctx context.Context, req *chain.AnalyzeRequest, route ai.Route) (string, error)
}

// UploadDeps 上传服务依赖
type UploadDeps struct {
	Config    *config.UploadConfig
	Extractor Extractor
	Storage   storage.Storage        // 为 nil 时不保存原文件
	Uploads   repository.UploadStore // 为 nil 时不记录
	Limiter   RateLimiter
	Analyzer  Analyzer
	Router    *ai.Router
}

// UploadService 文件上传与分析服务
type UploadService struct {
	deps UploadDeps
	now  func() time.Time
}

// NewUploadService 创建上传服务
func NewUploadService(deps UploadDeps) *UploadService {
	return &UploadService{deps: deps, now: time.Now}
}

// MaxBytes 身份对应的上传大小上限
func (s *UploadService) MaxBytes(identity model.Identity) int64 {
	if identity.IsRegistered() {
		return s.deps.Config.MaxUserBytes
	}
	return s.deps.Config.MaxGuestBytes
}

// Upload 提取上传文件的文本，注册用户额外保存原文件并记录
func (s *UploadService) Upload(ctx context.Context, identity model.Identity, filename string, r io.Reader) (*model.UploadResponse, error) {
	logger := log.Ctx(ctx).With().Str("identity", identity.Key()).Str("file", filename).Logger()

	// 1. 格式与大小
	format, fileType, ok := FileFormat(filename)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file format %q", ErrUnprocessable, format)
	}

	limit := s.MaxBytes(identity)
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", ErrInvalidInput, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrPayloadTooLarge, limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	// 2. 内容提取
	result, err := s.deps.Extractor.Extract(ctx, filename, format, data)
	if err != nil {
		if errors.Is(err, extraction.ErrRejected) {
			return nil, fmt.Errorf("%w: %v", ErrUnprocessable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	summary := model.FileSummary{
		Filename:   filename,
		FileType:   fileType,
		FileSize:   int64(len(data)),
		Metadata:   result.Metadata,
		TextLength: len([]rune(result.Text)),
	}

	// 3. 注册用户保存原文件，失败不影响返回提取结果
	if identity.IsRegistered() && s.deps.Storage != nil {
		if rec, err := s.store(ctx, identity.AccountID, filename, fileType, data); err != nil {
			logger.Error().Err(err).Msg("failed to store upload")
		} else {
			summary.Stored = true
			summary.UploadID = rec.ID
		}
	}

	logger.Info().Str("file_type", fileType).Int("bytes", len(data)).Bool("stored", summary.Stored).Msg("file processed")

	return &model.UploadResponse{
		Summary:     summary,
		Preview:     Preview(result.Text),
		FullContent: result.Text,
	}, nil
}

func (s *UploadService) store(ctx context.Context, userID, filename, fileType string, data []byte) (*model.UploadRecord, error) {
	now := s.now()
	rec := &model.UploadRecord{
		ID:          id.New(),
		UserID:      userID,
		Filename:    filename,
		FileType:    fileType,
		FileSize:    int64(len(data)),
		ProcessedAt: now,
	}
	rec.StorageKey = storage.UploadKey(userID, rec.ID, filename, now)

	if _, err := s.deps.Storage.Put(ctx, rec.StorageKey, bytes.NewReader(data), "application/octet-stream"); err != nil {
		return nil, err
	}
	if s.deps.Uploads == nil {
		return rec, nil
	}
	if err := s.deps.Uploads.CreateUpload(ctx, rec); err != nil {
		// 记录失败时回收文件
		if delErr := s.deps.Storage.Delete(ctx, rec.StorageKey); delErr != nil {
			log.Ctx(ctx).Warn().Err(delErr).Str("key", rec.StorageKey).Msg("failed to remove orphan upload")
		}
		return nil, fmt.Errorf("create upload record: %w", err)
	}
	return rec, nil
}

// Analyze 按文件类型分析文件内容，使用通用路由
func (s *UploadService) Analyze(ctx context.Context, identity model.Identity, req *model.AnalyzeFileRequest) (*model.AnalyzeFileResponse, error) {
	if strings.TrimSpace(req.FileContent) == "" {
		return nil, abort(ReasonInvalidInput, errors.New("file_content is empty"))
	}
	// 与上传共用大小上限
	if limit := s.MaxBytes(identity); int64(len(req.FileContent)) > limit {
		return nil, fmt.Errorf("%w: file_content exceeds %d bytes", ErrPayloadTooLarge, limit)
	}
	if !s.deps.Limiter.Allow(identity.NetworkKey()) {
		return nil, abort(ReasonRateLimited, nil)
	}

	route := s.deps.Router.Default()
	analysis, err := s.deps.Analyzer.Analyze(ctx, &chain.AnalyzeRequest{
		Content:  req.FileContent,
		Question: req.Question,
		FileType: req.FileType,
	}, route)
	if err != nil {
		return nil, abort(ReasonInferenceUnavailable, err)
	}

	return &model.AnalyzeFileResponse{
		Analysis:  analysis,
		FileType:  req.FileType,
		ModelUsed: route.DisplayName,
	}, nil
}

// Preview 前 1000 个字符，截断时追加 "..."
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
