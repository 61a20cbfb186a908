// Package extraction 调用内容提取服务，从上传文件中取出文本
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"mentor/internal/config"
)

var (
	// ErrRejected 提取服务拒绝了文件（4xx），不重试
	ErrRejected = errors.New("extraction rejected")
	// ErrUnavailable 提取服务不可用（5xx 或网络错误），已重试
	ErrUnavailable = errors.New("extraction service unavailable")
)

// Result 提取结果
type Result struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Client 内容提取服务客户端
type Client struct {
	baseURL    string
	maxRetries uint64
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// NewClient 创建提取服务客户端
func NewClient(cfg *config.ExtractionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
		newBackOff: func() backoff.BackOff {
			expo := backoff.NewExponentialBackOff()
			expo.InitialInterval = 200 * time.Millisecond
			expo.MaxInterval = 2 * time.Second
			expo.MaxElapsedTime = 15 * time.Second
			return expo
		},
	}
}

// Extract 上传文件内容与格式提示，返回提取出的文本
func (c *Client) Extract(ctx context.Context, filename, format string, data []byte) (*Result, error) {
	body, contentType, err := buildForm(filename, format, data)
	if err != nil {
		return nil, err
	}

	var out Result
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, readReason(resp.Body, resp.StatusCode)))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("extract status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode extraction result: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		log.Ctx(ctx).Warn().Err(err).Dur("retry_in", wait).Str("file", filename).Msg("extraction failed, retrying")
	}

	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		if errors.Is(err, ErrRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &out, nil
}

func buildForm(filename, format string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.WriteField("format", format); err != nil {
		return nil, "", fmt.Errorf("write format field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// readReason 读取错误响应中的 detail/error 字段，读不到时使用状态码
func readReason(r io.Reader, status int) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("status %d", status)
}
