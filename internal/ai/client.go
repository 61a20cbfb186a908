package ai

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	"mentor/internal/ai/chain"
	"mentor/internal/ai/component"
	"mentor/internal/config"
	"mentor/internal/model"
)

// Client AI 能力层客户端
// 职责: 封装推理后端，统一超时与路由参数
type Client struct {
	timeout      time.Duration
	chatChain    *ChatChain
	analyzeChain *chain.AnalyzeChain
}

// NewClient 按配置创建 ChatModel 并构建客户端
func NewClient(ctx context.Context, cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		log.Warn().Str("provider", cfg.Provider).Msg("AI API key not configured")
	}

	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewClientWithModel(chatModel, cfg.SystemPrompt, cfg.Timeout), nil
}

// NewClientWithModel 使用已有 ChatModel 创建客户端
func NewClientWithModel(chatModel einomodel.BaseChatModel, persona string, timeout time.Duration) *Client {
	return &Client{
		timeout:      timeout,
		chatChain:    NewChatChain(chatModel, persona),
		analyzeChain: chain.NewAnalyzeChain(chatModel),
	}
}

// ChatRequest AI 对话请求
type ChatRequest struct {
	Context string              // 检索到的上下文，可为空
	History []model.ChatMessage // 完整消息历史
	Route   Route
}

// ChatResponse AI 对话响应
type ChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Chat 同步对话，超过 timeout 返回错误
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.chatChain.Run(ctx, req)
}

// Analyze 按文件类型分析文件内容
func (c *Client) Analyze(ctx context.Context, req *chain.AnalyzeRequest, route Route) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.analyzeChain.Run(ctx, req, routeOptions(route)...)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
