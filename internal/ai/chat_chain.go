package ai

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyCompletion 模型返回空内容
var ErrEmptyCompletion = errors.New("empty completion")

// ChatChain 对话链
// 职责: 人设 + 检索上下文 + 历史消息 -> ChatModel
type ChatChain struct {
	chatModel einomodel.BaseChatModel
	persona   string
}

// NewChatChain 创建对话链
func NewChatChain(chatModel einomodel.BaseChatModel, persona string) *ChatChain {
	return &ChatChain{
		chatModel: chatModel,
		persona:   persona,
	}
}

// SystemPrompt 人设，带上下文时追加 Context 段落
func (c *ChatChain) SystemPrompt(contextText string) string {
	if contextText == "" {
		return c.persona
	}
	return c.persona + "\n\nContext:\n" + contextText
}

// Run 同步执行对话
func (c *ChatChain) Run(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	// 1. 组装消息
	messages := make([]*schema.Message, 0, len(req.History)+1)
	messages = append(messages, schema.SystemMessage(c.SystemPrompt(req.Context)))
	for _, m := range req.History {
		messages = append(messages, toSchemaMessage(m.Role, m.Content))
	}

	// 2. 调用模型
	resp, err := c.chatModel.Generate(ctx, messages, routeOptions(req.Route)...)
	if err != nil {
		return nil, fmt.Errorf("generate with %s: %w", req.Route.Target, err)
	}
	if resp == nil || resp.Content == "" {
		return nil, ErrEmptyCompletion
	}

	// 3. 提取 token 使用量
	out := &ChatResponse{Content: resp.Content}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		out.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
		out.CompletionTokens = resp.ResponseMeta.Usage.CompletionTokens
	}
	return out, nil
}

func routeOptions(r Route) []einomodel.Option {
	opts := []einomodel.Option{einomodel.WithModel(r.Target)}
	if r.MaxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(r.MaxTokens))
	}
	return opts
}

func toSchemaMessage(role, content string) *schema.Message {
	switch role {
	case "system":
		return schema.SystemMessage(content)
	case "assistant":
		return schema.AssistantMessage(content, nil)
	default:
		return schema.UserMessage(content)
	}
}
