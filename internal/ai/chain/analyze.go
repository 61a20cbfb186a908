package chain

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultQuestion 未提供问题时使用
const DefaultQuestion = "Please analyze this file and provide insights."

const defaultAnalyzePrompt = "You are a file analysis expert. Analyze this content:"

// analyzePrompts 文件类型 -> 系统提示词
var analyzePrompts = map[string]string{
	"code":        "You are a code analysis expert. Analyze this code for bugs, improvements, and best practices:",
	"document":    "You are a document analysis expert. Summarize and analyze this document:",
	"image":       "You are an OCR and image analysis expert. Analyze this extracted text from an image:",
	"data":        "You are a data analysis expert. Analyze this data and provide insights:",
	"spreadsheet": "You are a spreadsheet analysis expert. Analyze this data and provide insights:",
}

// AnalyzeChain 文件内容分析链
// 工作流: 文件内容 + 问题 -> 按类型选择提示词 -> ChatModel -> 分析结果
type AnalyzeChain struct {
	chatModel model.BaseChatModel
}

// AnalyzeRequest 分析请求
type AnalyzeRequest struct {
	Content  string // 提取后的文件文本
	Question string
	FileType string // code, document, image, data, spreadsheet
}

// NewAnalyzeChain 创建文件分析链
func NewAnalyzeChain(chatModel model.BaseChatModel) *AnalyzeChain {
	return &AnalyzeChain{chatModel: chatModel}
}

// PromptFor 文件类型对应的系统提示词
func PromptFor(fileType string) string {
	if p, ok := analyzePrompts[fileType]; ok {
		return p
	}
	return defaultAnalyzePrompt
}

// Run 执行文件分析
func (c *AnalyzeChain) Run(ctx context.Context, req *AnalyzeRequest, opts ...model.Option) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(PromptFor(req.FileType)),
		schema.UserMessage(buildAnalyzePrompt(req.Content, req.Question)),
	}

	resp, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Content == "" {
		return "", errors.New("empty analysis")
	}
	return resp.Content, nil
}

// buildAnalyzePrompt 构建分析提示词
func buildAnalyzePrompt(content, question string) string {
	if question == "" {
		question = DefaultQuestion
	}
	return "File content:\n" + content + "\n\nQuestion: " + question
}
