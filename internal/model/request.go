package model

// ChatMessage 请求中的一条消息
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// ChatRequest 对话请求
type ChatRequest struct {
	Messages       []ChatMessage `json:"messages" binding:"required"`
	TaskType       string        `json:"task_type,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

// LatestUserMessage 最后一条 user 消息
func (r *ChatRequest) LatestUserMessage() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content, true
		}
	}
	return "", false
}

// CreateConversationRequest 创建会话请求
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// UpdateConversationRequest 修改会话标题请求
type UpdateConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// AnalyzeFileRequest 文件内容分析请求
type AnalyzeFileRequest struct {
	FileContent string `json:"file_content" binding:"required"`
	Question    string `json:"question,omitempty"`
	FileType    string `json:"file_type,omitempty"`
}
