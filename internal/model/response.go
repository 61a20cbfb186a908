package model

// ChatResponse 对话响应
type ChatResponse struct {
	Answer          string `json:"answer"`
	ContextType     string `json:"context_type"`
	SourcesUsed     int    `json:"sources_used"`
	TokensUsed      int    `json:"tokens_used"`
	TokensRemaining int    `json:"tokens_remaining"`
	ModelUsed       string `json:"model_used"`
	IsAuthenticated bool   `json:"is_authenticated"`
	ConversationID  string `json:"conversation_id,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

// BudgetExceededDetail 配额耗尽时返回的详情
type BudgetExceededDetail struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	TokensUsed  int    `json:"tokens_used"`
	TokensLimit int    `json:"tokens_limit"`
	ResetTime   string `json:"reset_time"`
}

// ConversationListResponse 会话列表
type ConversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}

// MessageListResponse 会话消息列表
type MessageListResponse struct {
	Messages []Message `json:"messages"`
}

// UsageResponse 当前调用方的配额
type UsageResponse struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	Class           string `json:"class"`
	TokensUsed      int    `json:"tokens_used"`
	TokensLimit     int    `json:"tokens_limit"`
	TokensRemaining int    `json:"tokens_remaining"`
	ResetTime       string `json:"reset_time"`
}

// FileSummary 上传文件的概要
type FileSummary struct {
	Filename   string         `json:"filename"`
	FileType   string         `json:"file_type"`
	FileSize   int64          `json:"file_size"`
	Stored     bool           `json:"stored"`
	UploadID   string         `json:"upload_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	TextLength int            `json:"text_length"`
}

// UploadResponse 上传响应
type UploadResponse struct {
	Summary     FileSummary `json:"summary"`
	Preview     string      `json:"preview"`
	FullContent string      `json:"full_content"`
}

// AnalyzeFileResponse 文件分析响应
type AnalyzeFileResponse struct {
	Analysis  string `json:"analysis"`
	FileType  string `json:"file_type"`
	ModelUsed string `json:"model_used"`
}

// MetricsResponse 运行指标
type MetricsResponse struct {
	ActiveRateLimits int `json:"active_rate_limits"`
	BlockedIPs       int `json:"blocked_ips"`
	TrackedBudgets   int `json:"tracked_budgets"`
	VectorStoreDocs  int `json:"vector_store_docs"`
	IndexDimension   int `json:"index_dimension"`
}
