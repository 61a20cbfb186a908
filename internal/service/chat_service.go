package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mentor/internal/ai"
	"mentor/internal/budget"
	"mentor/internal/model"
	"mentor/internal/retrieval"
)

// 对话流程状态，仅用于日志
const (
	stateReceived      = "received"
	stateRateChecked   = "rate_checked"
	stateBudgetChecked = "budget_checked"
	stateAugmented     = "augmented"
	stateRouted        = "routed"
	stateInference     = "inference_in_flight"
	stateDebited       = "debited"
	statePersisted     = "persisted"
	stateResponded     = "responded"
	stateAborted       = "aborted"
)

// RateLimiter 请求频率限制
type RateLimiter interface {
	Allow(key string) bool
}

// Augmenter 检索增强
type Augmenter interface {
	Augment(ctx context.Context, query string) (*retrieval.Result, error)
}

// Inference 推理后端
type Inference interface {
	Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error)
}

// ConversationWriter 注册用户的会话落库
type ConversationWriter interface {
	Resolve(ctx context.Context, accountID, existingID, firstMessage string) (string, error)
	AppendExchange(ctx context.Context, accountID, conversationID, userContent, reply string, tokens int) error
}

// MessageGuard 输入校验与清洗
type MessageGuard interface {
	Validate(messages []model.ChatMessage) ([]model.ChatMessage, error)
}

// ChatDeps 对话服务依赖
type ChatDeps struct {
	Guard              MessageGuard
	Limiter            RateLimiter
	Budget             *budget.Manager
	Counter            budget.Counter
	EstimateMultiplier int
	Augmenter          Augmenter
	Router             *ai.Router
	Inference          Inference
	Conversations      ConversationWriter // 为 nil 时不落库
}

// ChatService 对话编排服务
// 流程: 校验 -> 限流 -> 配额 -> 检索增强 -> 路由 -> 推理 -> 扣减 -> 落库 -> 响应
type ChatService struct {
	deps ChatDeps
}

// NewChatService 创建对话服务
func NewChatService(deps ChatDeps) *ChatService {
	if deps.Counter == nil {
		deps.Counter = budget.WordCounter{}
	}
	if deps.EstimateMultiplier <= 0 {
		deps.EstimateMultiplier = 2
	}
	return &ChatService{deps: deps}
}

// Chat 处理一次对话请求
// 任一步骤失败返回 *AbortError；推理失败或取消时不扣减也不落库
func (s *ChatService) Chat(ctx context.Context, id model.Identity, req *model.ChatRequest) (resp *model.ChatResponse, err error) {
	logger := log.Ctx(ctx).With().
		Str("identity", id.Key()).
		Str("task_type", req.TaskType).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("chat orchestration panicked")
			resp, err = nil, abort(ReasonInternal, fmt.Errorf("panic: %v", r))
		}
		var ae *AbortError
		if errors.As(err, &ae) {
			transition(&logger, stateAborted).Str("reason", ae.Reason).Err(ae.Err).Msg("chat state")
		}
	}()

	transition(&logger, stateReceived).Int("messages", len(req.Messages)).Msg("chat state")

	// 1. 输入校验
	messages, err := s.deps.Guard.Validate(req.Messages)
	if err != nil {
		return nil, abort(ReasonInvalidInput, err)
	}
	cleaned := &model.ChatRequest{Messages: messages, TaskType: req.TaskType, ConversationID: req.ConversationID}
	query, ok := cleaned.LatestUserMessage()
	if !ok {
		return nil, abort(ReasonInvalidInput, errors.New("no user message"))
	}

	// 2. 频率限制，始终按网络地址
	if !s.deps.Limiter.Allow(id.NetworkKey()) {
		return nil, abort(ReasonRateLimited, nil)
	}
	transition(&logger, stateRateChecked).Msg("chat state")

	// 3. 配额检查
	estimate := s.deps.EstimateMultiplier * s.deps.Counter.Count(query)
	usage, ok := s.deps.Budget.Admit(id, estimate)
	if !ok {
		return nil, &AbortError{
			Reason:   ReasonBudgetExceeded,
			Err:      fmt.Errorf("used %d of %d, estimate %d", usage.Used, usage.Limit, estimate),
			Budget:   &usage,
			IsMember: id.IsRegistered(),
		}
	}
	transition(&logger, stateBudgetChecked).Int("estimate", estimate).Int("used", usage.Used).Msg("chat state")

	// 4. 检索增强
	aug, err := s.deps.Augmenter.Augment(ctx, query)
	if err != nil {
		return nil, abort(ReasonRetrievalUnavailable, err)
	}
	transition(&logger, stateAugmented).Str("context_type", aug.ContextType).Int("chunks", len(aug.Chunks)).Msg("chat state")

	// 5. 模型路由
	route := s.deps.Router.Route(req.TaskType)
	transition(&logger, stateRouted).Str("target", route.Target).Msg("chat state")

	// 6. 推理，不持有任何锁
	transition(&logger, stateInference).Msg("chat state")
	reply, err := s.deps.Inference.Chat(ctx, &ai.ChatRequest{
		Context: aug.ContextText,
		History: messages,
		Route:   route,
	})
	if err != nil {
		return nil, abort(ReasonInferenceUnavailable, err)
	}

	// 7. 扣减实际用量
	cost := s.deps.Counter.Count(query) + s.deps.Counter.Count(reply.Content)
	used := s.deps.Budget.Debit(id, cost)
	transition(&logger, stateDebited).Int("cost", cost).Int("used", used).Msg("chat state")

	// 8. 注册用户落库，失败只记日志
	var conversationID string
	if id.IsRegistered() && s.deps.Conversations != nil {
		conversationID = s.persist(ctx, &logger, id, req.ConversationID, query, reply.Content, cost)
		transition(&logger, statePersisted).Str("conversation_id", conversationID).Msg("chat state")
	}

	// 9. 响应
	answer := reply.Content
	if src := aug.Citation(); src != "" {
		answer += fmt.Sprintf("\n\nLearn more: [%s](%s)", src, src)
	}
	resp = &model.ChatResponse{
		Answer:          answer,
		ContextType:     aug.ContextType,
		SourcesUsed:     len(aug.Chunks),
		TokensUsed:      cost,
		TokensRemaining: max(0, s.deps.Budget.Limit(id)-used),
		ModelUsed:       route.DisplayName,
		IsAuthenticated: id.IsRegistered(),
		ConversationID:  conversationID,
	}
	transition(&logger, stateResponded).Msg("chat state")
	return resp, nil
}

func (s *ChatService) persist(ctx context.Context, logger *zerolog.Logger, id model.Identity, existingID, query, reply string, cost int) string {
	convID, err := s.deps.Conversations.Resolve(ctx, id.AccountID, existingID, query)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve conversation")
		return existingID
	}
	if err := s.deps.Conversations.AppendExchange(ctx, id.AccountID, convID, query, reply, cost); err != nil {
		logger.Error().Err(err).Str("conversation_id", convID).Msg("failed to save messages")
	}
	return convID
}

func transition(logger *zerolog.Logger, state string) *zerolog.Event {
	return logger.Debug().Str("state", state)
}

// BudgetDetail 配额耗尽时返回给调用方的详情
func BudgetDetail(e *AbortError) *model.BudgetExceededDetail {
	if e == nil || e.Budget == nil {
		return nil
	}
	u := e.Budget
	if e.IsMember {
		return &model.BudgetExceededDetail{
			Error:       "monthly_limit_exceeded",
			Message:     fmt.Sprintf("Monthly token limit (%d) exceeded. Limit resets next month.", u.Limit),
			TokensUsed:  u.Used,
			TokensLimit: u.Limit,
			ResetTime:   u.ResetTime,
		}
	}
	return &model.BudgetExceededDetail{
		Error:       "daily_limit_exceeded",
		Message:     fmt.Sprintf("Daily limit of %d tokens exceeded. Sign up for more tokens per month!", u.Limit),
		TokensUsed:  u.Used,
		TokensLimit: u.Limit,
		ResetTime:   u.ResetTime,
	}
}
