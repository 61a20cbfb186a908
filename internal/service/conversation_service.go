package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mentor/internal/model"
	"mentor/internal/pkg/cache"
	"mentor/internal/pkg/id"
	"mentor/internal/repository"
)

const (
	titleWords     = 4
	titleMaxLen    = 30
	titleTruncated = 27
)

// DeriveTitle 由首条消息生成会话标题
// 取前 4 个词，超过 30 个字符时截断为 27 个字符加 "..."
func DeriveTitle(firstMessage string) string {
	words := strings.Fields(firstMessage)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	title := strings.Join(words, " ")
	if title == "" {
		return model.DefaultConversationTitle
	}

	runes := []rune(title)
	if len(runes) > titleMaxLen {
		return string(runes[:titleTruncated]) + "..."
	}
	return title
}

// ConversationService 会话管理服务
// 只服务注册用户，匿名对话不落库
type ConversationService struct {
	store   repository.ConversationStore
	cache   *cache.RedisCache // 可为 nil
	listTTL time.Duration
	now     func() time.Time
}

// NewConversationService 创建会话服务，redisCache 可为 nil
func NewConversationService(store repository.ConversationStore, redisCache *cache.RedisCache, listTTL time.Duration) *ConversationService {
	if listTTL <= 0 {
		listTTL = cache.ConversationListTTL
	}
	return &ConversationService{
		store:   store,
		cache:   redisCache,
		listTTL: listTTL,
		now:     time.Now,
	}
}

// Create 创建会话，标题为空时使用默认标题
func (s *ConversationService) Create(ctx context.Context, accountID, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultConversationTitle
	}

	now := s.now()
	conv := &model.Conversation{
		ID:        id.New(),
		UserID:    accountID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.invalidate(ctx, accountID)
	return conv, nil
}

// Resolve 有 existingID 时原样使用（归属在读取时校验），否则按首条消息创建新会话
func (s *ConversationService) Resolve(ctx context.Context, accountID, existingID, firstMessage string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	conv, err := s.Create(ctx, accountID, DeriveTitle(firstMessage))
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// Append 追加一条消息
func (s *ConversationService) Append(ctx context.Context, accountID, conversationID, role, content string, tokens int) error {
	now := s.now()
	msg := model.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokensUsed:     tokens,
		CreatedAt:      now,
	}
	if err := s.store.AppendMessages(ctx, conversationID, []model.Message{msg}, now); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	s.invalidate(ctx, accountID)
	return nil
}

// AppendExchange 一次写入用户消息（0 token）与助手回复
func (s *ConversationService) AppendExchange(ctx context.Context, accountID, conversationID, userContent, reply string, tokens int) error {
	now := s.now()
	msgs := []model.Message{
		{
			ID:             id.New(),
			ConversationID: conversationID,
			Role:           model.RoleUser,
			Content:        userContent,
			CreatedAt:      now,
		},
		{
			ID:             id.New(),
			ConversationID: conversationID,
			Role:           model.RoleAssistant,
			Content:        reply,
			TokensUsed:     tokens,
			// 同一时刻写入，按创建时间排序时保持先问后答
			CreatedAt: now.Add(time.Microsecond),
		},
	}
	if err := s.store.AppendMessages(ctx, conversationID, msgs, now); err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}

	s.invalidate(ctx, accountID)
	return nil
}

// ListFor 用户会话列表，按最近更新排序
func (s *ConversationService) ListFor(ctx context.Context, accountID string) ([]model.Conversation, error) {
	key := cache.ConversationListKey(accountID)
	if s.cache != nil {
		var cached []model.Conversation
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Ctx(ctx).Warn().Err(err).Msg("conversation list cache read failed")
		}
	}

	convs, err := s.store.ListConversations(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, convs, s.listTTL); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("conversation list cache write failed")
		}
	}
	return convs, nil
}

// MessagesFor 会话消息；会话不存在或不属于该用户时返回空列表
func (s *ConversationService) MessagesFor(ctx context.Context, conversationID, accountID string) ([]model.Message, error) {
	conv, err := s.store.FindConversation(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv.UserID != accountID {
		return []model.Message{}, nil
	}

	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// UpdateTitle 修改标题，返回是否命中本人的会话
func (s *ConversationService) UpdateTitle(ctx context.Context, conversationID, accountID, title string) (bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return false, fmt.Errorf("%w: title is empty", ErrInvalidInput)
	}

	ok, err := s.store.UpdateTitle(ctx, conversationID, accountID, title, s.now())
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	if ok {
		s.invalidate(ctx, accountID)
	}
	return ok, nil
}

// Ready 存储就绪检查
func (s *ConversationService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ConversationService) invalidate(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.ConversationListKey(accountID)); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", accountID).Msg("conversation list cache invalidation failed")
	}
}
