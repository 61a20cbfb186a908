package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"mentor/internal/ai"
	"mentor/internal/budget"
	"mentor/internal/config"
	"mentor/internal/model"
	"mentor/internal/pkg/sanitize"
	"mentor/internal/ratelimit"
	"mentor/internal/retrieval"
)

type fakeInference struct {
	mu    sync.Mutex
	calls []*ai.ChatRequest
	reply string
	err   error
	panic bool
}

func (f *fakeInference) Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.panic {
		panic("backend exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ai.ChatResponse{Content: f.reply}, nil
}

func (f *fakeInference) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAugmenter struct {
	result  *retrieval.Result
	err     error
	queries []string
}

func (f *fakeAugmenter) Augment(ctx context.Context, query string) (*retrieval.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &retrieval.Result{ContextType: retrieval.ContextGeneral}, nil
}

type savedExchange struct {
	accountID, conversationID, user, reply string
	tokens                                 int
}

type fakeConversations struct {
	resolved  []string
	saved     []savedExchange
	appendErr error
}

func (f *fakeConversations) Resolve(ctx context.Context, accountID, existingID, firstMessage string) (string, error) {
	f.resolved = append(f.resolved, firstMessage)
	if existingID != "" {
		return existingID, nil
	}
	return "conv-new", nil
}

func (f *fakeConversations) AppendExchange(ctx context.Context, accountID, conversationID, userContent, reply string, tokens int) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.saved = append(f.saved, savedExchange{accountID, conversationID, userContent, reply, tokens})
	return nil
}

type chatFixture struct {
	svc   *ChatService
	inf   *fakeInference
	aug   *fakeAugmenter
	convs *fakeConversations
	bm    *budget.Manager
}

func newChatFixture(maxRequests int) *chatFixture {
	guard, err := sanitize.NewGuard(20, 2000, sanitize.DefaultDenyPatterns)
	if err != nil {
		panic(err)
	}
	router, err := ai.NewRouter(map[string]config.RouteConfig{
		"general": {Target: "gemma2:2b", DisplayName: "men.01", MaxTokens: 2000},
		"code":    {Target: "phi3.5:3.8b", DisplayName: "men.02", MaxTokens: 2000},
		"image":   {Target: "gemma2:2b", DisplayName: "men.03", MaxTokens: 1500},
	}, "general")
	if err != nil {
		panic(err)
	}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)
	f := &chatFixture{
		inf:   &fakeInference{reply: "Hello there"},
		aug:   &fakeAugmenter{},
		convs: &fakeConversations{},
		bm: budget.NewManager(budget.Limits{Anonymous: 100, Registered: 80000},
			budget.WithClock(func() time.Time { return now })),
	}
	f.svc = NewChatService(ChatDeps{
		Guard:              guard,
		Limiter:            ratelimit.New(time.Minute, maxRequests),
		Budget:             f.bm,
		Counter:            budget.WordCounter{},
		EstimateMultiplier: 2,
		Augmenter:          f.aug,
		Router:             router,
		Inference:          f.inf,
		Conversations:      f.convs,
	})
	return f
}

func userRequest(text string) *model.ChatRequest {
	return &model.ChatRequest{Messages: []model.ChatMessage{{Role: model.RoleUser, Content: text}}}
}

func abortReason(err error) string {
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

func TestChatService(t *testing.T) {
	Convey("对话编排", t, func() {
		ctx := context.Background()
		f := newChatFixture(30)
		anon := model.Anonymous("10.0.0.1")
		member := model.Registered("u-1", "10.0.0.2")

		Convey("匿名用户单条问候", func() {
			resp, err := f.svc.Chat(ctx, anon, userRequest("Hi"))
			So(err, ShouldBeNil)
			So(resp.Answer, ShouldEqual, "Hello there")
			So(resp.ContextType, ShouldEqual, retrieval.ContextGeneral)
			So(resp.SourcesUsed, ShouldEqual, 0)
			So(resp.TokensUsed, ShouldEqual, 3)
			So(resp.TokensRemaining, ShouldEqual, 97)
			So(resp.ModelUsed, ShouldEqual, "men.01")
			So(resp.IsAuthenticated, ShouldBeFalse)
			So(resp.ConversationID, ShouldBeEmpty)
			So(f.bm.Used(anon), ShouldEqual, 3)
			So(f.convs.saved, ShouldBeEmpty)

			So(f.inf.count(), ShouldEqual, 1)
			So(f.inf.calls[0].Route.Target, ShouldEqual, "gemma2:2b")
			So(f.inf.calls[0].History, ShouldHaveLength, 1)
		})

		Convey("注入内容在任何外部调用前被拒绝", func() {
			_, err := f.svc.Chat(ctx, anon, userRequest("<script>alert(1)</script>"))
			So(abortReason(err), ShouldEqual, ReasonInvalidInput)
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			So(f.inf.count(), ShouldEqual, 0)
			So(f.aug.queries, ShouldBeEmpty)
			So(f.bm.Used(anon), ShouldEqual, 0)
		})

		Convey("没有 user 消息", func() {
			req := &model.ChatRequest{Messages: []model.ChatMessage{{Role: model.RoleSystem, Content: "be nice"}}}
			_, err := f.svc.Chat(ctx, anon, req)
			So(abortReason(err), ShouldEqual, ReasonInvalidInput)
		})

		Convey("推理超时不扣减不落库", func() {
			f.inf.err = context.DeadlineExceeded
			_, err := f.svc.Chat(ctx, member, userRequest("explain recursion"))
			So(abortReason(err), ShouldEqual, ReasonInferenceUnavailable)
			So(errors.Is(err, ErrUpstreamUnavailable), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(f.bm.Used(member), ShouldEqual, 0)
			So(f.convs.resolved, ShouldBeEmpty)
			So(f.convs.saved, ShouldBeEmpty)
		})

		Convey("检索失败", func() {
			f.aug.err = retrieval.ErrEmbeddingUnavailable
			_, err := f.svc.Chat(ctx, anon, userRequest("what is the syllabus"))
			So(abortReason(err), ShouldEqual, ReasonRetrievalUnavailable)
			So(errors.Is(err, ErrUpstreamUnavailable), ShouldBeTrue)
			So(f.inf.count(), ShouldEqual, 0)
		})

		Convey("匿名配额不足", func() {
			f.bm.Debit(anon, 99)
			_, err := f.svc.Chat(ctx, anon, userRequest("hello world"))
			So(abortReason(err), ShouldEqual, ReasonBudgetExceeded)
			So(errors.Is(err, ErrBudgetExceeded), ShouldBeTrue)
			So(f.inf.count(), ShouldEqual, 0)

			var ae *AbortError
			So(errors.As(err, &ae), ShouldBeTrue)
			detail := BudgetDetail(ae)
			So(detail.Error, ShouldEqual, "daily_limit_exceeded")
			So(detail.TokensUsed, ShouldEqual, 99)
			So(detail.TokensLimit, ShouldEqual, 100)
			So(detail.ResetTime, ShouldEqual, budget.ResetMidnight)
		})

		Convey("注册用户用尽月度额度", func() {
			f.bm.Debit(member, 80000)
			_, err := f.svc.Chat(ctx, member, userRequest("hi"))
			var ae *AbortError
			So(errors.As(err, &ae), ShouldBeTrue)
			detail := BudgetDetail(ae)
			So(detail.Error, ShouldEqual, "monthly_limit_exceeded")
			So(detail.ResetTime, ShouldEqual, budget.ResetNextMonth)
		})

		Convey("注册用户的对话落库", func() {
			resp, err := f.svc.Chat(ctx, member, userRequest("How do loops work"))
			So(err, ShouldBeNil)
			So(resp.IsAuthenticated, ShouldBeTrue)
			So(resp.ConversationID, ShouldEqual, "conv-new")
			So(resp.TokensRemaining, ShouldEqual, 80000-resp.TokensUsed)
			So(f.convs.saved, ShouldHaveLength, 1)
			So(f.convs.saved[0].user, ShouldEqual, "How do loops work")
			So(f.convs.saved[0].reply, ShouldEqual, "Hello there")
			So(f.convs.saved[0].tokens, ShouldEqual, resp.TokensUsed)

			Convey("沿用已有会话", func() {
				req := userRequest("and while loops")
				req.ConversationID = "conv-7"
				resp, err := f.svc.Chat(ctx, member, req)
				So(err, ShouldBeNil)
				So(resp.ConversationID, ShouldEqual, "conv-7")
			})
		})

		Convey("落库失败不影响响应", func() {
			f.convs.appendErr = errors.New("disk full")
			resp, err := f.svc.Chat(ctx, member, userRequest("hi"))
			So(err, ShouldBeNil)
			So(resp.Answer, ShouldEqual, "Hello there")
			So(f.bm.Used(member), ShouldEqual, resp.TokensUsed)
		})

		Convey("领域问题附带来源", func() {
			f.aug.result = &retrieval.Result{
				ContextType: retrieval.ContextDomain,
				ContextText: "Week 1 covers variables.",
				Chunks:      []retrieval.Chunk{{Text: "Week 1 covers variables.", Source: "https://example.edu/syllabus"}},
			}
			resp, err := f.svc.Chat(ctx, anon, userRequest("what does the syllabus cover"))
			So(err, ShouldBeNil)
			So(resp.ContextType, ShouldEqual, retrieval.ContextDomain)
			So(resp.SourcesUsed, ShouldEqual, 1)
			So(resp.Answer, ShouldEqual, "Hello there\n\nLearn more: [https://example.edu/syllabus](https://example.edu/syllabus)")
			So(f.inf.calls[0].Context, ShouldEqual, "Week 1 covers variables.")
		})

		Convey("按 task_type 路由", func() {
			req := userRequest("fix my code")
			req.TaskType = "code"
			resp, err := f.svc.Chat(ctx, anon, req)
			So(err, ShouldBeNil)
			So(resp.ModelUsed, ShouldEqual, "men.02")
			So(f.inf.calls[0].Route.MaxTokens, ShouldEqual, 2000)
		})

		Convey("panic 转为 internal_error", func() {
			f.inf.panic = true
			resp, err := f.svc.Chat(ctx, anon, userRequest("hi"))
			So(resp, ShouldBeNil)
			So(abortReason(err), ShouldEqual, ReasonInternal)
			So(errors.Is(err, ErrInternal), ShouldBeTrue)
		})
	})

	Convey("频率限制按网络地址", t, func() {
		ctx := context.Background()
		f := newChatFixture(1)

		_, err := f.svc.Chat(ctx, model.Anonymous("10.0.0.9"), userRequest("hi"))
		So(err, ShouldBeNil)

		// 同一地址即使带了账号也共享窗口
		_, err = f.svc.Chat(ctx, model.Registered("u-9", "10.0.0.9"), userRequest("hi"))
		So(abortReason(err), ShouldEqual, ReasonRateLimited)
		So(errors.Is(err, ErrRateLimited), ShouldBeTrue)
		So(f.inf.count(), ShouldEqual, 1)
	})
}
