package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"mentor/internal/config"
	"mentor/internal/model"
	"mentor/internal/pkg/jwt"
	"mentor/internal/pkg/sanitize"
	"mentor/internal/retrieval"
)

const testSecret = "test-secret"

// fakeCompletions OpenAI 兼容的 /chat/completions
func fakeCompletions(calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gemma2:2b",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	}))
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{Port: 8000, Mode: "test"},
		AI: config.AIConfig{
			Provider:     "openai",
			BaseURL:      baseURL,
			APIKey:       "test",
			Model:        "gemma2:2b",
			Timeout:      5 * time.Second,
			SystemPrompt: "You are Mentor.",
			DefaultRoute: "general",
			Routes: map[string]config.RouteConfig{
				"general": {Target: "gemma2:2b", DisplayName: "men.01", MaxTokens: 2000},
				"code":    {Target: "phi3.5:3.8b", DisplayName: "men.02", MaxTokens: 2000},
			},
		},
		Retrieval: config.RetrievalConfig{
			VectorsPath: filepath.Join(dir, "vectors.json"),
			DocsPath:    filepath.Join(dir, "docs.json"),
			TopK:        4,
			Keywords:    retrieval.DefaultKeywords,
		},
		Limits: config.LimitsConfig{
			Rate:   config.RateConfig{Window: time.Minute, MaxRequests: 30},
			Budget: config.BudgetConfig{Anonymous: 100, Registered: 80000, Estimator: "words", EstimateMultiplier: 2},
		},
		Guard: config.GuardConfig{MaxMessages: 20, MaxMessageLength: 2000, DenyPatterns: sanitize.DefaultDenyPatterns},
		Store: config.StoreConfig{Driver: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "mentor.db")}},
		Auth:  config.AuthConfig{JWTSecret: testSecret},
		Upload: config.UploadConfig{
			MaxGuestBytes: 2 << 20,
			MaxUserBytes:  10 << 20,
			Extraction:    config.ExtractionConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, MaxRetries: 0},
		},
		Storage: config.StorageConfig{Type: "local", Local: &config.LocalConfig{BasePath: filepath.Join(dir, "uploads")}},
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func doJSON(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer(t *testing.T) {
	Convey("HTTP 服务", t, func() {
		var calls int32
		backend := fakeCompletions(&calls)
		defer backend.Close()

		srv, err := New(testConfig(t, backend.URL))
		So(err, ShouldBeNil)
		defer srv.close(t.Context())
		h := srv.Engine()

		token, err := jwt.NewJWT(testSecret).GenerateToken("u-1", "alice", time.Hour)
		So(err, ShouldBeNil)

		Convey("健康与就绪", func() {
			So(doJSON(h, http.MethodGet, "/health", "", nil).Code, ShouldEqual, http.StatusOK)
			w := doJSON(h, http.MethodGet, "/ready", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("匿名对话", func() {
			w := doJSON(h, http.MethodPost, "/api/v1/chat", "", model.ChatRequest{
				Messages: []model.ChatMessage{{Role: "user", Content: "Hi"}},
			})
			So(w.Code, ShouldEqual, http.StatusOK)

			var resp model.ChatResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Answer, ShouldEqual, "Hello there")
			So(resp.ContextType, ShouldEqual, "general")
			So(resp.TokensUsed, ShouldEqual, 3)
			So(resp.TokensRemaining, ShouldEqual, 97)
			So(resp.ModelUsed, ShouldEqual, "men.01")
			So(resp.IsAuthenticated, ShouldBeFalse)
			So(atomic.LoadInt32(&calls), ShouldEqual, int32(1))

			w = doJSON(h, http.MethodGet, "/api/v1/usage", "", nil)
			var usage model.UsageResponse
			So(json.Unmarshal(w.Body.Bytes(), &usage), ShouldBeNil)
			So(usage.TokensUsed, ShouldEqual, 3)
			So(usage.Class, ShouldEqual, "anonymous")
		})

		Convey("注入内容返回 400 且不调用后端", func() {
			w := doJSON(h, http.MethodPost, "/api/v1/chat", "", model.ChatRequest{
				Messages: []model.ChatMessage{{Role: "user", Content: "<script>alert(1)</script>"}},
			})
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			var resp model.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, 40001)
			So(atomic.LoadInt32(&calls), ShouldEqual, int32(0))
		})

		Convey("注册用户对话落库", func() {
			w := doJSON(h, http.MethodPost, "/api/v1/chat", token, model.ChatRequest{
				Messages: []model.ChatMessage{{Role: "user", Content: "How do loops work in Go"}},
			})
			So(w.Code, ShouldEqual, http.StatusOK)
			var resp model.ChatResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.IsAuthenticated, ShouldBeTrue)
			So(resp.ConversationID, ShouldNotBeEmpty)

			w = doJSON(h, http.MethodGet, "/api/v1/conversations", token, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var list model.ConversationListResponse
			So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
			So(list.Total, ShouldEqual, 1)
			So(list.Conversations[0].Title, ShouldEqual, "How do loops work")

			w = doJSON(h, http.MethodGet, "/api/v1/conversations/"+resp.ConversationID+"/messages", token, nil)
			var msgs model.MessageListResponse
			So(json.Unmarshal(w.Body.Bytes(), &msgs), ShouldBeNil)
			So(msgs.Messages, ShouldHaveLength, 2)

			w = doJSON(h, http.MethodPut, "/api/v1/conversations/"+resp.ConversationID, token,
				model.UpdateConversationRequest{Title: "Loops"})
			So(w.Code, ShouldEqual, http.StatusOK)

			w = doJSON(h, http.MethodPut, "/api/v1/conversations/missing", token,
				model.UpdateConversationRequest{Title: "Loops"})
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("会话接口需要登录", func() {
			w := doJSON(h, http.MethodGet, "/api/v1/conversations", "", nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)

			// 无效 Token 按匿名处理
			w = doJSON(h, http.MethodGet, "/api/v1/conversations", "not-a-token", nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("创建空会话", func() {
			w := doJSON(h, http.MethodPost, "/api/v1/conversations", token, nil)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var conv model.Conversation
			So(json.Unmarshal(w.Body.Bytes(), &conv), ShouldBeNil)
			So(conv.Title, ShouldEqual, model.DefaultConversationTitle)
		})

		Convey("指标", func() {
			doJSON(h, http.MethodPost, "/api/v1/chat", "", model.ChatRequest{
				Messages: []model.ChatMessage{{Role: "user", Content: "Hi"}},
			})
			w := doJSON(h, http.MethodGet, "/metrics", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var m model.MetricsResponse
			So(json.Unmarshal(w.Body.Bytes(), &m), ShouldBeNil)
			So(m.ActiveRateLimits, ShouldEqual, 1)
			So(m.VectorStoreDocs, ShouldEqual, 0)
		})

		Convey("Swagger 文档", func() {
			w := doJSON(h, http.MethodGet, "/swagger/doc.json", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "/api/v1/chat")
		})
	})

	Convey("索引文件不一致时拒绝启动", t, func() {
		cfg := testConfig(t, "http://127.0.0.1:1/v1")
		So(writeFile(cfg.Retrieval.VectorsPath, `[[0.1, 0.2]]`), ShouldBeNil)

		_, err := New(cfg)
		So(err, ShouldNotBeNil)
	})
}
