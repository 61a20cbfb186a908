package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"mentor/internal/budget"
	"mentor/internal/model"
	"mentor/internal/pkg/ctxutil"
	"mentor/internal/service"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"invalid input", fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest, CodeInvalidInput},
		{"rate limited", &service.AbortError{Reason: service.ReasonRateLimited}, http.StatusTooManyRequests, CodeRateLimited},
		{"retrieval down", &service.AbortError{Reason: service.ReasonRetrievalUnavailable}, http.StatusServiceUnavailable, CodeUnavailable},
		{"inference down", &service.AbortError{Reason: service.ReasonInferenceUnavailable}, http.StatusServiceUnavailable, CodeUnavailable},
		{"too large", fmt.Errorf("%w: 3MB", service.ErrPayloadTooLarge), http.StatusRequestEntityTooLarge, CodeTooLarge},
		{"unprocessable", fmt.Errorf("%w: exe", service.ErrUnprocessable), http.StatusUnprocessableEntity, CodeUnprocessable},
		{"internal", &service.AbortError{Reason: service.ReasonInternal}, http.StatusInternalServerError, CodeInternal},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := mapError(tt.err)
			if status != tt.status || resp.Code != tt.code {
				t.Errorf("mapError() = %d/%d, want %d/%d", status, resp.Code, tt.status, tt.code)
			}
		})
	}
}

func TestBudgetError(t *testing.T) {
	Convey("配额耗尽返回详情", t, func() {
		usage := &budget.Usage{Used: 98, Limit: 100, Remaining: 2, ResetTime: "2026-10-20T00:00:00Z"}

		Convey("匿名调用方", func() {
			status, resp := mapError(&service.AbortError{Reason: service.ReasonBudgetExceeded, Budget: usage})
			So(status, ShouldEqual, http.StatusTooManyRequests)
			So(resp.Code, ShouldEqual, CodeBudgetExceeded)

			detail, ok := resp.Detail.(*model.BudgetExceededDetail)
			So(ok, ShouldBeTrue)
			So(detail.Error, ShouldEqual, "daily_limit_exceeded")
			So(detail.TokensUsed, ShouldEqual, 98)
			So(resp.Message, ShouldContainSubstring, "Daily limit of 100 tokens")
		})

		Convey("注册用户", func() {
			_, resp := mapError(&service.AbortError{Reason: service.ReasonBudgetExceeded, Budget: usage, IsMember: true})
			detail := resp.Detail.(*model.BudgetExceededDetail)
			So(detail.Error, ShouldEqual, "monthly_limit_exceeded")
			So(resp.Message, ShouldEqual, "Monthly token limit (100) exceeded. Limit resets next month.")
		})

		Convey("缺少用量时使用默认信息", func() {
			_, resp := mapError(&service.AbortError{Reason: service.ReasonBudgetExceeded})
			So(resp.Message, ShouldEqual, "Token limit exceeded")
			So(resp.Detail, ShouldBeNil)
		})
	})
}

func TestHealthHandler(t *testing.T) {
	Convey("就绪检查", t, func() {
		gin.SetMode(gin.TestMode)
		healthy := func(context.Context) error { return nil }
		broken := func(context.Context) error { return errors.New("connection refused") }

		serve := func(checks map[string]ReadyCheck) (int, map[string]any) {
			engine := gin.New()
			engine.GET("/ready", NewHealthHandler(checks).Ready)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			var body map[string]any
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			return w.Code, body
		}

		Convey("全部可用", func() {
			code, body := serve(map[string]ReadyCheck{"store": healthy})
			So(code, ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "ready")
		})

		Convey("任一不可用返回 503", func() {
			code, body := serve(map[string]ReadyCheck{"store": healthy, "redis": broken})
			So(code, ShouldEqual, http.StatusServiceUnavailable)
			So(body["status"], ShouldEqual, "not_ready")
			checks := body["checks"].(map[string]any)
			So(checks["redis"], ShouldEqual, "connection refused")
			So(checks["store"], ShouldEqual, "ok")
		})
	})
}

func TestUsageHandler(t *testing.T) {
	Convey("配额查询", t, func() {
		gin.SetMode(gin.TestMode)
		mgr := budget.NewManager(budget.Limits{Anonymous: 100, Registered: 80000})
		member := model.Registered("u-1", "10.0.0.1")
		mgr.Debit(member, 40)

		engine := gin.New()
		engine.Use(func(c *gin.Context) {
			if c.GetHeader("X-Test-User") != "" {
				c.Request = c.Request.WithContext(ctxutil.WithIdentity(c.Request.Context(), member))
			}
			c.Next()
		})
		engine.GET("/usage", NewUsageHandler(mgr).Usage)

		get := func(user bool) model.UsageResponse {
			req := httptest.NewRequest(http.MethodGet, "/usage", nil)
			if user {
				req.Header.Set("X-Test-User", "1")
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			var resp model.UsageResponse
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			return resp
		}

		Convey("注册用户", func() {
			resp := get(true)
			So(resp.IsAuthenticated, ShouldBeTrue)
			So(resp.TokensUsed, ShouldEqual, 40)
			So(resp.TokensRemaining, ShouldEqual, 79960)
		})

		Convey("缺少身份时按匿名处理", func() {
			resp := get(false)
			So(resp.IsAuthenticated, ShouldBeFalse)
			So(resp.Class, ShouldEqual, "anonymous")
			So(resp.TokensLimit, ShouldEqual, 100)
		})
	})
}
