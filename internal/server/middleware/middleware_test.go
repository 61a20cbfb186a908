package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"mentor/internal/model"
	"mentor/internal/pkg/ctxutil"
	"mentor/internal/pkg/jwt"
)

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"remote host", "", "203.0.113.7:4242", "203.0.113.7"},
		{"first forwarded hop", "198.51.100.1, 10.0.0.1", "10.0.0.2:80", "198.51.100.1"},
		{"single forwarded", " 198.51.100.9 ", "10.0.0.2:80", "198.51.100.9"},
		{"remote without port", "", "unix-socket", "unix-socket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := ClientAddress(req); got != tt.want {
				t.Errorf("ClientAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestEngine(j *jwt.JWT, seen *model.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Recovery(), RequestID(), Identify(j))
	engine.GET("/open", func(c *gin.Context) {
		*seen, _ = ctxutil.GetIdentity(c.Request.Context())
		c.Status(http.StatusOK)
	})
	engine.GET("/private", RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return engine
}

func TestIdentify(t *testing.T) {
	Convey("身份解析", t, func() {
		j := jwt.NewJWT("secret")
		var seen model.Identity
		engine := newTestEngine(j, &seen)

		serve := func(path, token string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.RemoteAddr = "203.0.113.7:4242"
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			return w
		}

		Convey("无 Token 为匿名", func() {
			So(serve("/open", "").Code, ShouldEqual, http.StatusOK)
			So(seen.IsRegistered(), ShouldBeFalse)
			So(seen.Key(), ShouldEqual, "anon:203.0.113.7")
		})

		Convey("有效 Token 为注册用户，仍保留网络地址", func() {
			tok, _ := j.GenerateToken("u-1", "alice", time.Hour)
			So(serve("/open", tok).Code, ShouldEqual, http.StatusOK)
			So(seen.IsRegistered(), ShouldBeTrue)
			So(seen.AccountID, ShouldEqual, "u-1")
			So(seen.NetworkKey(), ShouldEqual, "203.0.113.7")
		})

		Convey("无效 Token 按匿名处理", func() {
			So(serve("/open", "garbage").Code, ShouldEqual, http.StatusOK)
			So(seen.IsRegistered(), ShouldBeFalse)
		})

		Convey("RequireAuth", func() {
			So(serve("/private", "").Code, ShouldEqual, http.StatusUnauthorized)
			tok, _ := j.GenerateToken("u-1", "alice", time.Hour)
			So(serve("/private", tok).Code, ShouldEqual, http.StatusOK)
		})

		Convey("panic 返回 500", func() {
			w := serve("/panic", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Header().Get(HeaderRequestID), ShouldNotBeEmpty)
		})
	})
}

func TestCORS(t *testing.T) {
	Convey("跨域", t, func() {
		gin.SetMode(gin.TestMode)
		engine := gin.New()
		engine.Use(CORS([]string{"https://app.example.com"}))
		engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		Convey("允许的来源", func() {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Origin", "https://app.example.com")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example.com")
		})

		Convey("其他来源不回写头", func() {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Origin", "https://evil.example.com")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})

		Convey("预检请求", func() {
			req := httptest.NewRequest(http.MethodOptions, "/x", nil)
			req.Header.Set("Origin", "https://app.example.com")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNoContent)
		})
	})
}
