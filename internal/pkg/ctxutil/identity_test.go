package ctxutil

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"mentor/internal/model"
)

func TestIdentity(t *testing.T) {
	Convey("context 中的身份", t, func() {
		ctx := context.Background()

		_, ok := GetIdentity(ctx)
		So(ok, ShouldBeFalse)

		Convey("匿名身份没有账号 ID", func() {
			ctx := WithIdentity(ctx, model.Anonymous("198.51.100.7"))
			id, ok := GetIdentity(ctx)
			So(ok, ShouldBeTrue)
			So(id.Key(), ShouldEqual, "anon:198.51.100.7")

			_, ok = GetUserID(ctx)
			So(ok, ShouldBeFalse)
		})

		Convey("注册用户", func() {
			ctx := WithIdentity(ctx, model.Registered("u-9", "198.51.100.7"))
			uid, ok := GetUserID(ctx)
			So(ok, ShouldBeTrue)
			So(uid, ShouldEqual, "u-9")
		})

		Convey("请求 ID", func() {
			So(GetRequestID(WithRequestID(ctx, "req-1")), ShouldEqual, "req-1")
			So(GetRequestID(ctx), ShouldBeEmpty)
		})
	})
}
