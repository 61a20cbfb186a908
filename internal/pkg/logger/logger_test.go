package logger

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"mentor/internal/config"
)

func TestInit(t *testing.T) {
	Convey("初始化日志", t, func() {
		Convey("非法级别回退到 info", func() {
			err := Init(&config.LogConfig{Level: "chatty", Format: "json", Output: "stdout"})
			So(err, ShouldBeNil)
			So(zerolog.GlobalLevel(), ShouldEqual, zerolog.InfoLevel)
		})

		Convey("文件输出需要路径", func() {
			err := Init(&config.LogConfig{Level: "debug", Output: "file"})
			So(err, ShouldNotBeNil)
		})

		Convey("文件输出", func() {
			path := filepath.Join(t.TempDir(), "mentor.log")
			err := Init(&config.LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path})
			So(err, ShouldBeNil)
			So(zerolog.GlobalLevel(), ShouldEqual, zerolog.DebugLevel)
		})

		Convey("未知输出报错", func() {
			err := Init(&config.LogConfig{Level: "info", Output: "syslog"})
			So(err, ShouldNotBeNil)
		})
	})
}
