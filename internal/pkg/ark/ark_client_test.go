package ark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"mentor/internal/config"
)

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// fakeEmbeddings 按给定顺序返回 data
func fakeEmbeddings(items []embeddingItem, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "doubao-embedding",
			"data":   items,
			"usage":  map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
}

func newTestClient(t *testing.T, baseURL string) *EmbeddingClient {
	c, err := NewEmbeddingClient(&config.EmbeddingConfig{
		APIKey:  "test",
		BaseURL: baseURL,
		Model:   "doubao-embedding",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestEmbedBatch(t *testing.T) {
	Convey("Ark 向量化", t, func() {
		ctx := context.Background()
		var calls int32

		Convey("按 index 还原输入顺序", func() {
			srv := fakeEmbeddings([]embeddingItem{
				{Object: "embedding", Embedding: []float32{2, 2}, Index: 1},
				{Object: "embedding", Embedding: []float32{1, 1}, Index: 0},
			}, &calls)
			defer srv.Close()

			out, err := newTestClient(t, srv.URL).EmbedBatch(ctx, []string{"first", "second"})
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 2)
			So(out[0], ShouldResemble, []float32{1, 1})
			So(out[1], ShouldResemble, []float32{2, 2})
		})

		Convey("index 越界", func() {
			srv := fakeEmbeddings([]embeddingItem{
				{Object: "embedding", Embedding: []float32{1}, Index: 5},
			}, &calls)
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Embed(ctx, "q")
			So(err, ShouldNotBeNil)
		})

		Convey("index 重复", func() {
			srv := fakeEmbeddings([]embeddingItem{
				{Object: "embedding", Embedding: []float32{1}, Index: 0},
				{Object: "embedding", Embedding: []float32{2}, Index: 0},
			}, &calls)
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).EmbedBatch(ctx, []string{"a", "b"})
			So(err, ShouldNotBeNil)
		})

		Convey("数量不符", func() {
			srv := fakeEmbeddings([]embeddingItem{
				{Object: "embedding", Embedding: []float32{1}, Index: 0},
			}, &calls)
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).EmbedBatch(ctx, []string{"a", "b"})
			So(err, ShouldNotBeNil)
		})

		Convey("空输入不发请求", func() {
			out, err := newTestClient(t, "http://127.0.0.1:1").EmbedBatch(ctx, nil)
			So(err, ShouldBeNil)
			So(out, ShouldBeNil)
			So(atomic.LoadInt32(&calls), ShouldEqual, int32(0))
		})
	})

	Convey("缺少配置", t, func() {
		_, err := NewEmbeddingClient(&config.EmbeddingConfig{Model: "m"})
		So(err, ShouldNotBeNil)
		_, err = NewEmbeddingClient(&config.EmbeddingConfig{APIKey: "k"})
		So(err, ShouldNotBeNil)
	})
}
