package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrEmbeddingUnavailable 向量化服务调用失败
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result 检索增强结果
type Result struct {
	ContextType string
	ContextText string
	Chunks      []Chunk
}

// Citation 第一条片段的来源，无片段时为空
func (r *Result) Citation() string {
	if r.ContextType != ContextDomain || len(r.Chunks) == 0 {
		return ""
	}
	return r.Chunks[0].Source
}

// Augmenter 检索增强器
type Augmenter struct {
	classifier *Classifier
	index      *Index
	embedder   Embedder
	topK       int
}

// NewAugmenter 创建检索增强器，embedder 为 nil 时所有问题按通用处理
func NewAugmenter(classifier *Classifier, index *Index, embedder Embedder, topK int) *Augmenter {
	return &Augmenter{
		classifier: classifier,
		index:      index,
		embedder:   embedder,
		topK:       topK,
	}
}

// Augment 分类查询，领域问题检索 topK 个片段拼成上下文
func (a *Augmenter) Augment(ctx context.Context, query string) (*Result, error) {
	general := &Result{ContextType: ContextGeneral}

	if a.classifier.Classify(query) != ContextDomain {
		return general, nil
	}
	if a.index.Empty() || a.embedder == nil {
		log.Ctx(ctx).Debug().Msg("domain query without index, answering as general")
		return general, nil
	}

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	hits, err := a.index.Search(vec, a.topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return general, nil
	}

	chunks := make([]Chunk, len(hits))
	texts := make([]string, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
		texts[i] = h.Text
	}

	return &Result{
		ContextType: ContextDomain,
		ContextText: strings.Join(texts, "\n"),
		Chunks:      chunks,
	}, nil
}
