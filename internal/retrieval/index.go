// Package retrieval 实现领域问题的检索增强
package retrieval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
)

var (
	// ErrIndexMismatch 向量与文档数量或维度不一致，启动即失败
	ErrIndexMismatch = errors.New("vector index mismatch")
	// ErrDimensionMismatch 查询向量维度与索引不一致
	ErrDimensionMismatch = errors.New("query dimension does not match index")
)

// Chunk 检索返回的文本片段
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Index 启动时加载的只读向量索引，支持并发读取
type Index struct {
	vectors [][]float32
	docs    []Chunk
	dim     int
}

// NewIndex 用内存数据构建索引，校验数量与维度
func NewIndex(vectors [][]float32, docs []Chunk) (*Index, error) {
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: %d vectors, %d docs", ErrIndexMismatch, len(vectors), len(docs))
	}

	dim := 0
	for i, v := range vectors {
		if i == 0 {
			dim = len(v)
			if dim == 0 {
				return nil, fmt.Errorf("%w: vector 0 is empty", ErrIndexMismatch)
			}
			continue
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrIndexMismatch, i, len(v), dim)
		}
	}

	return &Index{vectors: vectors, docs: docs, dim: dim}, nil
}

// LoadIndex 从 vectors.json 与 docs.json 加载索引
//
// 两个文件都不存在时返回空索引并记录警告；只缺其一或内容不一致返回错误。
func LoadIndex(vectorsPath, docsPath string) (*Index, error) {
	vecRaw, vecErr := os.ReadFile(vectorsPath)
	docRaw, docErr := os.ReadFile(docsPath)

	if errors.Is(vecErr, fs.ErrNotExist) && errors.Is(docErr, fs.ErrNotExist) {
		log.Warn().
			Str("vectors_path", vectorsPath).
			Str("docs_path", docsPath).
			Msg("vector index not found, domain retrieval disabled")
		return &Index{}, nil
	}
	if vecErr != nil {
		return nil, fmt.Errorf("read vectors: %w", vecErr)
	}
	if docErr != nil {
		return nil, fmt.Errorf("read docs: %w", docErr)
	}

	var vectors [][]float32
	if err := json.Unmarshal(vecRaw, &vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}
	var docs []Chunk
	if err := json.Unmarshal(docRaw, &docs); err != nil {
		return nil, fmt.Errorf("decode docs: %w", err)
	}

	idx, err := NewIndex(vectors, docs)
	if err != nil {
		return nil, err
	}

	log.Info().Int("docs", idx.Len()).Int("dimension", idx.Dim()).Msg("vector index loaded")
	return idx, nil
}

// Len 文档数
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.docs)
}

// Dim 向量维度，空索引为 0
func (idx *Index) Dim() int {
	if idx == nil {
		return 0
	}
	return idx.dim
}

// Empty 是否为空索引
func (idx *Index) Empty() bool {
	return idx == nil || len(idx.docs) == 0
}

// Hit 带距离的检索结果
type Hit struct {
	Chunk
	Distance float32 `json:"distance"`
}

// Search 按 L2 距离返回最近的 k 个片段，距离升序
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if idx.Empty() || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), idx.dim)
	}

	hits := make([]Hit, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = Hit{Chunk: idx.docs[i], Distance: squaredL2(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
