package budget

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-ego/gse"
)

// Counter 估算文本的 token 数
type Counter interface {
	Count(text string) int
}

// WordCounter 按空白切分计数
type WordCounter struct{}

// Count 空白分隔的词数
func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// SegmentCounter 使用 gse 分词计数，适用于没有空格分隔的文本
type SegmentCounter struct {
	cut func(text string) []string
}

// NewSegmentCounter 加载 gse 默认词典
func NewSegmentCounter() (*SegmentCounter, error) {
	seg, err := gse.New()
	if err != nil {
		return nil, fmt.Errorf("load gse dictionary: %w", err)
	}
	return &SegmentCounter{
		cut: func(text string) []string { return seg.Cut(text, false) },
	}, nil
}

// Count 非空白、非标点的分词数
func (c *SegmentCounter) Count(text string) int {
	n := 0
	for _, tok := range c.cut(text) {
		if isWordToken(tok) {
			n++
		}
	}
	return n
}

func isWordToken(tok string) bool {
	for _, r := range tok {
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return true
		}
	}
	return false
}

// NewCounter 按名称创建计数器：words（默认）或 segments
func NewCounter(name string) (Counter, error) {
	switch name {
	case "", "words":
		return WordCounter{}, nil
	case "segments":
		c, err := NewSegmentCounter()
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown token estimator: %s", name)
	}
}
