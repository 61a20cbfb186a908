package retrieval

import "strings"

// 上下文类型
const (
	ContextGeneral = "general"
	ContextDomain  = "domain"
)

// DefaultKeywords 默认领域关键词：学校与课程相关
var DefaultKeywords = []string{
	"university", "semester", "course", "syllabus", "exam", "professor",
	"faculty", "department", "admission", "grade", "credits", "class",
	"lecture", "assignment", "student", "campus", "CSE", "PHY",
	"coding skills", "probability", "statistics", "web technology", "database",
}

// Classifier 关键词分类器，任一关键词（不区分大小写）出现在查询中即判为领域问题
type Classifier struct {
	keywords []string
}

// NewClassifier 创建分类器，忽略空关键词
func NewClassifier(keywords []string) *Classifier {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &Classifier{keywords: kw}
}

// Classify 返回 ContextDomain 或 ContextGeneral
func (c *Classifier) Classify(query string) string {
	q := strings.ToLower(query)
	for _, k := range c.keywords {
		if strings.Contains(q, k) {
			return ContextDomain
		}
	}
	return ContextGeneral
}
