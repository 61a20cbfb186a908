// Package sanitize 校验并清洗聊天输入
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mentor/internal/model"
)

// DefaultDenyPatterns 内置拒绝规则，匹配时不区分大小写
var DefaultDenyPatterns = []string{
	`<script.*?>.*?</script>`,
	`javascript:`,
	`data:text/html`,
	`vbscript:`,
	`\bon(load|unload|error|abort|click|dblclick|contextmenu|mouse[a-z]*|pointer[a-z]*|touch[a-z]*|key[a-z]*|focus[a-z]*|blur|submit|reset|change|input|select|resize|scroll|drag[a-z]*|drop|animation[a-z]*|transition[a-z]*|toggle|begin|end)\s*=`,
	`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`,
}

var (
	// ErrMessageCount 消息条数不合法
	ErrMessageCount = errors.New("invalid message count")
	// ErrMessageTooLong 单条消息过长
	ErrMessageTooLong = errors.New("message too long")
	// ErrInvalidRole 角色不合法
	ErrInvalidRole = errors.New("invalid message role")
	// ErrBlockedContent 命中拒绝规则
	ErrBlockedContent = errors.New("invalid input detected")
)

var stripChars = regexp.MustCompile(`[<>"']`)

var validRoles = map[string]bool{
	model.RoleUser:      true,
	model.RoleAssistant: true,
	model.RoleSystem:    true,
}

// Guard 输入校验器，规则在创建时编译，之后只读
type Guard struct {
	maxMessages int
	maxLength   int
	deny        []*regexp.Regexp
}

// NewGuard 编译拒绝规则，patterns 为空时使用 DefaultDenyPatterns
func NewGuard(maxMessages, maxLength int, patterns []string) (*Guard, error) {
	if len(patterns) == 0 {
		patterns = DefaultDenyPatterns
	}

	deny := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?is)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile deny pattern %q: %w", p, err)
		}
		deny = append(deny, re)
	}

	return &Guard{
		maxMessages: maxMessages,
		maxLength:   maxLength,
		deny:        deny,
	}, nil
}

// Blocked 文本是否命中拒绝规则
func (g *Guard) Blocked(text string) bool {
	for _, re := range g.deny {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Clean 检查拒绝规则后去掉尖括号与引号并去除首尾空白
func (g *Guard) Clean(text string) (string, error) {
	if g.Blocked(text) {
		return "", ErrBlockedContent
	}
	return stripChars.ReplaceAllString(strings.TrimSpace(text), ""), nil
}

// Validate 校验消息列表，返回清洗后的副本
func (g *Guard) Validate(messages []model.ChatMessage) ([]model.ChatMessage, error) {
	if len(messages) == 0 || len(messages) > g.maxMessages {
		return nil, ErrMessageCount
	}

	out := make([]model.ChatMessage, 0, len(messages))
	for i, msg := range messages {
		content, err := g.Clean(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if len([]rune(content)) > g.maxLength {
			return nil, fmt.Errorf("message %d: %w", i, ErrMessageTooLong)
		}
		if !validRoles[msg.Role] {
			return nil, fmt.Errorf("message %d: %w", i, ErrInvalidRole)
		}
		out = append(out, model.ChatMessage{Role: msg.Role, Content: content})
	}
	return out, nil
}
