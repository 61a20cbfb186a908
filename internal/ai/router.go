package ai

import (
	"fmt"
	"sort"
	"strings"

	"mentor/internal/config"
)

// Route 任务类别对应的推理目标
type Route struct {
	Category    string
	Target      string // 推理后端模型名
	DisplayName string // 返回给调用方的名称
	MaxTokens   int
}

// Router 任务类别 -> 模型路由，类别集合在启动时固定
type Router struct {
	routes   map[string]Route
	fallback Route
}

// NewRouter 创建路由，fallback 必须是已配置的类别
func NewRouter(routes map[string]config.RouteConfig, fallback string) (*Router, error) {
	r := &Router{routes: make(map[string]Route, len(routes))}
	for name, rc := range routes {
		name = strings.ToLower(strings.TrimSpace(name))
		if rc.Target == "" {
			return nil, fmt.Errorf("route %q has no target", name)
		}
		display := rc.DisplayName
		if display == "" {
			display = rc.Target
		}
		r.routes[name] = Route{
			Category:    name,
			Target:      rc.Target,
			DisplayName: display,
			MaxTokens:   rc.MaxTokens,
		}
	}

	fb, ok := r.routes[strings.ToLower(fallback)]
	if !ok {
		return nil, fmt.Errorf("fallback route %q is not configured", fallback)
	}
	r.fallback = fb
	return r, nil
}

// Route 返回类别对应的路由，未知或为空时回退到默认类别
func (r *Router) Route(category string) Route {
	if rt, ok := r.routes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return rt
	}
	return r.fallback
}

// Default 默认路由
func (r *Router) Default() Route {
	return r.fallback
}

// Categories 已配置的类别，按名称排序
func (r *Router) Categories() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
