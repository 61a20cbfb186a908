package service

import (
	"errors"
	"fmt"

	"mentor/internal/budget"
)

// 错误分类，handler 通过 errors.Is 映射为 HTTP 状态码
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRateLimited         = errors.New("rate limited")
	ErrBudgetExceeded      = errors.New("budget exceeded")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrPayloadTooLarge     = errors.New("payload too large")
	ErrUnprocessable       = errors.New("unprocessable content")
	ErrInternal            = errors.New("internal error")
)

// 中止原因
const (
	ReasonInvalidInput         = "invalid_input"
	ReasonRateLimited          = "rate_limited"
	ReasonBudgetExceeded       = "budget_exceeded"
	ReasonRetrievalUnavailable = "retrieval_unavailable"
	ReasonInferenceUnavailable = "inference_unavailable"
	ReasonInternal             = "internal_error"
)

var reasonKinds = map[string]error{
	ReasonInvalidInput:         ErrInvalidInput,
	ReasonRateLimited:          ErrRateLimited,
	ReasonBudgetExceeded:       ErrBudgetExceeded,
	ReasonRetrievalUnavailable: ErrUpstreamUnavailable,
	ReasonInferenceUnavailable: ErrUpstreamUnavailable,
	ReasonInternal:             ErrInternal,
}

// AbortError 对话流程中止
type AbortError struct {
	Reason   string
	Err      error         // 原始错误，只用于日志
	Budget   *budget.Usage // budget_exceeded 时携带
	IsMember bool          // budget_exceeded 时区分注册用户
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Unwrap 同时暴露错误分类与原始错误
func (e *AbortError) Unwrap() []error {
	errs := []error{reasonKinds[e.Reason]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func abort(reason string, err error) *AbortError {
	return &AbortError{Reason: reason, Err: err}
}
