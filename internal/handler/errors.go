package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mentor/internal/model"
	"mentor/internal/pkg/ctxutil"
	"mentor/internal/service"
)

// 业务错误码
const (
	CodeInvalidInput   = 40001
	CodeUnauthorized   = 40101
	CodeNotFound       = 40401
	CodeTooLarge       = 41301
	CodeUnprocessable  = 42201
	CodeRateLimited    = 42901
	CodeBudgetExceeded = 42902
	CodeInternal       = 50001
	CodeUnavailable    = 50301
)

// writeError 将服务层错误映射为 HTTP 状态码与错误码，内部错误细节只写日志
func writeError(c *gin.Context, err error) {
	status, resp := mapError(err)
	logger := log.Ctx(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Info().Err(err).Int("status", status).Msg("request rejected")
	}
	c.AbortWithStatusJSON(status, resp)
}

func mapError(err error) (int, model.ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, model.ErrorResponse{Code: CodeInvalidInput, Message: "Invalid input detected"}
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, model.ErrorResponse{Code: CodeRateLimited, Message: "Rate limit exceeded. Please try again later."}
	case errors.Is(err, service.ErrBudgetExceeded):
		resp := model.ErrorResponse{Code: CodeBudgetExceeded, Message: "Token limit exceeded"}
		var ae *service.AbortError
		if errors.As(err, &ae) {
			if detail := service.BudgetDetail(ae); detail != nil {
				resp.Message = detail.Message
				resp.Detail = detail
			}
		}
		return http.StatusTooManyRequests, resp
	case errors.Is(err, service.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, model.ErrorResponse{Code: CodeTooLarge, Message: "File too large"}
	case errors.Is(err, service.ErrUnprocessable):
		return http.StatusUnprocessableEntity, model.ErrorResponse{Code: CodeUnprocessable, Message: "File could not be processed"}
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, model.ErrorResponse{Code: CodeUnavailable, Message: "AI service temporarily unavailable"}
	default:
		return http.StatusInternalServerError, model.ErrorResponse{Code: CodeInternal, Message: "Internal server error"}
	}
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{
		Code:    CodeInvalidInput,
		Message: "Invalid request body",
		Detail:  err.Error(),
	})
}

// identity 由 Identify 中间件注入，缺失时按匿名处理
func identity(c *gin.Context) model.Identity {
	if id, ok := ctxutil.GetIdentity(c.Request.Context()); ok {
		return id
	}
	return model.Anonymous(c.ClientIP())
}
