package web

import (
	"UberFareAnalysis/src/processor"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 统一的错误响应
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: GetRequestID(c),
	})
}

// statusOf 业务错误到HTTP状态码的映射
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, processor.ErrNoData):
		return http.StatusServiceUnavailable, "no_data"
	case errors.Is(err, processor.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, processor.ErrUnknownCategory):
		return http.StatusBadRequest, "unknown_category"
	case errors.Is(err, processor.ErrEmptyResult):
		return http.StatusOK, "empty_result"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondErr(c *gin.Context, err error) {
	status, code := statusOf(err)
	respondError(c, status, code, err.Error())
}
