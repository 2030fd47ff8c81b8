package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notemate/internal/middleware"
	"github.com/xxxsen/notemate/internal/pkg/errcode"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, msg := mapError(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	if code == errcode.ErrInternal {
		logger.Error("request failed")
	} else {
		logger.Warn("request rejected", zap.Int("code", code))
	}
	response.Error(c, code, msg)
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		return errcode.ErrUnsupportedFormat, err.Error()
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrExtractionUnavailable):
		return errcode.ErrExtractionUnavailable, "text could not be extracted from this pdf"
	case errors.Is(err, appErr.ErrServiceUnavailable):
		return errcode.ErrAIUnavailable, "ai service unavailable, check GOOGLE_API_KEY, quota and network"
	case errors.Is(err, appErr.ErrParse):
		return errcode.ErrAIParse, "could not interpret the ai response, please retry"
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	default:
		return errcode.ErrInternal, "internal error"
	}
}
