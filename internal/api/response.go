package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/middleware"
	"go.uber.org/zap"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ListResponse 分页列表
type ListResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, &SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// respondError 按错误码映射HTTP状态，服务端错误记录日志
func respondError(c *gin.Context, log *zap.Logger, err error) {
	appErr := apperrors.FromError(err)
	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("请求处理失败",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(appErr),
			zap.Bool("critical", apperrors.IsCritical(appErr)),
			zap.String("stack", appErr.GetStack()))
	}
	c.JSON(status, apperrors.NewErrorResponse(appErr.Public(), middleware.GetRequestID(c)))
}

func bindError(err error) error {
	return apperrors.Wrap(err, apperrors.ErrInvalidParam, "请求参数错误")
}
