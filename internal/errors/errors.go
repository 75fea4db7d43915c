package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// 游戏错误 (2000-2999)
	ErrGameStateError         ErrorCode = 2004
	ErrNotYourTurn            ErrorCode = 2010
	ErrAlreadyAnswered        ErrorCode = 2011
	ErrGameFull               ErrorCode = 2012
	ErrInsufficientCharacters ErrorCode = 2013
	ErrMissingDisplayName     ErrorCode = 2014
	ErrGameNotJoinable        ErrorCode = 2015
	ErrCannotStart            ErrorCode = 2016
	ErrAllocationExhausted    ErrorCode = 2100

	// 通信错误 (4000-4999)
	ErrWebSocketSend   ErrorCode = 4001
	ErrWebSocketClosed ErrorCode = 4003
	ErrMessageFormat   ErrorCode = 4007

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrDatabaseDelete  ErrorCode = 5004
	ErrTransaction     ErrorCode = 5005
	ErrDataIntegrity   ErrorCode = 5006

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigValidate ErrorCode = 6002

	// 安全错误 (7000-7999)
	ErrAuthentication ErrorCode = 7000
	ErrTokenExpired   ErrorCode = 7002
	ErrTokenInvalid   ErrorCode = 7003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",
	ErrNotImplemented:   "功能未实现",

	ErrGameStateError:         "游戏状态错误",
	ErrNotYourTurn:            "还没轮到你",
	ErrAlreadyAnswered:        "问题已被回答",
	ErrGameFull:               "房间已满",
	ErrInsufficientCharacters: "角色数量不足",
	ErrMissingDisplayName:     "缺少玩家昵称",
	ErrGameNotJoinable:        "游戏不可加入",
	ErrCannotStart:            "游戏无法开始",
	ErrAllocationExhausted:    "房间码分配失败",

	ErrWebSocketSend:   "WebSocket发送失败",
	ErrWebSocketClosed: "WebSocket连接已关闭",
	ErrMessageFormat:   "消息格式错误",

	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrDatabaseDelete:  "数据库删除失败",
	ErrTransaction:     "事务处理失败",
	ErrDataIntegrity:   "数据完整性错误",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigValidate: "配置验证失败",

	ErrAuthentication: "认证失败",
	ErrTokenExpired:   "令牌已过期",
	ErrTokenInvalid:   "无效的令牌",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`            // 错误码
	Message string       `json:"message"`         // 错误消息
	Details string       `json:"details"`         // 详细信息
	Cause   error        `json:"-"`               // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"` // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 已经是AppError时保留原始错误码
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr = New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As 提取错误链中的AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrUnknown
}

// IsNotFound 是否为资源未找到
func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}

// IsBadRequest 是否为客户端请求错误（参数或游戏状态）
func IsBadRequest(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	return appErr.HTTPStatus() == http.StatusBadRequest
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()

		// 跳过runtime和本包的调用
		if !strings.Contains(frame.Function, "runtime.") &&
			!strings.Contains(frame.Function, "github.com/wfunc/guess-game/internal/errors") {
			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}

		// 只保留前10个栈帧
		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound:
		return http.StatusNotFound
	case e.Code == ErrInvalidParam, e.Code == ErrAlreadyExists, e.Code == ErrMessageFormat:
		return http.StatusBadRequest
	case e.Code == ErrAllocationExhausted:
		return http.StatusServiceUnavailable
	case e.Code >= 2000 && e.Code <= 2099:
		return http.StatusBadRequest
	case e.Code == ErrPermissionDenied:
		return http.StatusForbidden
	case e.Code == ErrTimeout:
		return http.StatusRequestTimeout
	case e.Code >= 7000 && e.Code <= 7003:
		return http.StatusUnauthorized
	case e.Code == ErrDatabaseConnect:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsCritical 判断是否为严重错误
func IsCritical(err error) bool {
	switch GetCode(err) {
	case ErrDatabaseConnect, ErrConfigLoad, ErrDataIntegrity:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// Public 返回可以下发给客户端的副本，不含调用栈和原始错误
func (e *AppError) Public() *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// FromError 将任意错误转换为应用错误，非应用错误归为未知错误
func FromError(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Wrap(err, ErrUnknown)
}
