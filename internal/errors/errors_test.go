package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	// 带详情
	err = New(ErrNotFound, "房间不存在")
	suite.Equal(ErrNotFound, err.Code)
	suite.Equal("资源未找到", err.Message)
	suite.Equal("房间不存在", err.Details)

	// 多个详情
	err = New(ErrGameFull, "Game is full", "max=2")
	suite.Equal("Game is full; max=2", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrNotFound, "room %s not found", "ABCDE")
	suite.Equal(ErrNotFound, err.Code)
	suite.Equal("room ABCDE not found", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError时保留原始错误码
	appErr := New(ErrNotFound, "player")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

// 测试格式化错误包装
func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("连接超时")
	wrappedErr := Wrapf(originalErr, ErrDatabaseConnect, "数据库 %s 连接失败", "sqlite")
	suite.Equal(ErrDatabaseConnect, wrappedErr.Code)
	suite.Equal("数据库 sqlite 连接失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrNotYourTurn)
	suite.True(Is(err, ErrNotYourTurn))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrNotYourTurn))
	suite.False(Is(errors.New("标准错误"), ErrUnknown))

	// fmt包装后仍可识别
	wrapped := fmt.Errorf("ask question: %w", err)
	suite.True(Is(wrapped, ErrNotYourTurn))
	suite.True(IsBadRequest(wrapped))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrTokenExpired, GetCode(New(ErrTokenExpired)))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{
		Code:    ErrNotFound,
		Message: "资源未找到",
	}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "room ABCDE"
	suite.Equal("[1002] 资源未找到: room ABCDE", err.Error())
}

// 测试Unwrap
func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrUnknown)
	suite.Equal(originalErr, wrappedErr.Unwrap())
	suite.True(errors.Is(wrappedErr, originalErr))

	suite.Nil(New(ErrUnknown).Unwrap())
}

// 测试WithCause
func (suite *ErrorsTestSuite) TestWithCause() {
	cause := errors.New("SQL语法错误")

	err := New(ErrDatabaseQuery)
	err.WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("SQL语法错误", err.Details)

	// 已有Details时保留
	err2 := New(ErrDatabaseQuery, "查询失败").WithCause(cause)
	suite.Equal("查询失败", err2.Details)
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrNotFound, 404},
		{ErrGameStateError, 400},
		{ErrNotYourTurn, 400},
		{ErrAlreadyAnswered, 400},
		{ErrGameFull, 400},
		{ErrInsufficientCharacters, 400},
		{ErrMissingDisplayName, 400},
		{ErrGameNotJoinable, 400},
		{ErrCannotStart, 400},
		{ErrAllocationExhausted, 503},
		{ErrPermissionDenied, 403},
		{ErrTimeout, 408},
		{ErrAuthentication, 401},
		{ErrDatabaseConnect, 503},
		{ErrDataIntegrity, 500},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	for _, code := range []ErrorCode{ErrDatabaseConnect, ErrConfigLoad, ErrDataIntegrity} {
		suite.True(IsCritical(New(code)), "错误码 %d 应该是严重错误", code)
	}
	for _, code := range []ErrorCode{ErrInvalidParam, ErrNotFound, ErrGameFull} {
		suite.False(IsCritical(New(code)), "错误码 %d 不应该是严重错误", code)
	}
	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.Greater(len(err.Stack), 0)
	suite.NotEmpty(err.GetStack())
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrNotFound, "room")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

// 测试对外错误不带调用栈
func (suite *ErrorsTestSuite) TestPublic() {
	err := Wrap(errors.New("disk full"), ErrDatabaseInsert, "写入失败")
	public := err.Public()

	suite.Equal(err.Code, public.Code)
	suite.Equal(err.Details, public.Details)
	suite.Empty(public.Stack)
	suite.Nil(public.Cause)

	suite.Equal(err, FromError(err))
	plain := FromError(errors.New("boom"))
	suite.Equal(ErrUnknown, plain.Code)
	suite.Equal("boom", plain.Details)
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

// 测试游戏相关错误
func (suite *ErrorsTestSuite) TestGameErrors() {
	gameErrors := map[ErrorCode]string{
		ErrGameStateError:         "游戏状态错误",
		ErrNotYourTurn:            "还没轮到你",
		ErrAlreadyAnswered:        "问题已被回答",
		ErrGameFull:               "房间已满",
		ErrInsufficientCharacters: "角色数量不足",
		ErrMissingDisplayName:     "缺少玩家昵称",
		ErrGameNotJoinable:        "游戏不可加入",
		ErrCannotStart:            "游戏无法开始",
		ErrAllocationExhausted:    "房间码分配失败",
	}

	for code, expectedMsg := range gameErrors {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
