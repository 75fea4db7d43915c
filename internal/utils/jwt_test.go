package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

// JWTTestSuite JWT工具测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", time.Hour)
}

func (suite *JWTTestSuite) TestNewJWTManager() {
	manager := NewJWTManager("secret", 24*time.Hour)
	suite.NotNil(manager)
	suite.Equal(24*time.Hour, manager.TokenExpiry())
}

// 测试签发与校验
func (suite *JWTTestSuite) TestGenerateAndValidate() {
	token, err := suite.manager.GenerateToken(42, "alice", "https://example.com/a.png")
	suite.NoError(err)
	suite.NotEmpty(token)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.Equal(uint(42), claims.UserID)
	suite.Equal("alice", claims.Username)
	suite.Equal("https://example.com/a.png", claims.AvatarURL)
	suite.Equal("guess-game", claims.Issuer)
}

// 测试无效令牌
func (suite *JWTTestSuite) TestValidateInvalidToken() {
	for _, token := range []string{"", "invalid.token.here", "abc"} {
		_, err := suite.manager.ValidateToken(token)
		suite.ErrorIs(err, ErrInvalidToken, "token=%q", token)
	}
}

// 测试不同密钥签发的令牌
func (suite *JWTTestSuite) TestValidateWrongSecret() {
	other := NewJWTManager("other-secret", time.Hour)
	token, err := other.GenerateToken(1, "bob", "")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试过期令牌
func (suite *JWTTestSuite) TestValidateExpiredToken() {
	expired := NewJWTManager("test-secret-key", -time.Minute)
	token, err := expired.GenerateToken(7, "carol", "")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrExpiredToken)
}

// 测试非HMAC签名算法被拒绝
func (suite *JWTTestSuite) TestValidateNoneAlgorithm() {
	claims := &IdentityClaims{UserID: 9, Username: "mallory"}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(signed)
	suite.ErrorIs(err, ErrInvalidToken)
}

func TestJWTTestSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}

func TestNormalizeRoomCode(t *testing.T) {
	cases := map[string]string{
		"  abcde ": "ABCDE",
		"XyZ23":    "XYZ23",
		"":         "",
	}
	for in, want := range cases {
		if got := NormalizeRoomCode(in); got != want {
			t.Errorf("NormalizeRoomCode(%q) = %q, want %q", in, got, want)
		}
	}
}
