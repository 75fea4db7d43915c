package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/guess-game/internal/config"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/service"
	"github.com/wfunc/guess-game/internal/utils"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type envelope struct {
	Success   bool                `json:"success"`
	Data      json.RawMessage     `json:"data"`
	Error     *apperrors.AppError `json:"error"`
	RequestID string              `json:"request_id"`
}

// APITestSuite 通过 HTTP 接口走完整局游戏
type APITestSuite struct {
	suite.Suite
	db     *gorm.DB
	jwt    *utils.JWTManager
	router *Router
	cancel context.CancelFunc
}

func (suite *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.db = repository.SetupTestDB()
	repository.SeedCharacterSet(suite.T(), suite.db, "cs1", 4)

	hub := ws.NewHub(ws.DefaultOptions(), zap.NewNop())
	var ctx context.Context
	ctx, suite.cancel = context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := &config.Config{}
	cfg.Server.PublicBaseURL = "https://play.example.com/"
	cfg.Game = config.GameConfig{RoomCodeAttempts: 10, MinPlayersToStart: 2}

	repos := repository.NewManager(suite.db)
	coordinator := game.NewCoordinator(&game.CoordinatorConfig{
		Repos:       repos,
		Broadcaster: ws.NewBroadcastDispatcher(hub, nil),
		Logger:      zap.NewNop(),
		Game:        cfg.Game,
		Rand:        rand.New(rand.NewSource(11)),
	})
	suite.jwt = utils.NewJWTManager("test-secret", time.Hour)

	suite.router = NewRouter(&Dependencies{
		DB:          suite.db,
		Coordinator: coordinator,
		Hub:         hub,
		JWT:         suite.jwt,
		Users:       service.NewServices(repos, nil).User,
		Config:      cfg,
		Logger:      zap.NewNop(),
	})
}

func (suite *APITestSuite) TearDownTest() {
	suite.cancel()
	repository.CleanupTestDB(suite.db)
}

func (suite *APITestSuite) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	suite.router.GetEngine().ServeHTTP(w, req)
	return w
}

// call 发送请求并把 data 解到 out
func (suite *APITestSuite) call(method, path string, body interface{}, status int, out interface{}) {
	w := suite.do(method, path, body, nil)
	require.Equal(suite.T(), status, w.Code, w.Body.String())
	var env envelope
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &env))
	require.True(suite.T(), env.Success)
	if out != nil {
		require.NoError(suite.T(), json.Unmarshal(env.Data, out))
	}
}

func (suite *APITestSuite) callError(method, path string, body interface{}, status int, code apperrors.ErrorCode) {
	w := suite.do(method, path, body, nil)
	require.Equal(suite.T(), status, w.Code, w.Body.String())
	var env envelope
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(suite.T(), env.Success)
	require.NotNil(suite.T(), env.Error)
	assert.Equal(suite.T(), code, env.Error.Code)
	assert.Empty(suite.T(), env.Error.Stack)
}

func (suite *APITestSuite) createRoom(host string) *game.JoinResult {
	var res game.JoinResult
	suite.call(http.MethodPost, "/api/v1/games", map[string]interface{}{
		"character_set_id": "cs1",
		"host_username":    host,
		"visibility":       models.VisibilityPublic,
	}, http.StatusCreated, &res)
	return &res
}

func (suite *APITestSuite) TestFullGame() {
	host := suite.createRoom("Alice")
	code := host.Lobby.RoomCode
	alice := host.PlayerID

	var joined game.JoinResult
	suite.call(http.MethodPost, "/api/v1/games/join", map[string]interface{}{
		"room_code": code, "username": "Bob",
	}, http.StatusOK, &joined)
	bob := joined.PlayerID
	assert.Len(suite.T(), joined.Lobby.Players, 2)

	var lobby game.LobbyView
	suite.call(http.MethodPost, "/api/v1/games/"+code+"/ready", map[string]interface{}{
		"player_id": bob, "is_ready": true,
	}, http.StatusOK, &lobby)
	assert.True(suite.T(), lobby.CanStart)

	suite.call(http.MethodPost, "/api/v1/games/"+code+"/start", nil, http.StatusOK, &lobby)
	assert.Equal(suite.T(), models.GameStatusInProgress, lobby.Status)

	var state game.GameStateView
	suite.call(http.MethodGet, "/api/v1/games/"+code+"/state", nil, http.StatusOK, &state)
	require.NotNil(suite.T(), state.Round)
	assert.Equal(suite.T(), alice, state.Round.ActivePlayerID)

	// 不是自己的回合
	suite.callError(http.MethodPost, "/api/v1/games/"+code+"/questions", map[string]interface{}{
		"player_id": bob, "question_text": "Is it red?",
		"category": models.QuestionCategoryTrait, "answer_type": models.AnswerTypeBoolean,
	}, http.StatusBadRequest, apperrors.ErrNotYourTurn)

	var question game.QuestionView
	suite.call(http.MethodPost, "/api/v1/games/"+code+"/questions", map[string]interface{}{
		"player_id": alice, "target_player_id": bob, "question_text": "Is it red?",
		"category": models.QuestionCategoryTrait, "answer_type": models.AnswerTypeBoolean,
	}, http.StatusCreated, &question)

	var answer game.AnswerView
	suite.call(http.MethodPost, "/api/v1/games/"+code+"/answers", map[string]interface{}{
		"player_id": bob, "question_id": question.Question.ID, "answer_value": models.AnswerYes,
	}, http.StatusCreated, &answer)
	assert.Equal(suite.T(), bob, answer.State.Round.ActivePlayerID)

	suite.callError(http.MethodGet, "/api/v1/games/"+code+"/results", nil, http.StatusBadRequest, apperrors.ErrGameStateError)

	var secret game.SecretView
	suite.call(http.MethodGet, fmt.Sprintf("/api/v1/games/%s/players/%d/secret", code, alice), nil, http.StatusOK, &secret)
	assert.Equal(suite.T(), alice, secret.PlayerID)

	var guess game.GuessView
	suite.call(http.MethodPost, "/api/v1/games/"+code+"/guesses", map[string]interface{}{
		"player_id": bob, "target_player_id": alice, "target_character_id": secret.CharacterID,
	}, http.StatusCreated, &guess)
	assert.True(suite.T(), guess.GameOver)

	var result game.GameOverView
	suite.call(http.MethodGet, "/api/v1/games/"+code+"/results", nil, http.StatusOK, &result)
	require.NotNil(suite.T(), result.WinnerID)
	assert.Equal(suite.T(), bob, *result.WinnerID)
	assert.Equal(suite.T(), "Bob", result.WinnerUsername)
}

func (suite *APITestSuite) TestErrorMapping() {
	suite.callError(http.MethodGet, "/api/v1/games/ZZZZZZ/lobby", nil, http.StatusNotFound, apperrors.ErrNotFound)
	suite.callError(http.MethodPost, "/api/v1/games", map[string]interface{}{"host_username": "x"}, http.StatusBadRequest, apperrors.ErrInvalidParam)
	suite.callError(http.MethodPost, "/api/v1/games/join", map[string]interface{}{"username": "x"}, http.StatusBadRequest, apperrors.ErrInvalidParam)
	suite.callError(http.MethodGet, "/api/v1/games/ABC/players/abc/secret", nil, http.StatusBadRequest, apperrors.ErrInvalidParam)
	suite.callError(http.MethodGet, "/api/v1/nothing", nil, http.StatusNotFound, apperrors.ErrNotFound)

	host := suite.createRoom("Alice")
	// 人数不足
	suite.callError(http.MethodPost, "/api/v1/games/"+host.Lobby.RoomCode+"/start", nil, http.StatusBadRequest, apperrors.ErrCannotStart)
}

func (suite *APITestSuite) TestCreateWithToken() {
	// 首次出现的令牌用户会同步到本地用户表
	token, err := suite.jwt.GenerateToken(77, "zoe", "https://img/zoe.png")
	require.NoError(suite.T(), err)

	w := suite.do(http.MethodPost, "/api/v1/games", map[string]interface{}{
		"character_set_id": "cs1",
		"host_user_id":     1,
	}, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())

	var env envelope
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &env))
	var res game.JoinResult
	require.NoError(suite.T(), json.Unmarshal(env.Data, &res))
	require.Len(suite.T(), res.Lobby.Players, 1)
	require.NotNil(suite.T(), res.Lobby.Players[0].UserID)
	assert.Equal(suite.T(), uint(77), *res.Lobby.Players[0].UserID)
	assert.Equal(suite.T(), "zoe", res.Lobby.Players[0].Username)
	assert.Equal(suite.T(), "https://img/zoe.png", res.Lobby.Players[0].AvatarURL)
}

func (suite *APITestSuite) TestListGames() {
	suite.createRoom("Alice")
	suite.createRoom("Bob")

	var list struct {
		Items    []game.LobbyView `json:"items"`
		Total    int64            `json:"total"`
		Page     int              `json:"page"`
		PageSize int              `json:"page_size"`
	}
	suite.call(http.MethodGet, "/api/v1/games?page=1&page_size=1", nil, http.StatusOK, &list)
	assert.Equal(suite.T(), int64(2), list.Total)
	assert.Len(suite.T(), list.Items, 1)
	assert.Equal(suite.T(), 1, list.PageSize)
}

func (suite *APITestSuite) TestQRCode() {
	host := suite.createRoom("Alice")

	w := suite.do(http.MethodGet, "/api/v1/games/"+host.Lobby.RoomCode+"/qr?size=200", nil, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "image/png", w.Header().Get("Content-Type"))
	assert.True(suite.T(), bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))

	suite.callError(http.MethodGet, "/api/v1/games/"+host.Lobby.RoomCode+"/qr?size=5", nil, http.StatusBadRequest, apperrors.ErrInvalidParam)
	suite.callError(http.MethodGet, "/api/v1/games/ZZZZZZ/qr", nil, http.StatusNotFound, apperrors.ErrNotFound)
}

func (suite *APITestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", nil, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(suite.T(), "healthy", body["status"])
	assert.Equal(suite.T(), float64(0), body["connections"])
	assert.NotEmpty(suite.T(), w.Header().Get("X-Request-ID"))
}

func (suite *APITestSuite) TestOpenAPI() {
	w := suite.do(http.MethodGet, "/openapi", nil, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Header().Get("Content-Type"), "application/json")

	var doc struct {
		Swagger string                            `json:"swagger"`
		Info    map[string]string                 `json:"info"`
		Paths   map[string]map[string]interface{} `json:"paths"`
	}
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(suite.T(), "2.0", doc.Swagger)
	assert.Equal(suite.T(), SwaggerInfo.Title, doc.Info["title"])

	// 路由表里的每个接口都有文档
	for _, route := range suite.router.GetEngine().Routes() {
		if !strings.HasPrefix(route.Path, "/api/") {
			continue
		}
		path := ginPathToOpenAPI(route.Path)
		ops, ok := doc.Paths[path]
		if assert.True(suite.T(), ok, "缺少路径 %s", path) {
			assert.Contains(suite.T(), ops, strings.ToLower(route.Method), path)
		}
	}
	assert.Contains(suite.T(), doc.Paths, "/health")
	assert.Contains(suite.T(), doc.Paths, "/ws")

	w = suite.do(http.MethodGet, "/openapi.json", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func ginPathToOpenAPI(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestJoinURL(t *testing.T) {
	h := NewGameHandler(nil, "https://play.example.com/", zap.NewNop())
	assert.Equal(t, "https://play.example.com/join/ABCDEF", h.JoinURL(" abcdef "))
}
