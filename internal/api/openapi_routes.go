package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
)

// SwaggerInfo 接口文档元信息，版本号在启动时覆盖
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	BasePath:         "/",
	Title:            "Guess Game API",
	Description:      "猜角色派对游戏接口",
	InfoInstanceName: swag.Name,
	SwaggerTemplate:  openapiTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// registerOpenAPIRoutes 提供 /openapi 文档，swagger UI 也从这里取数据
func registerOpenAPIRoutes(engine *gin.Engine) {
	engine.GET("/openapi", serveOpenAPI)
	engine.GET("/openapi.json", serveOpenAPI)
}

func serveOpenAPI(c *gin.Context) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
}

const openapiTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{.Description}}",
    "version": "{{.Version}}"
  },
  "basePath": "{{.BasePath}}",
  "schemes": ["http", "https"],
  "consumes": ["application/json"],
  "produces": ["application/json"],
  "securityDefinitions": {
    "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
  },
  "parameters": {
    "code": {"name": "code", "in": "path", "required": true, "type": "string", "description": "5位房间码"},
    "playerId": {"name": "playerId", "in": "path", "required": true, "type": "integer"},
    "body": {"name": "body", "in": "body", "required": true, "schema": {"type": "object"}}
  },
  "paths": {
    "/health": {
      "get": {"tags": ["system"], "summary": "健康检查", "responses": {"200": {"description": "服务正常"}, "503": {"description": "数据库不可用"}}}
    },
    "/ws": {
      "get": {"tags": ["push"], "summary": "WebSocket 推送通道", "parameters": [{"name": "token", "in": "query", "type": "string"}], "responses": {"101": {"description": "协议升级"}}}
    },
    "/api/v1/games": {
      "post": {"tags": ["lobby"], "summary": "创建房间", "parameters": [{"$ref": "#/parameters/body"}], "responses": {"201": {"description": "房主与大厅"}, "400": {"description": "参数错误"}}},
      "get": {"tags": ["lobby"], "summary": "公开大厅列表", "parameters": [{"name": "page", "in": "query", "type": "integer"}, {"name": "page_size", "in": "query", "type": "integer"}], "responses": {"200": {"description": "分页列表"}}}
    },
    "/api/v1/games/join": {
      "post": {"tags": ["lobby"], "summary": "加入房间", "parameters": [{"$ref": "#/parameters/body"}], "responses": {"200": {"description": "玩家与大厅"}, "404": {"description": "房间不存在"}}}
    },
    "/api/v1/games/{code}/lobby": {
      "get": {"tags": ["lobby"], "summary": "大厅详情", "parameters": [{"$ref": "#/parameters/code"}], "responses": {"200": {"description": "大厅"}}}
    },
    "/api/v1/games/{code}/start": {
      "post": {"tags": ["lobby"], "summary": "开始游戏", "parameters": [{"$ref": "#/parameters/code"}], "responses": {"200": {"description": "对局状态"}}}
    },
    "/api/v1/games/{code}/ready": {
      "post": {"tags": ["lobby"], "summary": "设置准备状态", "parameters": [{"$ref": "#/parameters/code"}, {"$ref": "#/parameters/body"}], "responses": {"200": {"description": "大厅"}}}
    },
    "/api/v1/games/{code}/leave": {
      "post": {"tags": ["lobby"], "summary": "离开房间", "parameters": [{"$ref": "#/parameters/code"}, {"$ref": "#/parameters/body"}], "responses": {"200": {"description": "对局状态"}}}
    },
    "/api/v1/games/{code}/questions": {
      "post": {"tags": ["round"], "summary": "提问", "parameters": [{"$ref": "#/parameters/code"}, {"$ref": "#/parameters/body"}], "responses": {"201": {"description": "问题与状态"}}}
    },
    "/api/v1/games/{code}/answers": {
      "post": {"tags": ["round"], "summary": "回答", "parameters": [{"$ref": "#/parameters/code"}, {"$ref": "#/parameters/body"}], "responses": {"201": {"description": "回答与状态"}}}
    },
    "/api/v1/games/{code}/guesses": {
      "post": {"tags": ["round"], "summary": "猜角色", "parameters": [{"$ref": "#/parameters/code"}, {"$ref": "#/parameters/body"}], "responses": {"201": {"description": "猜测结果"}}}
    },
    "/api/v1/games/{code}/state": {
      "get": {"tags": ["round"], "summary": "对局状态", "parameters": [{"$ref": "#/parameters/code"}], "responses": {"200": {"description": "对局状态"}}}
    },
    "/api/v1/games/{code}/results": {
      "get": {"tags": ["round"], "summary": "结算结果", "parameters": [{"$ref": "#/parameters/code"}], "responses": {"200": {"description": "排名与胜者"}}}
    },
    "/api/v1/games/{code}/players/{playerId}/secret": {
      "get": {"tags": ["round"], "summary": "查看自己的秘密角色", "parameters": [{"$ref": "#/parameters/code"}, {"$ref": "#/parameters/playerId"}], "security": [{"BearerAuth": []}], "responses": {"200": {"description": "秘密角色"}, "403": {"description": "只能查看自己的"}}}
    },
    "/api/v1/games/{code}/qr": {
      "get": {"tags": ["lobby"], "summary": "加入二维码", "produces": ["image/png"], "parameters": [{"$ref": "#/parameters/code"}], "responses": {"200": {"description": "PNG 图片"}}}
    }
  }
}`
