package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlag_BeforeInit(t *testing.T) {
	if v != nil {
		t.Skip("配置已初始化")
	}
	assert.Error(t, BindFlag("server.port", 9090))
}

func TestInit_DefaultsAndBindFlag(t *testing.T) {
	require.NoError(t, Init(""))
	assert.Equal(t, 8080, Get().Server.Port)
	assert.Equal(t, "sqlite", Get().Database.Driver)

	require.NoError(t, BindFlag("server.port", 9090))
	require.NoError(t, BindFlag("server.mode", "test"))
	assert.Equal(t, 9090, Get().Server.Port)
	assert.Equal(t, "test", Get().Server.Mode)

	// 非法值不生效，原值保留
	assert.Error(t, BindFlag("server.port", 70000))
	assert.Equal(t, 9090, Get().Server.Port)
	assert.Equal(t, 9090, v.GetInt("server.port"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			Game:   GameConfig{RoomCodeAttempts: 10, MinPlayersToStart: 2},
		}
	}
	assert.NoError(t, valid().Validate())

	c := valid()
	c.Server.Port = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Game.RoomCodeAttempts = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Game.MinPlayersToStart = 1
	assert.Error(t, c.Validate())
}
