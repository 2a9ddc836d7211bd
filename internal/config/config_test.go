package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoMigrateEnabled(t *testing.T) {
	cfg := &Config{}

	// debug 模式默认迁移
	cfg.Server.Mode = "debug"
	assert.True(t, cfg.AutoMigrateEnabled())

	// release 模式默认跳过
	cfg.Server.Mode = "release"
	assert.False(t, cfg.AutoMigrateEnabled())

	// -migrate 在 release 下强制开启
	cfg.ForceMigrate = true
	assert.True(t, cfg.AutoMigrateEnabled())
}
