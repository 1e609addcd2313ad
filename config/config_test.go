package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{LockTimeout: 3 * time.Second},
		Auth:     AuthConfig{JWTSecret: "test-secret-key-for-unit-testing"},
		Team:     TeamConfig{MinCapacity: 2, MaxCapacity: 10, DefaultCapacity: 5},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("期望校验通过，实际: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"空密钥":     func(c *Config) { c.Auth.JWTSecret = "" },
		"密钥过短":    func(c *Config) { c.Auth.JWTSecret = "short" },
		"端口越界":    func(c *Config) { c.Server.Port = 70000 },
		"最小容量为0":  func(c *Config) { c.Team.MinCapacity = 0 },
		"最大小于最小":  func(c *Config) { c.Team.MaxCapacity = 1 },
		"默认容量越界":  func(c *Config) { c.Team.DefaultCapacity = 11 },
		"锁超时未配置":  func(c *Config) { c.Database.LockTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: 期望校验失败", name)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BESWD_ENV", "production")
	t.Setenv("BESWD_AUTH_JWT_SECRET", "env-secret-key-0123456789")
	t.Setenv("BESWD_TEAM_MAX_CAPACITY", "6")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret-key-0123456789" {
		t.Errorf("期望环境变量覆盖 jwt_secret，实际=%s", cfg.Auth.JWTSecret)
	}
	if cfg.Team.MaxCapacity != 6 {
		t.Errorf("期望 max_capacity=6，实际=%d", cfg.Team.MaxCapacity)
	}
	if cfg.Database.LockTimeout != 3*time.Second {
		t.Errorf("期望默认 lock_timeout=3s，实际=%v", cfg.Database.LockTimeout)
	}
	if !cfg.IsProduction() {
		t.Error("期望 production 环境")
	}
}
