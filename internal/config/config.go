package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/smoothcloud/serverstarter/internal/instance"
	"github.com/smoothcloud/serverstarter/internal/logger"
)

// Config is the top-level TOML structure for the daemon.
//
//	[http]
//	listen = ":8080"
//	base_path = "/api"
//
//	[log]
//	dir = "/var/log/serverstarter"
//
//	history_dsn = "sqlite:///var/lib/serverstarter/history.db"
//
//	[[servers]]
//	id = "lobby-1"
//	name = "lobby"
//	min_memory_mb = 512
//	max_memory_mb = 1024
//	server_software = "paper.jar"
//	port = 25565
type Config struct {
	HTTP       HTTPConfig     `toml:"http" mapstructure:"http"`
	Log        *logger.Config `toml:"log" mapstructure:"log"`
	HistoryDSN string         `toml:"history_dsn" mapstructure:"history_dsn"`
	Servers    []ServerConfig `toml:"servers" mapstructure:"servers"`
}

type HTTPConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// ServerConfig is one [[servers]] block: a descriptor plus the id the
// supervisor keys it under. An empty id falls back to the server name.
type ServerConfig struct {
	ID             string `toml:"id" mapstructure:"id"`
	Name           string `toml:"name" mapstructure:"name"`
	JavaPath       string `toml:"java_path" mapstructure:"java_path"`
	MinMemoryMB    int    `toml:"min_memory_mb" mapstructure:"min_memory_mb"`
	MaxMemoryMB    int    `toml:"max_memory_mb" mapstructure:"max_memory_mb"`
	ServerSoftware string `toml:"server_software" mapstructure:"server_software"`
	Port           int    `toml:"port" mapstructure:"port"`
	Proxy          bool   `toml:"proxy" mapstructure:"proxy"`
}

// Load parses the TOML config at path and validates every server block.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.HTTP.BasePath == "" {
		c.HTTP.BasePath = "/api"
	}
	seen := make(map[string]struct{}, len(c.Servers))
	for i := range c.Servers {
		sc := &c.Servers[i]
		if sc.ID == "" {
			sc.ID = sc.Name
		}
		if _, dup := seen[sc.ID]; dup {
			return nil, fmt.Errorf("duplicate server id %q", sc.ID)
		}
		seen[sc.ID] = struct{}{}
		srv := sc.Server()
		if err := srv.Validate(); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Server converts the config block into the descriptor the supervisor
// consumes.
func (sc *ServerConfig) Server() *instance.Server {
	return &instance.Server{
		Name:           sc.Name,
		JavaPath:       sc.JavaPath,
		MinMemoryMB:    sc.MinMemoryMB,
		MaxMemoryMB:    sc.MaxMemoryMB,
		ServerSoftware: sc.ServerSoftware,
		Port:           sc.Port,
		Proxy:          sc.Proxy,
	}
}
