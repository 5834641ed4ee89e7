package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Proxy struct {
		Port    int `yaml:"port"`
		IpcPort int `yaml:"ipcPort"`
	} `yaml:"proxy"`

	Browser      string `yaml:"browser"`
	FlowCapacity int    `yaml:"flowCapacity"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{
		Version:      "1.0.0",
		Browser:      "edge",
		FlowCapacity: 5000,
	}
	c.Sqlite.Dsn = "packetlens.sqlite3"
	c.Sqlite.Prefix = "packetlens_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = "packetlens.log"
	c.Proxy.Port = 8080
	c.Proxy.IpcPort = 8787
	return c
}

// Load 从文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Proxy.Port <= 0 {
		cfg.Proxy.Port = 8080
	}
	if cfg.Proxy.IpcPort <= 0 {
		cfg.Proxy.IpcPort = 8787
	}
	if cfg.FlowCapacity <= 0 {
		cfg.FlowCapacity = 5000
	}
	return cfg, nil
}
