package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr    string `yaml:"addr"`
		Port    int    `yaml:"port"`
		Workers uint   `yaml:"workers"`
	} `yaml:"server"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

func defaultConfig() Config {
	var c Config
	c.Server.Addr = "0.0.0.0"
	c.Server.Port = 9001
	c.Server.Workers = 10
	c.Metrics.Addr = ":9102"
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	return c
}

// Load builds the configuration from coded defaults, an optional yaml file
// pointed at by EXCHANGE_CONFIG, and finally env overrides, in that order.
func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("EXCHANGE_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	if v := os.Getenv("EXCHANGE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("EXCHANGE_PORT"); v != "" {
		var n int
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("EXCHANGE_WORKERS"); v != "" {
		var n uint
		_, _ = fmt.Sscan(v, &n)
		if n > 0 {
			c.Server.Workers = n
		}
	}
	if v := os.Getenv("EXCHANGE_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("EXCHANGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EXCHANGE_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	return c
}
