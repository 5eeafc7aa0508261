// Package config 配置加载顺序：默认值、YAML 文件、.env 文件和进程环境变量
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvAddr       = "BGMATTE_ADDR"
	EnvAggressive = "BGMATTE_AGGRESSIVE"
	EnvTimeout    = "BGMATTE_TIMEOUT"
	EnvLogLevel   = "BGMATTE_LOG_LEVEL"
	EnvCacheBytes = "BGMATTE_CACHE_BYTES"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Matte  MatteConfig  `yaml:"matte"`
	Cache  CacheConfig  `yaml:"cache"`
	Batch  BatchConfig  `yaml:"batch"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MatteConfig struct {
	Aggressive bool          `yaml:"aggressive"`
	Timeout    time.Duration `yaml:"timeout"`
	// MaxDimension 抠图前缩小到最长边不超过该值，0 保持原尺寸
	MaxDimension int `yaml:"max_dimension"`
	// Workers 抠图 pool 的大小，0 取 GOMAXPROCS
	Workers int `yaml:"workers"`
}

type CacheConfig struct {
	MaxBytes int64         `yaml:"max_bytes"`
	TTL      time.Duration `yaml:"ttl"`
}

type BatchConfig struct {
	Schedule    string `yaml:"schedule"`
	InputDir    string `yaml:"input_dir"`
	OutputDir   string `yaml:"output_dir"`
	Concurrency int    `yaml:"concurrency"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  10 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Matte: MatteConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			MaxBytes: 256 << 20,
			TTL:      time.Hour,
		},
		Batch: BatchConfig{
			Schedule:  "@every 5m",
			InputDir:  "./input",
			OutputDir: "./output",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 加载配置，path 为空时跳过 YAML。
// envFiles 用 godotenv 读取，进程里已有的环境变量优先，文件不存在时忽略
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	env, err := readEnv(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnv(files ...string) (map[string]string, error) {
	env := map[string]string{}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		m, err := godotenv.Read(f)
		if err != nil {
			return nil, errors.Wrapf(err, "read env file %s", f)
		}
		for k, v := range m {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "BGMATTE_") {
			env[k] = v
		}
	}
	return env, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if v, ok := env[EnvAddr]; ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := env[EnvAggressive]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvAggressive)
		}
		c.Matte.Aggressive = b
	}
	if v, ok := env[EnvTimeout]; ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvTimeout)
		}
		c.Matte.Timeout = d
	}
	if v, ok := env[EnvLogLevel]; ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := env[EnvCacheBytes]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvCacheBytes)
		}
		c.Cache.MaxBytes = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Matte.Timeout < 0 {
		return errors.Errorf("matte.timeout must not be negative, got %s", c.Matte.Timeout)
	}
	if c.Matte.MaxDimension < 0 {
		return errors.Errorf("matte.max_dimension must not be negative, got %d", c.Matte.MaxDimension)
	}
	if c.Cache.MaxBytes < 0 {
		return errors.Errorf("cache.max_bytes must not be negative, got %d", c.Cache.MaxBytes)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}
