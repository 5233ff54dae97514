package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Hara602/triangleSentry/internal/analysis"
	"github.com/Hara602/triangleSentry/internal/ioc"
)

// EnvPrefix 环境变量前缀，例如 TRIANGLE_HEURISTICS_WINDOW_SIZE
const EnvPrefix = "TRIANGLE"

// Config 扫描器的全部配置
type Config struct {
	Heuristics struct {
		WindowSize     int           `mapstructure:"window_size"`
		MaxSpan        time.Duration `mapstructure:"max_span"`
		ClassThreshold int           `mapstructure:"class_threshold"`
		Workers        int           `mapstructure:"workers"`
	} `mapstructure:"heuristics"`

	IOC struct {
		File string `mapstructure:"file"` // 为空使用内置列表
	} `mapstructure:"ioc"`

	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`

	Output struct {
		Format  string `mapstructure:"format"` // text | json
		NoColor bool   `mapstructure:"no_color"`
	} `mapstructure:"output"`
}

// SetDefaults 在给定 viper 实例上注册默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("heuristics.window_size", analysis.DefaultWindowSize)
	v.SetDefault("heuristics.max_span", analysis.DefaultMaxSpan)
	v.SetDefault("heuristics.class_threshold", analysis.DefaultClassThreshold)
	v.SetDefault("heuristics.workers", 1)
	v.SetDefault("ioc.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("output.format", "text")
	v.SetDefault("output.no_color", false)
}

// New 创建带默认值与环境变量绑定的 viper 实例
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 读取可选的配置文件并解码
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	var errs []error
	if c.Heuristics.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("heuristics.window_size must be >= 1, got %d", c.Heuristics.WindowSize))
	}
	if c.Heuristics.MaxSpan <= 0 {
		errs = append(errs, fmt.Errorf("heuristics.max_span must be positive, got %s", c.Heuristics.MaxSpan))
	}
	if c.Heuristics.ClassThreshold < 1 || c.Heuristics.ClassThreshold > 4 {
		errs = append(errs, fmt.Errorf("heuristics.class_threshold must be within 1..4, got %d", c.Heuristics.ClassThreshold))
	}
	if c.Heuristics.Workers < 1 {
		errs = append(errs, fmt.Errorf("heuristics.workers must be >= 1, got %d", c.Heuristics.Workers))
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("output.format must be text or json, got %q", c.Output.Format))
	}
	return errors.Join(errs...)
}

// HeuristicOptions 转换为引擎参数
func (c *Config) HeuristicOptions() analysis.Options {
	return analysis.Options{
		WindowSize:     c.Heuristics.WindowSize,
		MaxSpan:        c.Heuristics.MaxSpan,
		ClassThreshold: c.Heuristics.ClassThreshold,
		Workers:        c.Heuristics.Workers,
	}
}

// IOCLists 加载 IOC 列表
func (c *Config) IOCLists() (ioc.Lists, error) {
	if c.IOC.File == "" {
		return ioc.DefaultLists(), nil
	}
	return ioc.LoadLists(c.IOC.File)
}
