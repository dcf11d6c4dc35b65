package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHostURL        = "ws://127.0.0.1:7842/bus"
	DefaultDebounce       = 1000 * time.Millisecond
	DefaultMinChars       = 10
	DefaultDialTimeout    = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

type Config struct {
	Host    HostConfig    `yaml:"host"`
	Editor  EditorConfig  `yaml:"editor"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// HostConfig 模型宿主进程的连接配置
type HostConfig struct {
	URL            string            `yaml:"url"`
	DialTimeout    time.Duration     `yaml:"dial_timeout"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	Retry          utils.RetryConfig `yaml:"retry"`
}

// EditorConfig 编辑器补全建议配置
type EditorConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	MinChars int           `yaml:"min_chars"`
	// LineHeight 和 TopOffset 决定建议框相对光标行的屏幕位置
	LineHeight int `yaml:"line_height"`
	TopOffset  int `yaml:"top_offset"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type MetricsConfig struct {
	// Addr 为空时不启动指标服务
	Addr string `yaml:"addr"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Host: HostConfig{
			URL:            DefaultHostURL,
			DialTimeout:    DefaultDialTimeout,
			RequestTimeout: DefaultRequestTimeout,
			Retry:          *utils.DefaultRetryConfig(),
		},
		Editor: EditorConfig{
			Debounce:   DefaultDebounce,
			MinChars:   DefaultMinChars,
			LineHeight: 1,
			TopOffset:  1,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// LoadConfig 从默认路径加载配置
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom 从指定路径加载配置，path 为空时使用默认路径。
// 文件不存在时返回默认配置。
func LoadConfigFrom(path string) (*Config, error) {
	if path == "" {
		p, err := getConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.applyDefaults()

	return config, nil
}

// applyDefaults 补齐文件中缺失或为零的字段
func (c *Config) applyDefaults() {
	def := Default()
	if c.Host.URL == "" {
		c.Host.URL = def.Host.URL
	}
	if c.Host.DialTimeout <= 0 {
		c.Host.DialTimeout = def.Host.DialTimeout
	}
	if c.Host.RequestTimeout <= 0 {
		c.Host.RequestTimeout = def.Host.RequestTimeout
	}
	if c.Host.Retry.InitialDelay <= 0 {
		c.Host.Retry = def.Host.Retry
	}
	if c.Editor.Debounce <= 0 {
		c.Editor.Debounce = def.Editor.Debounce
	}
	if c.Editor.MinChars <= 0 {
		c.Editor.MinChars = def.Editor.MinChars
	}
	if c.Editor.LineHeight <= 0 {
		c.Editor.LineHeight = def.Editor.LineHeight
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Host.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("host.url 无效: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("host.url 必须使用 ws 或 wss: %q", c.Host.URL))
	}
	if c.Editor.Debounce <= 0 {
		errs = append(errs, errors.New("editor.debounce 必须大于 0"))
	}
	if c.Editor.MinChars < 0 {
		errs = append(errs, errors.New("editor.min_chars 不能为负数"))
	}
	if c.Editor.TopOffset < 0 {
		errs = append(errs, errors.New("editor.top_offset 不能为负数"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SaveConfig 保存到默认路径
func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(configPath, config)
}

// SaveConfigTo 保存到指定路径
func SaveConfigTo(configPath string, config *Config) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Path 返回默认配置文件路径
func Path() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	path, err := utils.ConfigFile()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return path, nil
}
