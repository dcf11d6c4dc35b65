package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName 配置与日志目录下使用的应用名
const AppName = "polywrite"

// ConfigFileName 默认配置文件名
const ConfigFileName = "config.yaml"

// configRoots 配置目录的候选环境变量，按优先级排列。
// POLYWRITE_CONFIG_HOME 直接作为配置目录，其余变量下再建一层 AppName
var configRoots = []struct {
	env    string
	nested bool
}{
	{env: "POLYWRITE_CONFIG_HOME"},
	{env: "APPDATA", nested: true},
	{env: "XDG_CONFIG_HOME", nested: true},
}

// ConfigDir 配置目录，都未设置时为 ~/.config/polywrite
func ConfigDir() (string, error) {
	for _, root := range configRoots {
		dir := os.Getenv(root.env)
		if dir == "" {
			continue
		}
		if root.nested {
			dir = filepath.Join(dir, AppName)
		}
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigFile 默认配置文件路径
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// LogDir 日志目录，位于配置目录下
func LogDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// DisplayPath 把主目录前缀缩写成 ~，用于帮助文本和日志
func DisplayPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rel, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return filepath.Join("~", rel)
	}
	return path
}
