package utils

import (
	"os"
	"path/filepath"
)

const appDirName = "thinkchat"

// GetConfigDir 获取跨平台的配置目录
// Windows: %APPDATA%/thinkchat
// Linux/macOS: ~/.config/thinkchat
func GetConfigDir() (string, error) {
	// 检查是否设置了自定义配置目录
	if configHome := os.Getenv("THINKCHAT_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appDirName), nil
	}

	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appDirName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appDirName), nil
}

// ConfigFile 返回配置目录下的文件路径，并确保目录存在
func ConfigFile(name string) (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
