package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zacy-Sokach/ThinkChat/internal/config"
)

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	// cobra 的参数值跨 Execute 保留
	require.NoError(t, rootCmd.PersistentFlags().Set("model", ""))
	require.NoError(t, rootCmd.PersistentFlags().Set("host", ""))
	require.NoError(t, configCmd.Flags().Set("save", "false"))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestConfigCommandAppliesFlags(t *testing.T) {
	t.Setenv("THINKCHAT_CONFIG_HOME", t.TempDir())

	out := runRoot(t, "config", "--model", "llama3.2", "--host", "http://gpu:11434")
	assert.Contains(t, out, "model: llama3.2")
	assert.Contains(t, out, "ollama_host: http://gpu:11434")
	assert.NotContains(t, out, "# saved")

	// 没有 --save 时不写文件
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultModel, cfg.Model)
}

func TestConfigCommandSave(t *testing.T) {
	t.Setenv("THINKCHAT_CONFIG_HOME", t.TempDir())

	out := runRoot(t, "config", "--model", "llama3.2", "--save")
	assert.Contains(t, out, "# saved")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", cfg.Model)
}
