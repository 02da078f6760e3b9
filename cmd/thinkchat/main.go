package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Zacy-Sokach/ThinkChat/internal/config"
	"github.com/Zacy-Sokach/ThinkChat/internal/engine"
	"github.com/Zacy-Sokach/ThinkChat/internal/ollama"
	"github.com/Zacy-Sokach/ThinkChat/internal/tui"
	"github.com/Zacy-Sokach/ThinkChat/internal/utils"
	"github.com/Zacy-Sokach/ThinkChat/internal/worker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "thinkchat",
	Short: "Chat with a local reasoning model",
	Long: `ThinkChat streams a local model's reasoning and answer into the terminal.

In the chat:
  /load            download and load the model
  /reset           clear the conversation
  /stop            stop the current answer (or press Esc)
  /think           show or fold the reasoning
  /export <file>   save the conversation as markdown`,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().String("model", "", "model name (overrides config)")
	rootCmd.PersistentFlags().String("host", "", "Ollama address (overrides config)")
	rootCmd.AddCommand(configCmd, doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig 读取配置并应用命令行参数
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Model = model
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.OllamaHost = host
	}
	return cfg, nil
}

// openLog 日志写入配置目录，终端留给界面
func openLog(cfg *config.Config) (*slog.Logger, func(), error) {
	path, err := utils.ConfigFile("thinkchat.log")
	if err != nil {
		return nil, nil, fmt.Errorf("获取日志路径失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return logger, func() { f.Close() }, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, closeLog, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	if !isTerminal() {
		return fmt.Errorf("ThinkChat 需要在交互式终端中运行")
	}

	logger.Info("starting", "version", Version, "model", cfg.Model, "host", cfg.OllamaHost)

	client := ollama.New(cfg.OllamaHost)
	eng := engine.New(client, cfg.Model,
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithThink(cfg.ThinkEnabled()),
	)
	conn := worker.Start(context.Background(), eng, worker.WithLogger(logger))

	tui.Version = Version
	model := tui.New(conn, tui.Options{
		Model:       cfg.Model,
		SaveHistory: cfg.SaveHistory,
		MaxTurns:    cfg.MaxTurnsShown,
		Logger:      logger.With("component", "tui"),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if m, ok := final.(tui.Model); ok {
		m.Close()
	} else {
		conn.Close()
	}
	if err != nil {
		return fmt.Errorf("程序运行错误: %w", err)
	}
	return nil
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
