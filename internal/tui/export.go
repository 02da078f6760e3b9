package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
)

// ExportMarkdown 把对话整理成 markdown，思考过程以引用块保留
func ExportMarkdown(model string, turns []protocol.ChatTurn) string {
	var sb strings.Builder
	sb.WriteString("# ThinkChat")
	if model != "" {
		sb.WriteString(" · " + model)
	}
	sb.WriteString("\n\n")

	for _, turn := range turns {
		switch turn.Role {
		case protocol.RoleUser:
			sb.WriteString("## 用户\n\n")
			sb.WriteString(strings.TrimSpace(turn.Content))
			sb.WriteString("\n\n")
		case protocol.RoleAssistant:
			sb.WriteString("## 助手\n\n")
			if reasoning := strings.TrimSpace(turn.Reasoning()); reasoning != "" {
				for _, line := range strings.Split(reasoning, "\n") {
					sb.WriteString("> " + line + "\n")
				}
				sb.WriteString("\n")
			}
			if answer := strings.TrimSpace(turn.Answer()); answer != "" {
				sb.WriteString(answer)
				sb.WriteString("\n\n")
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// exportTranscript 写入导出文件，path 为空时在当前目录按时间命名
func exportTranscript(path, model string, turns []protocol.ChatTurn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("没有可导出的对话")
	}
	if path == "" {
		path = fmt.Sprintf("thinkchat-%s.md", time.Now().Format("20060102-150405"))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("创建导出目录失败: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(ExportMarkdown(model, turns)), 0644); err != nil {
		return "", fmt.Errorf("写入导出文件失败: %w", err)
	}
	return path, nil
}
