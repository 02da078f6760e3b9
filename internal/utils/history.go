package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/google/uuid"
)

// maxHistoryEntries 历史文件最多保留的会话数
const maxHistoryEntries = 100

type HistoryEntry struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Model     string              `json:"model,omitempty"`
	Turns     []protocol.ChatTurn `json:"turns"`
}

// SaveHistory 追加一次会话到历史文件，空会话不写入
func SaveHistory(model string, turns []protocol.ChatTurn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}

	historyPath, err := getHistoryPath()
	if err != nil {
		return "", fmt.Errorf("获取历史文件路径失败: %w", err)
	}

	history, err := readHistory(historyPath)
	if err != nil {
		// 损坏的历史文件直接覆盖
		history = nil
	}

	entry := HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Model:     model,
		Turns:     turns,
	}
	history = append(history, entry)

	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化历史失败: %w", err)
	}

	if err := os.WriteFile(historyPath, data, 0644); err != nil {
		return "", fmt.Errorf("写入历史文件失败: %w", err)
	}

	return entry.ID, nil
}

func LoadHistory() ([]HistoryEntry, error) {
	historyPath, err := getHistoryPath()
	if err != nil {
		return nil, fmt.Errorf("获取历史文件路径失败: %w", err)
	}
	return readHistory(historyPath)
}

func readHistory(path string) ([]HistoryEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取历史文件失败: %w", err)
	}

	var history []HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("解析历史文件失败: %w", err)
	}
	return history, nil
}

func getHistoryPath() (string, error) {
	return ConfigFile("history.json")
}
