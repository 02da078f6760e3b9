package ollama

import "fmt"

// APIError 表示 Ollama 返回的错误，包含状态码和错误信息
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "ollama: " + e.Message
	}
	return fmt.Sprintf("ollama: status %d: %s", e.StatusCode, e.Message)
}

// Message Ollama chat 消息
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// ChatRequest POST /api/chat 请求体
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Think    *bool     `json:"think,omitempty"`
}

// ChatChunk 流式 chat 响应的一行
type ChatChunk struct {
	Model        string  `json:"model"`
	Message      Message `json:"message"`
	Done         bool    `json:"done"`
	DoneReason   string  `json:"done_reason,omitempty"`
	EvalCount    int     `json:"eval_count,omitempty"`
	EvalDuration int64   `json:"eval_duration,omitempty"` // 纳秒
	Error        string  `json:"error,omitempty"`
}

// PullProgress 流式 pull 响应的一行，每个层以 Digest 区分
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type errorResponse struct {
	Error string `json:"error"`
}
