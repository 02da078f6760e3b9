package protocol

import "strings"

// Role 对话轮次的作者
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// GenerationState 生成阶段，由 worker 在每个 update 事件中报告
type GenerationState string

const (
	StateThinking  GenerationState = "thinking"
	StateAnswering GenerationState = "answering"
)

// ChatTurn 对话中的一轮消息
// AnswerIndex 为 nil 时整段内容都是思考内容；设置后即不可变，标记回答开始的字节偏移
type ChatTurn struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	AnswerIndex *int   `json:"answerIndex,omitempty"`
}

// UserTurn 创建用户消息
func UserTurn(content string) ChatTurn {
	return ChatTurn{Role: RoleUser, Content: content}
}

// HasAnswer 回答边界是否已确定
func (t ChatTurn) HasAnswer() bool {
	return t.AnswerIndex != nil
}

// Reasoning 返回思考部分
func (t ChatTurn) Reasoning() string {
	if t.AnswerIndex == nil {
		return t.Content
	}
	return t.Content[:t.boundary()]
}

// Answer 返回回答部分，边界未确定时为空
func (t ChatTurn) Answer() string {
	if t.AnswerIndex == nil {
		return ""
	}
	return t.Content[t.boundary():]
}

// Clone 深拷贝，避免 AnswerIndex 指针被共享
func (t ChatTurn) Clone() ChatTurn {
	c := t
	if t.AnswerIndex != nil {
		idx := *t.AnswerIndex
		c.AnswerIndex = &idx
	}
	return c
}

// Equal 比较 role、content 和 answerIndex
func (t ChatTurn) Equal(o ChatTurn) bool {
	if t.Role != o.Role || t.Content != o.Content {
		return false
	}
	if t.AnswerIndex == nil || o.AnswerIndex == nil {
		return t.AnswerIndex == nil && o.AnswerIndex == nil
	}
	return *t.AnswerIndex == *o.AnswerIndex
}

func (t ChatTurn) boundary() int {
	idx := *t.AnswerIndex
	if idx < 0 {
		return 0
	}
	if idx > len(t.Content) {
		return len(t.Content)
	}
	return idx
}

// String 用于日志
func (t ChatTurn) String() string {
	content := t.Content
	if r := []rune(content); len(r) > 40 {
		content = string(r[:40]) + "..."
	}
	return string(t.Role) + ": " + strings.ReplaceAll(content, "\n", " ")
}
