// Package transcript 保存对话轮次，流式 token 以写时复制的方式追加到最后一轮
package transcript

import (
	"errors"
	"strings"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
)

// ErrEmptyInput 用户输入为空
var ErrEmptyInput = errors.New("empty input")

// Transcript 有序的对话轮次
// 值类型且不可变：每次修改返回新的 Transcript，未改动的轮次按指针共享，被改动的轮次是新对象
type Transcript struct {
	turns []*protocol.ChatTurn
}

// Len 轮次数量
func (t Transcript) Len() int {
	return len(t.turns)
}

// Turn 返回第 i 轮的副本
func (t Transcript) Turn(i int) protocol.ChatTurn {
	return t.turns[i].Clone()
}

// Last 返回最后一轮，没有轮次时 ok 为 false
func (t Transcript) Last() (protocol.ChatTurn, bool) {
	if len(t.turns) == 0 {
		return protocol.ChatTurn{}, false
	}
	return t.turns[len(t.turns)-1].Clone(), true
}

// LastIsUser 最后一轮是否为用户消息（尚未开始对应的助手回复）
func (t Transcript) LastIsUser() bool {
	return len(t.turns) > 0 && t.turns[len(t.turns)-1].Role == protocol.RoleUser
}

// Snapshot 返回全部轮次的深拷贝，用于渲染和 generate 负载
func (t Transcript) Snapshot() []protocol.ChatTurn {
	out := make([]protocol.ChatTurn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.Clone()
	}
	return out
}

// AppendUser 追加用户消息，空白输入返回 ErrEmptyInput 且不修改
func (t Transcript) AppendUser(text string) (Transcript, error) {
	if strings.TrimSpace(text) == "" {
		return t, ErrEmptyInput
	}
	turn := protocol.UserTurn(text)
	return t.with(&turn), nil
}

// StartAssistant 追加一条空的助手消息，每个 start 事件调用一次
func (t Transcript) StartAssistant() Transcript {
	return t.with(&protocol.ChatTurn{Role: protocol.RoleAssistant})
}

// AppendToken 把 fragment 追加到最后一条助手消息
// 第一次在 answering 阶段收到 token 时，把追加前的长度记为回答边界，之后不再改变
// 最后一轮不是助手消息时丢弃
func (t Transcript) AppendToken(fragment string, state protocol.GenerationState) Transcript {
	n := len(t.turns)
	if n == 0 || t.turns[n-1].Role != protocol.RoleAssistant {
		return t
	}

	prev := t.turns[n-1]
	next := prev.Clone()
	if next.AnswerIndex == nil && state == protocol.StateAnswering {
		idx := len(prev.Content)
		next.AnswerIndex = &idx
	}
	next.Content += fragment

	turns := make([]*protocol.ChatTurn, n)
	copy(turns, t.turns[:n-1])
	turns[n-1] = &next
	return Transcript{turns: turns}
}

// Reset 清空全部轮次
func (t Transcript) Reset() Transcript {
	return Transcript{}
}

// FromTurns 从已有轮次构造，例如从历史文件恢复
func FromTurns(turns []protocol.ChatTurn) Transcript {
	out := make([]*protocol.ChatTurn, len(turns))
	for i := range turns {
		c := turns[i].Clone()
		out[i] = &c
	}
	return Transcript{turns: out}
}

func (t Transcript) with(turn *protocol.ChatTurn) Transcript {
	turns := make([]*protocol.ChatTurn, len(t.turns), len(t.turns)+1)
	copy(turns, t.turns)
	return Transcript{turns: append(turns, turn)}
}
