// Package chat 把 worker 事件流归约成对话状态，并把用户操作翻译成 worker 命令
package chat

import (
	"github.com/Zacy-Sokach/ThinkChat/internal/progress"
	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/Zacy-Sokach/ThinkChat/internal/transcript"
)

// Phase worker 生命周期，只会前进
type Phase int

const (
	PhaseUnset Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "unset"
	}
}

// State 组件的全部状态，值类型，由 Reduce 和各个操作生成新值
type State struct {
	Phase          Phase
	Running        bool
	Errored        bool   // 一旦设置，本次会话不能再 load
	ErrMessage     string // 最近一次错误
	LoadingMessage string

	Transcript transcript.Transcript
	Downloads  progress.Tracker

	TPS       float64
	NumTokens int
}

// HasMetrics 是否有可显示的速度统计
func (s State) HasMetrics() bool {
	return s.NumTokens > 0 || s.TPS > 0
}

// Reduce 把一个 worker 事件应用到状态上，未知事件原样返回
func Reduce(s State, ev protocol.Event) State {
	next, _ := reduce(s, ev)
	return next
}

// reduce 额外返回可以记录但不影响状态的问题，例如重复的 initiate
func reduce(s State, ev protocol.Event) (State, error) {
	switch ev.Status {
	case protocol.StatusLoading:
		s.Phase = advance(s.Phase, PhaseLoading)
		s.LoadingMessage = ev.Data

	case protocol.StatusInitiate:
		next, err := s.Downloads.Initiate(ev.File, ev.Metadata)
		s.Downloads = next
		return s, err

	case protocol.StatusProgress:
		s.Downloads = s.Downloads.Update(ev.File, ev.Progress, ev.TotalBytes())

	case protocol.StatusDone:
		s.Downloads = s.Downloads.Complete(ev.File)

	case protocol.StatusReady:
		s.Phase = advance(s.Phase, PhaseReady)

	case protocol.StatusStart:
		s.Transcript = s.Transcript.StartAssistant()

	case protocol.StatusUpdate:
		s.Transcript = s.Transcript.AppendToken(ev.Output, ev.State)
		s.TPS = ev.TPS
		s.NumTokens = ev.NumTokens

	case protocol.StatusComplete:
		s.Running = false

	case protocol.StatusError:
		s.Errored = true
		s.ErrMessage = ev.Data
	}
	return s, nil
}

func advance(cur, to Phase) Phase {
	if to > cur {
		return to
	}
	return cur
}
