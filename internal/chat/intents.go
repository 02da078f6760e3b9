package chat

import (
	"errors"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/Zacy-Sokach/ThinkChat/internal/transcript"
)

var (
	ErrEmptyInput    = transcript.ErrEmptyInput
	ErrNotReady      = errors.New("model not ready")
	ErrBusy          = errors.New("generation in progress")
	ErrNotRunning    = errors.New("no generation in progress")
	ErrBlocked       = errors.New("loading blocked by earlier error")
	ErrAlreadyLoaded = errors.New("model already loading or loaded")
)

// Submit 追加用户消息并开始生成
// 条件不满足时返回错误，状态不变且没有命令
func Submit(s State, text string) (State, []protocol.Command, error) {
	if s.Phase != PhaseReady {
		return s, nil, ErrNotReady
	}
	if s.Running {
		return s, nil, ErrBusy
	}

	tr, err := s.Transcript.AppendUser(text)
	if err != nil {
		return s, nil, err
	}
	s.Transcript = tr
	s.TPS = 0
	s.Running = true

	var cmds []protocol.Command
	if cmd, ok := pendingGenerate(s); ok {
		cmds = append(cmds, cmd)
	}
	return s, cmds, nil
}

// pendingGenerate 最后一轮是用户消息时需要一次 generate
// 助手消息一旦开始，角色检查即失败，不会重复触发
func pendingGenerate(s State) (protocol.Command, bool) {
	if !s.Transcript.LastIsUser() {
		return protocol.Command{}, false
	}
	return protocol.GenerateCommand(s.Transcript.Snapshot()), true
}

// Interrupt 请求停止生成，Running 仍等待 complete 事件清除
func Interrupt(s State) (State, []protocol.Command, error) {
	if !s.Running {
		return s, nil, ErrNotRunning
	}
	return s, []protocol.Command{protocol.InterruptCommand()}, nil
}

// Reset 清空对话和统计
func Reset(s State) (State, []protocol.Command, error) {
	if s.Running {
		return s, nil, ErrBusy
	}
	s.Transcript = s.Transcript.Reset()
	s.TPS = 0
	s.NumTokens = 0
	return s, []protocol.Command{protocol.ResetCommand()}, nil
}

// Load 开始下载和加载模型，只能在 Unset 且没有错误时进行
func Load(s State) (State, []protocol.Command, error) {
	if s.Errored {
		return s, nil, ErrBlocked
	}
	if s.Phase != PhaseUnset {
		return s, nil, ErrAlreadyLoaded
	}
	s.Phase = PhaseLoading
	return s, []protocol.Command{protocol.LoadCommand()}, nil
}
