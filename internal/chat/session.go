package chat

import (
	"fmt"
	"log/slog"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
)

// Sender worker 连接的发送端
type Sender interface {
	Send(cmd protocol.Command) error
}

// Session 持有状态并把命令交给 worker
// 只在一个逻辑线程中使用（例如 bubbletea 的 Update），不做并发保护
type Session struct {
	conn   Sender
	state  State
	logger *slog.Logger
}

// NewSession 创建会话并立即发送一次 check
// check 无法发出时视为能力检查失败，会话进入错误状态
func NewSession(conn Sender, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{conn: conn, logger: logger}

	if err := conn.Send(protocol.CheckCommand()); err != nil {
		s.logger.Error("capability check failed", "error", err)
		s.state = Reduce(s.state, protocol.ErrorEvent(fmt.Sprintf("无法启动推理后端: %v", err)))
	}
	return s
}

// State 当前状态
func (s *Session) State() State {
	return s.state
}

// Handle 应用一个 worker 事件
func (s *Session) Handle(ev protocol.Event) State {
	next, err := reduce(s.state, ev)
	if err != nil {
		s.logger.Warn("ignoring worker event", "status", ev.Status, "file", ev.File, "error", err)
	}
	switch ev.Status {
	case protocol.StatusError:
		s.logger.Error("worker error", "message", ev.Data)
	case protocol.StatusReady, protocol.StatusComplete:
		s.logger.Info("worker "+string(ev.Status), "turns", next.Transcript.Len(), "tokens", next.NumTokens)
	case protocol.StatusLoading, protocol.StatusInitiate, protocol.StatusProgress, protocol.StatusDone,
		protocol.StatusStart, protocol.StatusUpdate:
	default:
		s.logger.Debug("unknown worker event", "status", ev.Status)
	}
	s.state = next
	return next
}

// Submit 发送用户消息
func (s *Session) Submit(text string) error {
	return s.apply("submit", func(st State) (State, []protocol.Command, error) { return Submit(st, text) })
}

// Interrupt 请求停止当前生成
func (s *Session) Interrupt() error {
	return s.apply("interrupt", Interrupt)
}

// Reset 清空对话
func (s *Session) Reset() error {
	return s.apply("reset", Reset)
}

// Load 加载模型
func (s *Session) Load() error {
	return s.apply("load", Load)
}

// apply 命令全部发出后才提交新状态
func (s *Session) apply(name string, op func(State) (State, []protocol.Command, error)) error {
	next, cmds, err := op(s.state)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := s.conn.Send(cmd); err != nil {
			s.logger.Error("send failed", "op", name, "command", cmd.Type, "error", err)
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	s.state = next
	return nil
}
