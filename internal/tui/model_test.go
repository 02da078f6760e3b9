package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Zacy-Sokach/ThinkChat/internal/chat"
	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/Zacy-Sokach/ThinkChat/internal/utils"
	"github.com/Zacy-Sokach/ThinkChat/internal/worker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layer = "sha256:0123456789abcdef0123456789abcdef"

// scriptedBackend 按固定脚本回应 load 和 generate
func scriptedBackend(ctx context.Context, cmds <-chan protocol.Command, emit worker.Emitter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-cmds:
			switch cmd.Type {
			case protocol.CommandLoad:
				emit(protocol.LoadingEvent("正在下载"))
				emit(protocol.InitiateEvent(layer, map[string]any{"name": "qwen3"}))
				emit(protocol.ProgressEvent(layer, 50, 2048))
				emit(protocol.DoneEvent(layer))
				emit(protocol.ReadyEvent())
			case protocol.CommandGenerate:
				emit(protocol.StartEvent())
				emit(protocol.UpdateEvent("hmm", protocol.StateThinking, 1, 1))
				emit(protocol.UpdateEvent("**answer**", protocol.StateAnswering, 2, 2))
				emit(protocol.CompleteEvent())
			}
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModel(t *testing.T, backend worker.Backend, opts Options) (Model, *worker.Conn) {
	t.Helper()
	conn := worker.Start(context.Background(), backend, worker.WithLogger(quietLogger()))
	t.Cleanup(func() { conn.Close() })

	opts.Logger = quietLogger()
	m := New(conn, opts)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, conn
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	updated, ok := next.(Model)
	require.True(t, ok)
	return updated
}

func enter(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.textarea.SetValue(text)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// nextEvent 读取并应用一条 worker 事件
func nextEvent(t *testing.T, m Model) (Model, protocol.Event) {
	t.Helper()
	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- m.bridge.wait()() }()

	select {
	case msg := <-msgs:
		ev, ok := msg.(WorkerEventMsg)
		require.True(t, ok, "unexpected message %T", msg)
		return update(t, m, msg), ev.Event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker event")
	}
	return m, protocol.Event{}
}

func pumpUntil(t *testing.T, m Model, status protocol.Status) Model {
	t.Helper()
	for {
		var ev protocol.Event
		m, ev = nextEvent(t, m)
		if ev.Status == status {
			return m
		}
	}
}

func TestModelConversationFlow(t *testing.T) {
	t.Setenv("THINKCHAT_CONFIG_HOME", t.TempDir())
	m, conn := newTestModel(t, worker.BackendFunc(scriptedBackend), Options{Model: "qwen3", SaveHistory: true})

	assert.Equal(t, chat.PhaseUnset, m.State().Phase)
	assert.Contains(t, m.View(), "/load")

	// 未加载时提问被拒绝，输入保留
	m = enter(t, m, "question?")
	assert.Contains(t, m.notice, "/load")
	assert.Equal(t, "question?", m.textarea.Value())

	m = enter(t, m, "/load")
	assert.Equal(t, chat.PhaseLoading, m.State().Phase)
	assert.Empty(t, m.textarea.Value())

	m = pumpUntil(t, m, protocol.StatusProgress)
	view := m.View()
	assert.Contains(t, view, "正在下载")
	assert.Contains(t, view, "(2kB)")
	assert.Equal(t, 1, m.State().Downloads.Len())

	m = pumpUntil(t, m, protocol.StatusReady)
	assert.Equal(t, chat.PhaseReady, m.State().Phase)
	assert.Equal(t, 0, m.State().Downloads.Len())

	m = enter(t, m, "question?")
	assert.True(t, m.State().Running)
	assert.Equal(t, 1, m.State().Transcript.Len())

	// 生成中再次提交被拒绝
	m = enter(t, m, "again")
	assert.Contains(t, m.notice, "Esc")

	m = pumpUntil(t, m, protocol.StatusComplete)
	st := m.State()
	assert.False(t, st.Running)
	require.Equal(t, 2, st.Transcript.Len())
	last, _ := st.Transcript.Last()
	assert.Equal(t, "hmm", last.Reasoning())
	assert.Equal(t, "**answer**", last.Answer())

	view = m.View()
	assert.Contains(t, view, "question?")
	assert.Contains(t, view, "hmm")
	assert.Contains(t, view, "answer")
	assert.NotContains(t, view, "**answer**")
	assert.Contains(t, view, "2.0 tokens/s · 2 tokens")

	m = enter(t, m, "/think")
	assert.False(t, m.showThinking)
	assert.Contains(t, m.View(), "/think")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, next.(Model).quitting)
	assert.Equal(t, 0, conn.Listeners())

	history, err := utils.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "qwen3", history[0].Model)
	assert.Len(t, history[0].Turns, 2)
}

func TestModelResetAndUnknownCommand(t *testing.T) {
	m, _ := newTestModel(t, worker.BackendFunc(scriptedBackend), Options{})

	m = enter(t, m, "/load")
	m = pumpUntil(t, m, protocol.StatusReady)
	m = enter(t, m, "q")
	m = pumpUntil(t, m, protocol.StatusComplete)
	require.Equal(t, 2, m.State().Transcript.Len())

	m = enter(t, m, "/bogus")
	assert.Contains(t, m.notice, "/bogus")

	m = enter(t, m, "/reset")
	assert.Equal(t, 0, m.State().Transcript.Len())
	assert.False(t, m.State().HasMetrics())
	assert.Empty(t, m.notice)
}

func TestModelWorkerStopped(t *testing.T) {
	failing := worker.BackendFunc(func(ctx context.Context, cmds <-chan protocol.Command, emit worker.Emitter) error {
		return errors.New("boom")
	})
	m, _ := newTestModel(t, failing, Options{})

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- m.bridge.wait()() }()

	select {
	case msg := <-msgs:
		m = update(t, m, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker stop")
	}

	assert.True(t, m.State().Errored)
	m = enter(t, m, "/load")
	assert.Contains(t, m.notice, "出错")
}

func TestModelRenderThrottle(t *testing.T) {
	m, _ := newTestModel(t, worker.BackendFunc(scriptedBackend), Options{})

	assert.Nil(t, m.refresh(false))
	assert.False(t, m.dirty)

	cmd := m.refresh(false)
	require.NotNil(t, cmd)
	assert.True(t, m.dirty)
	assert.True(t, m.tickPending)

	// 已有待执行的 tick 时不再重复调度
	assert.Nil(t, m.refresh(false))

	m = update(t, m, renderTickMsg{})
	assert.False(t, m.dirty)
	assert.False(t, m.tickPending)
}

func TestModelScrollFollowsOnlyAtBottom(t *testing.T) {
	m, _ := newTestModel(t, worker.BackendFunc(scriptedBackend), Options{})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 10})

	m.session.Handle(protocol.ReadyEvent())
	m.session.Handle(protocol.StartEvent())
	m.session.Handle(protocol.UpdateEvent(strings.Repeat("line\n\n", 20), protocol.StateAnswering, 1, 1))
	m.refresh(true)
	assert.True(t, m.viewport.AtBottom())

	m.viewport.GotoTop()
	m.session.Handle(protocol.UpdateEvent(strings.Repeat("more\n\n", 5), protocol.StateAnswering, 1, 2))
	m.refresh(true)
	assert.Equal(t, 0, m.viewport.YOffset)

	m.viewport.GotoBottom()
	m.session.Handle(protocol.UpdateEvent(strings.Repeat("tail\n\n", 5), protocol.StateAnswering, 1, 3))
	m.refresh(true)
	assert.True(t, m.viewport.AtBottom())
}
