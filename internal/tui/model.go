package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Zacy-Sokach/ThinkChat/internal/chat"
	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/Zacy-Sokach/ThinkChat/internal/utils"
	"github.com/Zacy-Sokach/ThinkChat/internal/worker"
	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// Version 是当前的 ThinkChat 版本，由 main 包设置
var Version string

// renderInterval 流式输出时两次重绘的最小间隔
const renderInterval = 50 * time.Millisecond

type renderTickMsg struct{}

// Options 界面配置
type Options struct {
	Model       string
	SaveHistory bool
	MaxTurns    int
	Logger      *slog.Logger
}

type Model struct {
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	bar      progressbar.Model
	ready    bool

	conn    *worker.Conn
	session *chat.Session
	bridge  *eventBridge
	parser  *CommandParser
	logger  *slog.Logger
	opts    Options

	showThinking bool
	notice       string
	quitting     bool

	limiter     *rate.Limiter
	dirty       bool
	tickPending bool
}

// New 创建界面模型，conn 在界面退出时关闭
func New(conn *worker.Conn, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 50
	}

	ta := textarea.New()
	ta.Placeholder = "输入你的问题，或 /load 加载模型..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = noticeStyle

	// 监听先于 check 注册，避免错过 check 的结果
	bridge := newEventBridge(conn)

	return Model{
		viewport:     newViewport(80, 20),
		textarea:     ta,
		spinner:      sp,
		bar:          progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithWidth(40)),
		conn:         conn,
		session:      chat.NewSession(conn, opts.Logger),
		bridge:       bridge,
		parser:       NewCommandParser(),
		logger:       opts.Logger,
		opts:         opts,
		showThinking: true,
		limiter:      rate.NewLimiter(rate.Every(renderInterval), 1),
	}
}

// newViewport 只保留翻页键，其余按键留给输入框
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}
	return vp
}

// State 当前对话状态
func (m Model) State() chat.State {
	return m.session.State()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.bridge.wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.shutdown()
			return m, tea.Quit
		case tea.KeyEnter:
			input := m.textarea.Value()
			if strings.TrimSpace(input) == "" {
				return m, nil
			}
			if cmd := m.parser.Parse(input); cmd != nil {
				m.textarea.Reset()
				return m, m.handleCommand(cmd)
			}
			if err := m.session.Submit(input); err != nil {
				m.notice = describe(err)
				return m, nil
			}
			m.notice = ""
			m.textarea.Reset()
			m.refresh(true)
			return m, nil
		case tea.KeyEsc:
			m.interrupt()
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 6
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = newViewport(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.textarea.SetWidth(msg.Width)
		m.bar.Width = min(60, max(10, msg.Width-4))
		m.refresh(true)

	case WorkerEventMsg:
		m.session.Handle(msg.Event)
		if msg.Event.Status == protocol.StatusUpdate {
			cmds = append(cmds, m.refresh(false))
		} else {
			m.refresh(true)
		}
		cmds = append(cmds, m.bridge.wait())
		return m, tea.Batch(cmds...)

	case WorkerStoppedMsg:
		if !m.quitting {
			m.session.Handle(protocol.ErrorEvent("推理后端已停止"))
			m.refresh(true)
		}
		return m, nil

	case renderTickMsg:
		m.tickPending = false
		if m.dirty {
			m.refresh(true)
		}
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleCommand(cmd *Command) tea.Cmd {
	m.notice = ""
	var err error

	switch cmd.Type {
	case CommandTypeLoad:
		err = m.session.Load()
	case CommandTypeReset:
		err = m.session.Reset()
	case CommandTypeStop:
		m.interrupt()
	case CommandTypeThink:
		m.showThinking = !m.showThinking
	case CommandTypeExport:
		var path string
		path, err = exportTranscript(cmd.Content, m.opts.Model, m.session.State().Transcript.Snapshot())
		if err == nil {
			m.notice = "已导出到 " + path
		}
	case CommandTypeHelp:
		m.notice = helpText
	default:
		m.notice = fmt.Sprintf("未知命令: %s", cmd.Raw)
	}

	if err != nil {
		m.notice = describe(err)
	}
	m.refresh(true)
	return nil
}

func (m *Model) interrupt() {
	if err := m.session.Interrupt(); err != nil && !errors.Is(err, chat.ErrNotRunning) {
		m.notice = describe(err)
	}
}

// refresh 重绘对话区；force 为 false 时受限速器约束，被跳过的重绘由 tick 补上
func (m *Model) refresh(force bool) tea.Cmd {
	if !force && !m.limiter.Allow() {
		m.dirty = true
		if m.tickPending {
			return nil
		}
		m.tickPending = true
		return tea.Tick(renderInterval, func(time.Time) tea.Msg { return renderTickMsg{} })
	}
	m.dirty = false

	// 只有原本停在底部时才跟随新内容
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcriptView())
	if follow {
		m.viewport.GotoBottom()
	}
	return nil
}

// shutdown 释放 worker 连接并按配置保存历史，可重复调用
func (m *Model) shutdown() {
	if m.quitting {
		return
	}
	m.quitting = true
	m.bridge.close()
	if err := m.conn.Close(); err != nil {
		m.logger.Warn("worker closed with error", "error", err)
	}
	if !m.opts.SaveHistory {
		return
	}
	if id, err := utils.SaveHistory(m.opts.Model, m.session.State().Transcript.Snapshot()); err != nil {
		m.logger.Error("save history failed", "error", err)
	} else if id != "" {
		m.logger.Info("history saved", "id", id)
	}
}

// Close 与 Ctrl+C 相同，供程序异常退出时调用
func (m *Model) Close() {
	m.shutdown()
}

func describe(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotReady):
		return "模型尚未就绪，输入 /load 加载"
	case errors.Is(err, chat.ErrBusy):
		return "正在生成，按 Esc 停止"
	case errors.Is(err, chat.ErrBlocked):
		return "推理后端出错，无法加载"
	case errors.Is(err, chat.ErrAlreadyLoaded):
		return "模型已在加载或已就绪"
	case errors.Is(err, chat.ErrEmptyInput):
		return "输入为空"
	case errors.Is(err, worker.ErrBusy):
		return "推理后端繁忙，请稍后重试"
	case errors.Is(err, worker.ErrClosed):
		return "推理后端已关闭"
	default:
		return err.Error()
	}
}
