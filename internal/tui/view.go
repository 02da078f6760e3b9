package tui

import (
	"fmt"
	"strings"

	"github.com/Zacy-Sokach/ThinkChat/internal/chat"
	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
)

func (m Model) View() string {
	if !m.ready {
		return "初始化中..."
	}

	return fmt.Sprintf(
		"%s\n\n%s\n%s\n%s",
		m.bodyView(),
		m.textarea.View(),
		m.statusView(),
		m.helpView(),
	)
}

// bodyView 按阶段选择主区域，高度与 viewport 保持一致
func (m Model) bodyView() string {
	st := m.session.State()
	switch st.Phase {
	case chat.PhaseUnset:
		return fitHeight(m.welcomeView(st), m.viewport.Height)
	case chat.PhaseLoading:
		return fitHeight(m.loadingView(st), m.viewport.Height)
	default:
		return m.viewport.View()
	}
}

func (m Model) welcomeView(st chat.State) string {
	var sb strings.Builder
	title := "ThinkChat"
	if Version != "" {
		title += " " + Version
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")
	sb.WriteString("本地模型对话，回答前会先展示模型的思考过程。\n")
	if m.opts.Model != "" {
		sb.WriteString(fmt.Sprintf("模型: %s\n", m.opts.Model))
	}
	sb.WriteString("\n")
	if st.Errored {
		sb.WriteString(errorStyle.Render("推理后端不可用: " + st.ErrMessage))
	} else {
		sb.WriteString("输入 /load 下载并加载模型。")
	}
	return sb.String()
}

func (m Model) loadingView(st chat.State) string {
	var sb strings.Builder
	msg := st.LoadingMessage
	if msg == "" {
		msg = "正在加载模型..."
	}
	sb.WriteString(m.spinner.View() + " " + msg + "\n\n")

	for _, item := range st.Downloads.Items() {
		sb.WriteString(item.Label())
		sb.WriteString("\n")
		sb.WriteString(m.bar.ViewAs(item.Fraction()))
		sb.WriteString("\n")
	}
	if st.Errored {
		sb.WriteString("\n" + errorStyle.Render("加载失败: "+st.ErrMessage))
	}
	return sb.String()
}

// transcriptView 渲染最近 MaxTurns 轮对话
func (m Model) transcriptView() string {
	st := m.session.State()
	turns := st.Transcript.Snapshot()
	if len(turns) == 0 {
		return helpStyle.Render("模型已就绪，开始提问吧。")
	}

	start := 0
	if len(turns) > m.opts.MaxTurns {
		start = len(turns) - m.opts.MaxTurns
	}

	var sb strings.Builder
	sb.Grow((len(turns) - start) * 200)
	if start > 0 {
		sb.WriteString(helpStyle.Render(fmt.Sprintf("... 省略了 %d 条较早的消息\n\n", start)))
	}

	for i := start; i < len(turns); i++ {
		last := i == len(turns)-1
		turn := turns[i]
		switch turn.Role {
		case protocol.RoleUser:
			sb.WriteString(userLabelStyle.Render("你: "))
			sb.WriteString(turn.Content)
		case protocol.RoleAssistant:
			sb.WriteString(m.assistantView(turn, last && st.Running))
		}
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) assistantView(turn protocol.ChatTurn, streaming bool) string {
	var sb strings.Builder
	reasoning := strings.TrimSpace(turn.Reasoning())

	if reasoning != "" {
		if m.showThinking {
			sb.WriteString(thinkingLabelStyle.Render("思考: "))
			sb.WriteString("\n")
			sb.WriteString(reasoningStyle.Render(reasoning))
			sb.WriteString("\n\n")
		} else {
			sb.WriteString(helpStyle.Render(fmt.Sprintf("思考过程已折叠 (%d 字) /think 展开", len([]rune(reasoning)))))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString(assistantLabelStyle.Render("AI: "))
	switch {
	case turn.HasAnswer():
		sb.WriteString("\n")
		sb.WriteString(RenderMarkdown(turn.Answer()))
	case streaming:
		sb.WriteString(helpStyle.Render("思考中..."))
	default:
		sb.WriteString(helpStyle.Render("(没有回答)"))
	}
	return sb.String()
}

func (m Model) statusView() string {
	st := m.session.State()
	var parts []string

	if st.Running {
		parts = append(parts, m.spinner.View()+noticeStyle.Render(" 生成中"))
	}
	if st.HasMetrics() {
		parts = append(parts, fmt.Sprintf("%.1f tokens/s · %d tokens", st.TPS, st.NumTokens))
	}
	if st.Errored && st.Phase == chat.PhaseReady {
		parts = append(parts, errorStyle.Render("错误: "+st.ErrMessage))
	}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	return strings.Join(parts, "  ")
}

func (m Model) helpView() string {
	help := "Enter: 发送 • Esc: 停止生成 • /help: 命令 • Ctrl+C: 退出"
	if m.session.State().Running {
		help = "Esc: 停止生成 • Ctrl+C: 退出"
	}
	return helpStyle.Render(help)
}

func fitHeight(s string, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
