package tui

import "github.com/charmbracelet/lipgloss"

var (
	userLabelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	thinkingLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	reasoningStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	helpStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
)
