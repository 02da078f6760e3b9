package tui

import (
	"regexp"
	"strings"
)

// CommandType 斜杠命令类型
type CommandType int

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeLoad
	CommandTypeReset
	CommandTypeStop
	CommandTypeThink
	CommandTypeExport
	CommandTypeHelp
)

// Command 解析后的命令
type Command struct {
	Type    CommandType
	Raw     string
	Content string
}

// CommandParser 命令解析器
type CommandParser struct {
	patterns []commandPattern
}

type commandPattern struct {
	typ CommandType
	re  *regexp.Regexp
}

// NewCommandParser 创建新的命令解析器
func NewCommandParser() *CommandParser {
	return &CommandParser{
		patterns: []commandPattern{
			{CommandTypeLoad, regexp.MustCompile(`(?i)^/load\s*$`)},
			{CommandTypeReset, regexp.MustCompile(`(?i)^/(?:reset|clear)\s*$`)},
			{CommandTypeStop, regexp.MustCompile(`(?i)^/(?:stop|interrupt)\s*$`)},
			{CommandTypeThink, regexp.MustCompile(`(?i)^/think\s*$`)},
			{CommandTypeExport, regexp.MustCompile(`(?i)^/export(?:\s+(.+))?$`)},
			{CommandTypeHelp, regexp.MustCompile(`(?i)^/(?:help|\?)\s*$`)},
		},
	}
}

// Parse 解析输入，不以 / 开头时返回 nil
// 以 / 开头但无法识别的输入返回 CommandTypeUnknown
func (p *CommandParser) Parse(input string) *Command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	for _, pattern := range p.patterns {
		matches := pattern.re.FindStringSubmatch(input)
		if matches == nil {
			continue
		}
		cmd := &Command{Type: pattern.typ, Raw: input}
		if len(matches) > 1 {
			cmd.Content = strings.TrimSpace(matches[1])
		}
		return cmd
	}

	return &Command{Type: CommandTypeUnknown, Raw: input}
}

// IsCommand 检查字符串是否为命令
func (p *CommandParser) IsCommand(input string) bool {
	return p.Parse(input) != nil
}

// FormatCommandType 格式化命令类型为字符串
func FormatCommandType(cmdType CommandType) string {
	switch cmdType {
	case CommandTypeLoad:
		return "LOAD"
	case CommandTypeReset:
		return "RESET"
	case CommandTypeStop:
		return "STOP"
	case CommandTypeThink:
		return "THINK"
	case CommandTypeExport:
		return "EXPORT"
	case CommandTypeHelp:
		return "HELP"
	default:
		return "UNKNOWN"
	}
}

const helpText = "/load 加载模型 • /reset 清空对话 • /stop 停止生成 • /think 显示或折叠思考过程 • /export <文件> 导出对话"
