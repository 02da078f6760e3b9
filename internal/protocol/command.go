package protocol

// CommandType worker 命令类型
type CommandType string

const (
	CommandCheck     CommandType = "check"
	CommandLoad      CommandType = "load"
	CommandGenerate  CommandType = "generate"
	CommandInterrupt CommandType = "interrupt"
	CommandReset     CommandType = "reset"
)

// Command UI 发往 worker 的命令，除 generate 外都没有负载
type Command struct {
	Type CommandType `json:"type"`
	Data []ChatTurn  `json:"data,omitempty"`
}

func CheckCommand() Command     { return Command{Type: CommandCheck} }
func LoadCommand() Command      { return Command{Type: CommandLoad} }
func InterruptCommand() Command { return Command{Type: CommandInterrupt} }
func ResetCommand() Command     { return Command{Type: CommandReset} }

// GenerateCommand 携带完整对话的生成命令，turns 会被深拷贝
func GenerateCommand(turns []ChatTurn) Command {
	data := make([]ChatTurn, len(turns))
	for i, t := range turns {
		data[i] = t.Clone()
	}
	return Command{Type: CommandGenerate, Data: data}
}
