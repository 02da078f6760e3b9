package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed 消息无法解析
var ErrMalformed = errors.New("malformed worker message")

// EncodeCommand 序列化命令
func EncodeCommand(cmd Command) ([]byte, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s command: %w", cmd.Type, err)
	}
	return b, nil
}

// DecodeCommand 反序列化命令，type 缺失视为格式错误
func DecodeCommand(b []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(b, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if cmd.Type == "" {
		return Command{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return cmd, nil
}

// EncodeEvent 序列化事件
func EncodeEvent(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Status, err)
	}
	return b, nil
}

// DecodeEvent 反序列化事件；未知 status 不算错误，由调用方忽略
func DecodeEvent(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Status == "" {
		return Event{}, fmt.Errorf("%w: missing status", ErrMalformed)
	}
	return ev, nil
}
