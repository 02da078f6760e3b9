package protocol

import (
	"encoding/json"
	"math"
)

// Status worker 事件类型
type Status string

const (
	StatusLoading  Status = "loading"
	StatusInitiate Status = "initiate"
	StatusProgress Status = "progress"
	StatusDone     Status = "done"
	StatusReady    Status = "ready"
	StatusStart    Status = "start"
	StatusUpdate   Status = "update"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Event worker 发往 UI 的事件，字段按 Status 选择性出现
type Event struct {
	Status    Status          `json:"status"`
	Data      string          `json:"data,omitempty"`
	File      string          `json:"file,omitempty"`
	Progress  float64         `json:"progress,omitempty"`
	Total     *float64        `json:"total,omitempty"`
	Output    string          `json:"output,omitempty"`
	TPS       float64         `json:"tps,omitempty"`
	NumTokens int             `json:"numTokens,omitempty"`
	State     GenerationState `json:"state,omitempty"`

	// Metadata 保存 initiate 事件附带的其余字段（name、url 等）
	Metadata map[string]any `json:"-"`
}

// TotalBytes 返回文件总大小，未知时为 NaN
func (e Event) TotalBytes() float64 {
	if e.Total == nil {
		return math.NaN()
	}
	return *e.Total
}

func LoadingEvent(msg string) Event { return Event{Status: StatusLoading, Data: msg} }
func ReadyEvent() Event             { return Event{Status: StatusReady} }
func StartEvent() Event             { return Event{Status: StatusStart} }
func CompleteEvent() Event          { return Event{Status: StatusComplete} }
func ErrorEvent(msg string) Event   { return Event{Status: StatusError, Data: msg} }
func DoneEvent(file string) Event   { return Event{Status: StatusDone, File: file} }

// InitiateEvent 新文件开始下载
func InitiateEvent(file string, metadata map[string]any) Event {
	return Event{Status: StatusInitiate, File: file, Metadata: metadata}
}

// ProgressEvent 下载进度，total 小于等于 0 视为未知
func ProgressEvent(file string, percent, total float64) Event {
	ev := Event{Status: StatusProgress, File: file, Progress: percent}
	if total > 0 {
		ev.Total = &total
	}
	return ev
}

// UpdateEvent 生成中的增量输出
func UpdateEvent(output string, state GenerationState, tps float64, numTokens int) Event {
	return Event{Status: StatusUpdate, Output: output, State: state, TPS: tps, NumTokens: numTokens}
}

// 已知字段，其余字段进入 Metadata
var eventKeys = map[string]bool{
	"status": true, "data": true, "file": true, "progress": true, "total": true,
	"output": true, "tps": true, "numTokens": true, "state": true,
}

// MarshalJSON 将 Metadata 平铺到顶层
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	base, err := json.Marshal(plain(e))
	if err != nil || len(e.Metadata) == 0 {
		return base, err
	}

	merged := make(map[string]any, len(e.Metadata)+4)
	for k, v := range e.Metadata {
		if !eventKeys[k] {
			merged[k] = v
		}
	}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON 解析已知字段并收集其余字段
func (e *Event) UnmarshalJSON(b []byte) error {
	type plain Event
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if eventKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if p.Metadata == nil {
			p.Metadata = make(map[string]any)
		}
		p.Metadata[k] = val
	}

	*e = Event(p)
	return nil
}
