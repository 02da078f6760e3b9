// Package engine 提供基于本地 Ollama 服务的推理 worker
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Zacy-Sokach/ThinkChat/internal/ollama"
	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/Zacy-Sokach/ThinkChat/internal/worker"
)

// Client engine 使用的 Ollama 接口
type Client interface {
	Version(ctx context.Context) (string, error)
	Pull(ctx context.Context, model string, onProgress func(ollama.PullProgress)) error
	Load(ctx context.Context, model string) error
	ChatStream(ctx context.Context, req ollama.ChatRequest, onChunk func(ollama.ChatChunk) error) error
}

// Option engine 选项
type Option func(*Engine)

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithThink 是否请求模型输出思考过程
func WithThink(think bool) Option {
	return func(e *Engine) { e.think = think }
}

// WithClock 替换时钟，用于测试速度统计
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type loadState int

const (
	notLoaded loadState = iota
	loadingModel
	loaded
)

// Engine 实现 worker.Backend
type Engine struct {
	client Client
	model  string
	think  bool
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	state loadState
}

var _ worker.Backend = (*Engine)(nil)

// New 创建 engine
func New(client Client, model string, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		model:  model,
		think:  true,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("model", model)
	return e
}

// Run 处理命令直到 ctx 取消
// check 和 load 在后台执行；同一时间只有一个生成任务，interrupt 和 reset 会取消它
func (e *Engine) Run(ctx context.Context, cmds <-chan protocol.Command, emit worker.Emitter) error {
	var (
		wg        sync.WaitGroup
		genCancel context.CancelFunc
		genDone   chan struct{}
	)
	defer func() {
		if genCancel != nil {
			genCancel()
		}
		wg.Wait()
	}()

	generating := func() bool {
		if genDone == nil {
			return false
		}
		select {
		case <-genDone:
			return false
		default:
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-cmds:
			switch cmd.Type {
			case protocol.CommandCheck:
				wg.Add(1)
				go func() {
					defer wg.Done()
					e.check(ctx, emit)
				}()

			case protocol.CommandLoad:
				if !e.beginLoad() {
					e.logger.Warn("load already requested")
					continue
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					e.load(ctx, emit)
				}()

			case protocol.CommandGenerate:
				if generating() {
					e.logger.Warn("generate ignored, generation in progress")
					continue
				}
				var genCtx context.Context
				genCtx, genCancel = context.WithCancel(ctx)
				done := make(chan struct{})
				genDone = done
				turns := cmd.Data
				cancel := genCancel
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer close(done)
					defer cancel()
					e.generate(genCtx, turns, emit)
				}()

			case protocol.CommandInterrupt, protocol.CommandReset:
				if genCancel != nil {
					genCancel()
				}
				e.logger.Debug("generation cancelled", "command", cmd.Type)

			default:
				e.logger.Warn("unknown command", "type", cmd.Type)
			}
		}
	}
}

func (e *Engine) check(ctx context.Context, emit worker.Emitter) {
	v, err := e.client.Version(ctx)
	if err != nil {
		if ctx.Err() == nil {
			emit(protocol.ErrorEvent(fmt.Sprintf("推理后端不可用: %v", err)))
		}
		return
	}
	e.logger.Info("inference backend available", "version", v)
}

func (e *Engine) beginLoad() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != notLoaded {
		return false
	}
	e.state = loadingModel
	return true
}

func (e *Engine) finishLoad(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		e.state = loaded
	} else {
		e.state = notLoaded
	}
}

func (e *Engine) load(ctx context.Context, emit worker.Emitter) {
	emit(protocol.LoadingEvent(fmt.Sprintf("正在下载模型 %s ...", e.model)))

	layers := newLayerTracker(e.model, emit)
	err := e.client.Pull(ctx, e.model, layers.observe)
	layers.finishAll()
	if err != nil {
		e.failLoad(ctx, emit, err)
		return
	}

	emit(protocol.LoadingEvent("正在加载模型到内存 ..."))
	if err := e.client.Load(ctx, e.model); err != nil {
		e.failLoad(ctx, emit, err)
		return
	}

	e.finishLoad(true)
	e.logger.Info("model ready")
	emit(protocol.ReadyEvent())
}

func (e *Engine) failLoad(ctx context.Context, emit worker.Emitter, err error) {
	e.finishLoad(false)
	if ctx.Err() != nil {
		return
	}
	e.logger.Error("model load failed", "error", err)
	emit(protocol.ErrorEvent(fmt.Sprintf("加载模型失败: %v", err)))
}

// generate 无论成功、出错还是被中断都以 complete 结束
func (e *Engine) generate(ctx context.Context, turns []protocol.ChatTurn, emit worker.Emitter) {
	emit(protocol.StartEvent())
	defer emit(protocol.CompleteEvent())

	var (
		first     time.Time
		numTokens int
	)
	send := func(output string, state protocol.GenerationState) {
		now := e.now()
		if first.IsZero() {
			first = now
		}
		numTokens++
		var tps float64
		if elapsed := now.Sub(first).Seconds(); elapsed > 0 {
			tps = float64(numTokens) / elapsed
		}
		emit(protocol.UpdateEvent(output, state, tps, numTokens))
	}

	think := e.think
	err := e.client.ChatStream(ctx, ollama.ChatRequest{
		Model:    e.model,
		Messages: toMessages(turns),
		Think:    &think,
	}, func(c ollama.ChatChunk) error {
		if c.Message.Thinking != "" {
			send(c.Message.Thinking, protocol.StateThinking)
		}
		if c.Message.Content != "" {
			send(c.Message.Content, protocol.StateAnswering)
		}
		return nil
	})

	switch {
	case err == nil:
		e.logger.Info("generation finished", "tokens", numTokens)
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		e.logger.Info("generation interrupted", "tokens", numTokens)
	default:
		e.logger.Error("generation failed", "error", err)
		emit(protocol.ErrorEvent(fmt.Sprintf("生成失败: %v", err)))
	}
}

// toMessages 助手消息的思考部分放进 thinking 字段
func toMessages(turns []protocol.ChatTurn) []ollama.Message {
	msgs := make([]ollama.Message, 0, len(turns))
	for _, t := range turns {
		m := ollama.Message{Role: string(t.Role), Content: t.Content}
		if t.Role == protocol.RoleAssistant {
			m.Content = t.Answer()
			m.Thinking = t.Reasoning()
		}
		msgs = append(msgs, m)
	}
	return msgs
}
