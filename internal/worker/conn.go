// Package worker 是 UI 与推理 worker 之间唯一的通信通道
// worker 运行在独立的 goroutine 中，命令和事件都以编码后的消息传递，不共享可变内存
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed 连接已关闭
	ErrClosed = errors.New("worker connection closed")
	// ErrBusy 命令缓冲区已满
	ErrBusy = errors.New("worker command buffer full")
)

// Emitter worker 用来发送事件
type Emitter func(ev protocol.Event)

// Backend 推理 worker 的实现，视为黑盒
// Run 从 cmds 读取命令直到 ctx 取消，通过 emit 报告事件
type Backend interface {
	Run(ctx context.Context, cmds <-chan protocol.Command, emit Emitter) error
}

// BackendFunc 函数形式的 Backend
type BackendFunc func(ctx context.Context, cmds <-chan protocol.Command, emit Emitter) error

// Run 调用 f
func (f BackendFunc) Run(ctx context.Context, cmds <-chan protocol.Command, emit Emitter) error {
	return f(ctx, cmds, emit)
}

type options struct {
	logger *slog.Logger
	buffer int
}

// Option 连接选项
type Option func(*options)

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBuffer 设置命令与事件缓冲区大小
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// Conn 一个 worker 连接，每个组件生命周期只创建一次
type Conn struct {
	id     string
	in     chan []byte
	out    chan []byte
	bus    *Bus
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	group  *errgroup.Group
	ctx    context.Context
	err    error
	once   sync.Once
}

// Start 启动 backend 并返回连接
func Start(ctx context.Context, backend Backend, opts ...Option) *Conn {
	o := options{logger: slog.Default(), buffer: 64}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	c := &Conn{
		id:     uuid.NewString(),
		in:     make(chan []byte, o.buffer),
		out:    make(chan []byte, o.buffer),
		bus:    NewBus(),
		cancel: cancel,
		group:  g,
		ctx:    gctx,
	}
	c.logger = o.logger.With("worker", c.id[:8])

	cmds := make(chan protocol.Command)
	g.Go(func() error { return c.pumpCommands(gctx, cmds) })
	g.Go(func() error { return c.pumpEvents(gctx) })
	g.Go(func() error {
		err := backend.Run(gctx, cmds, c.emit)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("worker backend stopped", "error", err)
			return err
		}
		return nil
	})

	c.logger.Debug("worker started")
	return c
}

// ID 连接标识
func (c *Conn) ID() string {
	return c.id
}

// Send 发送命令，不等待任何确认，结果稍后以事件形式出现
func (c *Conn) Send(cmd protocol.Command) error {
	b, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.ctx.Err() != nil {
		return ErrClosed
	}

	select {
	case c.in <- b:
		c.logger.Debug("command sent", "type", cmd.Type, "turns", len(cmd.Data))
		return nil
	default:
		return ErrBusy
	}
}

// Subscribe 注册事件监听，连接关闭时会被统一移除
func (c *Conn) Subscribe(l Listener, statuses ...protocol.Status) *Subscription {
	return c.bus.Subscribe(l, statuses...)
}

// Listeners 当前监听数量
func (c *Conn) Listeners() int {
	return c.bus.Len()
}

// Done worker 停止时关闭
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close 停止 worker，等待内部 goroutine 退出并释放全部监听；可重复调用
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.err = c.group.Wait()
		c.bus.Close()
		c.logger.Debug("worker closed")
	})
	return c.err
}

func (c *Conn) pumpCommands(ctx context.Context, cmds chan<- protocol.Command) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-c.in:
			cmd, err := protocol.DecodeCommand(b)
			if err != nil {
				c.logger.Warn("dropping command", "error", err)
				continue
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Conn) pumpEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-c.out:
			ev, err := protocol.DecodeEvent(b)
			if err != nil {
				c.logger.Warn("dropping event", "error", err)
				continue
			}
			c.bus.Publish(ev)
		}
	}
}

func (c *Conn) emit(ev protocol.Event) {
	b, err := protocol.EncodeEvent(ev)
	if err != nil {
		c.logger.Warn("dropping event", "status", ev.Status, "error", err)
		return
	}
	c.emitRaw(b)
}

func (c *Conn) emitRaw(b []byte) {
	select {
	case c.out <- b:
	case <-c.ctx.Done():
	}
}
