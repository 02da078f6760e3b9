package worker

import (
	"sync"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
)

// Listener 接收 worker 事件
type Listener interface {
	Handle(ev protocol.Event)
}

// ListenerFunc 函数形式的 Listener
type ListenerFunc func(ev protocol.Event)

// Handle 调用 f
func (f ListenerFunc) Handle(ev protocol.Event) { f(ev) }

type subscriber struct {
	id       uint64
	listener Listener
	statuses map[protocol.Status]bool // 为空表示接收全部
}

// Bus 事件监听注册表
type Bus struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64
	closed bool
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{}
}

// Subscription 订阅句柄，Cancel 可重复调用
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Cancel 取消订阅
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.once.Do(func() { s.bus.unsubscribe(s.id) })
}

// Subscribe 注册 listener，statuses 为空时接收全部事件
// 总线关闭后返回一个已失效的订阅
func (b *Bus) Subscribe(l Listener, statuses ...protocol.Status) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return &Subscription{}
	}

	b.nextID++
	sub := subscriber{id: b.nextID, listener: l}
	if len(statuses) > 0 {
		sub.statuses = make(map[protocol.Status]bool, len(statuses))
		for _, s := range statuses {
			sub.statuses[s] = true
		}
	}
	b.subs = append(b.subs, sub)
	return &Subscription{bus: b, id: sub.id}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish 按订阅顺序同步分发
func (b *Bus) Publish(ev protocol.Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.statuses == nil || s.statuses[ev.Status] {
			s.listener.Handle(ev)
		}
	}
}

// Len 当前订阅数
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 移除全部订阅，之后的 Subscribe 不再生效
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = nil
	b.closed = true
}
