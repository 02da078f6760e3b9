package tui

import (
	"sync"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/Zacy-Sokach/ThinkChat/internal/worker"
	tea "github.com/charmbracelet/bubbletea"
)

// WorkerEventMsg worker 事件进入 bubbletea 消息循环
type WorkerEventMsg struct {
	Event protocol.Event
}

// WorkerStoppedMsg worker 连接已停止
type WorkerStoppedMsg struct{}

// eventBridge 把 worker 的监听回调转成 channel，Update 中逐个读取，保持事件顺序
type eventBridge struct {
	events  chan protocol.Event
	quit    chan struct{}
	stopped <-chan struct{}
	sub     *worker.Subscription
	once    sync.Once
}

func newEventBridge(conn *worker.Conn) *eventBridge {
	b := &eventBridge{
		events:  make(chan protocol.Event, 256),
		quit:    make(chan struct{}),
		stopped: conn.Done(),
	}
	b.sub = conn.Subscribe(worker.ListenerFunc(b.forward))
	return b
}

// forward 在 worker 的事件 goroutine 中调用；界面退出后不再阻塞
func (b *eventBridge) forward(ev protocol.Event) {
	select {
	case b.events <- ev:
	case <-b.quit:
	}
}

// wait 读取下一条事件
func (b *eventBridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-b.events:
			return WorkerEventMsg{Event: ev}
		case <-b.quit:
			return nil
		case <-b.stopped:
			// 先取完已经到达的事件
			select {
			case ev := <-b.events:
				return WorkerEventMsg{Event: ev}
			default:
				return WorkerStoppedMsg{}
			}
		}
	}
}

// close 停止转发并取消监听，可重复调用
func (b *eventBridge) close() {
	b.once.Do(func() {
		close(b.quit)
		b.sub.Cancel()
	})
}
