package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoBackend 对每个命令回应固定事件
func echoBackend(ctx context.Context, cmds <-chan protocol.Command, emit Emitter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-cmds:
			switch cmd.Type {
			case protocol.CommandCheck:
				emit(protocol.ReadyEvent())
			case protocol.CommandGenerate:
				emit(protocol.StartEvent())
				for _, t := range cmd.Data {
					emit(protocol.UpdateEvent(t.Content, protocol.StateAnswering, 1, 1))
				}
				emit(protocol.CompleteEvent())
			}
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []protocol.Event
	signal chan struct{}
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan struct{}, 100)}
}

func (r *recorder) Handle(ev protocol.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []protocol.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.events) >= n {
			out := append([]protocol.Event(nil), r.events...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
}

func TestConnRoundTrip(t *testing.T) {
	c := Start(context.Background(), BackendFunc(echoBackend))
	defer c.Close()

	rec := newRecorder()
	c.Subscribe(rec)

	require.NoError(t, c.Send(protocol.CheckCommand()))
	idx := 3
	turns := []protocol.ChatTurn{protocol.UserTurn("hi"), {Role: protocol.RoleAssistant, Content: "abcdef", AnswerIndex: &idx}}
	require.NoError(t, c.Send(protocol.GenerateCommand(turns)))

	events := rec.wait(t, 5)
	statuses := make([]protocol.Status, len(events))
	for i, ev := range events {
		statuses[i] = ev.Status
	}
	assert.Equal(t, []protocol.Status{
		protocol.StatusReady, protocol.StatusStart, protocol.StatusUpdate, protocol.StatusUpdate, protocol.StatusComplete,
	}, statuses)
	assert.Equal(t, "abcdef", events[3].Output)
}

func TestConnCommandsAreCopied(t *testing.T) {
	got := make(chan protocol.Command, 1)
	c := Start(context.Background(), BackendFunc(func(ctx context.Context, cmds <-chan protocol.Command, emit Emitter) error {
		select {
		case cmd := <-cmds:
			got <- cmd
		case <-ctx.Done():
		}
		<-ctx.Done()
		return nil
	}))
	defer c.Close()

	turns := []protocol.ChatTurn{protocol.UserTurn("original")}
	cmd := protocol.Command{Type: protocol.CommandGenerate, Data: turns}
	require.NoError(t, c.Send(cmd))
	turns[0].Content = "mutated after send"

	select {
	case received := <-got:
		assert.Equal(t, "original", received.Data[0].Content)
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received command")
	}
}

func TestConnStatusFilter(t *testing.T) {
	c := Start(context.Background(), BackendFunc(echoBackend))
	defer c.Close()

	all := newRecorder()
	onlyComplete := newRecorder()
	c.Subscribe(all)
	c.Subscribe(onlyComplete, protocol.StatusComplete)

	require.NoError(t, c.Send(protocol.GenerateCommand(nil)))
	all.wait(t, 2)
	events := onlyComplete.wait(t, 1)
	assert.Equal(t, protocol.StatusComplete, events[0].Status)
}

func TestConnDropsMalformedEvents(t *testing.T) {
	c := Start(context.Background(), BackendFunc(echoBackend))
	defer c.Close()

	rec := newRecorder()
	c.Subscribe(rec)

	c.emitRaw([]byte("{not json"))
	c.emitRaw([]byte(`{"status":"telemetry","x":1}`))
	require.NoError(t, c.Send(protocol.CheckCommand()))

	events := rec.wait(t, 2)
	assert.Equal(t, protocol.Status("telemetry"), events[0].Status)
	assert.Equal(t, protocol.StatusReady, events[1].Status)
}

func TestSubscriptionCancel(t *testing.T) {
	c := Start(context.Background(), BackendFunc(echoBackend))
	defer c.Close()

	sub := c.Subscribe(ListenerFunc(func(protocol.Event) {}))
	other := c.Subscribe(ListenerFunc(func(protocol.Event) {}))
	assert.Equal(t, 2, c.Listeners())

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 1, c.Listeners())
	other.Cancel()
	assert.Equal(t, 0, c.Listeners())
}

func TestCloseReleasesListeners(t *testing.T) {
	c := Start(context.Background(), BackendFunc(echoBackend))
	c.Subscribe(ListenerFunc(func(protocol.Event) {}))
	c.Subscribe(ListenerFunc(func(protocol.Event) {}))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Listeners())

	// 卸载后才注册的监听不会生效
	late := c.Subscribe(ListenerFunc(func(protocol.Event) { t.Error("late listener called") }))
	late.Cancel()
	assert.Equal(t, 0, c.Listeners())

	assert.ErrorIs(t, c.Send(protocol.CheckCommand()), ErrClosed)
}

func TestConnBackendFailure(t *testing.T) {
	boom := errors.New("boom")
	c := Start(context.Background(), BackendFunc(func(ctx context.Context, cmds <-chan protocol.Command, emit Emitter) error {
		return boom
	}))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection not stopped after backend failure")
	}
	assert.ErrorIs(t, c.Send(protocol.LoadCommand()), ErrClosed)
	assert.ErrorIs(t, c.Close(), boom)
}

func TestConnBusy(t *testing.T) {
	// backend 从不读取命令
	c := Start(context.Background(), BackendFunc(func(ctx context.Context, cmds <-chan protocol.Command, emit Emitter) error {
		<-ctx.Done()
		return nil
	}), WithBuffer(1))
	defer c.Close()

	busy := 0
	for i := 0; i < 3; i++ {
		if errors.Is(c.Send(protocol.InterruptCommand()), ErrBusy) {
			busy++
		}
	}
	assert.GreaterOrEqual(t, busy, 1)
}
