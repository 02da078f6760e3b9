package engine

import (
	"github.com/Zacy-Sokach/ThinkChat/internal/ollama"
	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/Zacy-Sokach/ThinkChat/internal/worker"
)

// layerTracker 把 pull 进度行翻译成按层 digest 区分的 initiate/progress/done 事件
type layerTracker struct {
	model  string
	emit   worker.Emitter
	seen   map[string]bool
	active []string
}

func newLayerTracker(model string, emit worker.Emitter) *layerTracker {
	return &layerTracker{model: model, emit: emit, seen: make(map[string]bool)}
}

func (l *layerTracker) observe(p ollama.PullProgress) {
	if p.Digest == "" {
		// manifest、verifying 等阶段行，之前的层都已下载完
		l.finishAll()
		if p.Status != "" {
			l.emit(protocol.LoadingEvent(p.Status))
		}
		return
	}

	if !l.seen[p.Digest] {
		l.seen[p.Digest] = true
		l.active = append(l.active, p.Digest)
		l.emit(protocol.InitiateEvent(p.Digest, map[string]any{"name": l.model, "status": p.Status}))
	}
	if !l.isActive(p.Digest) {
		return
	}

	var percent float64
	if p.Total > 0 {
		percent = float64(p.Completed) / float64(p.Total) * 100
	}
	l.emit(protocol.ProgressEvent(p.Digest, percent, float64(p.Total)))

	if p.Total > 0 && p.Completed >= p.Total {
		l.finish(p.Digest)
	}
}

func (l *layerTracker) isActive(digest string) bool {
	for _, d := range l.active {
		if d == digest {
			return true
		}
	}
	return false
}

func (l *layerTracker) finish(digest string) {
	for i, d := range l.active {
		if d == digest {
			l.active = append(l.active[:i], l.active[i+1:]...)
			l.emit(protocol.DoneEvent(digest))
			return
		}
	}
}

func (l *layerTracker) finishAll() {
	for _, d := range l.active {
		l.emit(protocol.DoneEvent(d))
	}
	l.active = nil
}
