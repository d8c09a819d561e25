package voice

import (
	"sync"

	"go.uber.org/zap"
)

// Hooks connect the adapter to its host. Nil hooks are ignored. Hooks are
// invoked without the adapter lock held.
type Hooks struct {
	Notify       func(Notification)
	OnTranscript func(text string)
	OnChange     func(listening bool)
}

// Adapter 管理 idle ⇄ listening 状态，每次 Toggle 最多识别一句
type Adapter struct {
	capability Capability
	hooks      Hooks

	mu        sync.Mutex
	listening bool
}

// NewAdapter 创建语音输入适配器
func NewAdapter(capability Capability, hooks Hooks) *Adapter {
	return &Adapter{capability: capability, hooks: hooks}
}

// Supported reports whether a recognizer is present.
func (a *Adapter) Supported() bool {
	return a.capability.Supported()
}

// Listening reports the current state.
func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Toggle starts capture when idle and stops it when listening. Without a
// recognizer it only raises the "not supported" notification.
func (a *Adapter) Toggle() {
	rec, ok := a.capability.Recognizer()
	if !ok {
		a.notify(notSupported)
		return
	}

	if a.Listening() {
		if err := rec.Stop(); err != nil {
			zap.S().Warnw("[voice] stop recognition failed", "error", err)
			a.setListening(false)
		}
		return
	}

	if err := rec.Start(a.handle); err != nil {
		zap.S().Warnw("[voice] start recognition failed", "error", err)
		a.setListening(false)
		a.notify(startFailed)
	}
}

// Stop ends an active capture. It is a no-op when idle, so a late
// end-of-utterance signal never starts a new capture.
func (a *Adapter) Stop() {
	rec, ok := a.capability.Recognizer()
	if !ok || !a.Listening() {
		return
	}
	if err := rec.Stop(); err != nil {
		zap.S().Warnw("[voice] stop recognition failed", "error", err)
		a.setListening(false)
	}
}

func (a *Adapter) handle(evt Event) {
	switch evt.Kind {
	case EventStart:
		a.setListening(true)
	case EventResult:
		if a.hooks.OnTranscript != nil {
			a.hooks.OnTranscript(evt.Transcript)
		}
		a.setListening(false)
	case EventError:
		zap.S().Infow("[voice] recognition error", "code", evt.Code)
		a.setListening(false)
		a.notify(ErrorNotification(evt.Code))
	case EventEnd:
		a.setListening(false)
	}
}

func (a *Adapter) setListening(v bool) {
	a.mu.Lock()
	changed := a.listening != v
	a.listening = v
	a.mu.Unlock()

	if changed && a.hooks.OnChange != nil {
		a.hooks.OnChange(v)
	}
}

func (a *Adapter) notify(n Notification) {
	if a.hooks.Notify != nil {
		a.hooks.Notify(n)
	}
}
