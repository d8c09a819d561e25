// Package voice adapts an optional speech-to-text capability into a
// single-shot toggle that feeds the widget input.
package voice

// EventKind 识别器回调事件类型
type EventKind string

const (
	EventStart  EventKind = "start"
	EventResult EventKind = "result"
	EventError  EventKind = "error"
	EventEnd    EventKind = "end"
)

// ErrorCode mirrors the recognizer's error vocabulary.
type ErrorCode string

const (
	ErrNoSpeech     ErrorCode = "no-speech"
	ErrAudioCapture ErrorCode = "audio-capture"
	ErrNotAllowed   ErrorCode = "not-allowed"
	ErrNetwork      ErrorCode = "network"
)

// Event is delivered by a Recognizer after Start.
type Event struct {
	Kind       EventKind
	Transcript string
	Code       ErrorCode
}

// EventHandler receives recognizer events. It may be called from any goroutine.
type EventHandler func(Event)

// Recognizer captures at most one utterance per Start.
type Recognizer interface {
	Start(handler EventHandler) error
	Stop() error
}

// Capability is either Available with a recognizer or Unavailable.
type Capability struct {
	recognizer Recognizer
}

// Available wraps a working recognizer.
func Available(r Recognizer) Capability {
	return Capability{recognizer: r}
}

// Unavailable 表示宿主不支持语音识别
func Unavailable() Capability {
	return Capability{}
}

// Recognizer returns the recognizer and whether the capability is present.
func (c Capability) Recognizer() (Recognizer, bool) {
	return c.recognizer, c.recognizer != nil
}

// Supported reports whether voice input can be offered at all.
func (c Capability) Supported() bool {
	return c.recognizer != nil
}
