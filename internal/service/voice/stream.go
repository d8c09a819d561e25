package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Transcriber turns one buffered utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, sessionID string, audio []byte) (string, error)
}

var (
	ErrAlreadyStarted = errors.New("recognition already started")
	ErrNotListening   = errors.New("recognition is not active")
	ErrAudioTooLarge  = errors.New("audio exceeds capture limit")
)

// DefaultMaxAudioBytes bounds one utterance (~60s of 16kHz 16bit mono).
const DefaultMaxAudioBytes = 2 << 20

// StreamRecognizer is a Recognizer fed with audio chunks pushed by the widget
// client. Stop hands the buffered audio to a Transcriber in the background.
type StreamRecognizer struct {
	ctx         context.Context
	sessionID   string
	transcriber Transcriber
	maxBytes    int

	mu      sync.Mutex
	active  bool
	handler EventHandler
	buf     []byte
}

// NewStreamRecognizer binds the recognizer to ctx; transcription stops when
// ctx is cancelled.
func NewStreamRecognizer(ctx context.Context, sessionID string, t Transcriber, maxBytes int) *StreamRecognizer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAudioBytes
	}
	return &StreamRecognizer{ctx: ctx, sessionID: sessionID, transcriber: t, maxBytes: maxBytes}
}

func (r *StreamRecognizer) Start(handler EventHandler) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := r.ctx.Err(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.active = true
	r.handler = handler
	r.buf = r.buf[:0]
	r.mu.Unlock()

	handler(Event{Kind: EventStart})
	return nil
}

// Feed appends captured audio to the current utterance.
func (r *StreamRecognizer) Feed(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return ErrNotListening
	}
	if len(r.buf)+len(chunk) > r.maxBytes {
		return ErrAudioTooLarge
	}
	r.buf = append(r.buf, chunk...)
	return nil
}

// Fail ends the utterance with a capture error reported by the client.
func (r *StreamRecognizer) Fail(code ErrorCode) error {
	handler, _, ok := r.finish()
	if !ok {
		return ErrNotListening
	}
	handler(Event{Kind: EventError, Code: code})
	handler(Event{Kind: EventEnd})
	return nil
}

func (r *StreamRecognizer) Stop() error {
	handler, audio, ok := r.finish()
	if !ok {
		return nil
	}
	go r.transcribe(handler, audio)
	return nil
}

func (r *StreamRecognizer) finish() (EventHandler, []byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, nil, false
	}
	r.active = false
	audio := append([]byte(nil), r.buf...)
	r.buf = r.buf[:0]
	handler := r.handler
	r.handler = nil
	return handler, audio, true
}

func (r *StreamRecognizer) transcribe(handler EventHandler, audio []byte) {
	defer handler(Event{Kind: EventEnd})

	if len(audio) == 0 {
		handler(Event{Kind: EventError, Code: ErrAudioCapture})
		return
	}
	text, err := r.transcriber.Transcribe(r.ctx, r.sessionID, audio)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		zap.S().Warnw("[voice] transcription failed", "session_id", r.sessionID, "error", err)
		handler(Event{Kind: EventError, Code: ErrNetwork})
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		handler(Event{Kind: EventError, Code: ErrNoSpeech})
		return
	}
	handler(Event{Kind: EventResult, Transcript: text})
}
