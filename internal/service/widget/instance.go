// Package widget hosts chat widget instances: one instance per embedded
// widget lifetime, owning its message log and exchange state.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/botrix/backend/internal/analysis/format"
	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	"github.com/zhouzirui/botrix/backend/internal/service/dispatch"
	"github.com/zhouzirui/botrix/backend/internal/service/session"
	"github.com/zhouzirui/botrix/backend/internal/service/voice"
	"go.uber.org/zap"
)

var (
	ErrBlankInput = errors.New("message text is blank")
	ErrBusy       = errors.New("a message is already in flight")
	ErrClosed     = errors.New("widget is closed")
	ErrNoVoice    = errors.New("voice input is not available")
)

const (
	noticeTTL  = 5 * time.Second
	maxNotices = 5
)

// Dispatcher delivers one user message to a webhook and returns reply text.
type Dispatcher interface {
	Send(ctx context.Context, webhookURL, sessionID, text string) dispatch.Result
}

type entry struct {
	msg    chat.ChatMessage
	blocks []format.Block
}

// Instance is one mounted widget. All state changes go through its mutex;
// at most one exchange is in flight.
type Instance struct {
	session    chat.Session
	bot        botmodel.BotConfig
	theme      botmodel.Theme
	formatter  *format.Formatter
	dispatcher Dispatcher
	tracker    *session.Tracker
	emitter    session.Emitter
	replyDelay time.Duration
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	voice  *voice.Adapter
	stream *voice.StreamRecognizer

	mu           sync.Mutex
	open         bool
	log          []entry
	input        string
	loading      bool
	typing       bool
	notices      []Notice
	lastActivity time.Time
	closed       bool
	subscribers  map[chan struct{}]struct{}
}

type instanceParams struct {
	bot         botmodel.BotConfig
	userAgent   string
	open        bool
	dispatcher  Dispatcher
	tracker     *session.Tracker
	transcriber voice.Transcriber
	replyDelay  time.Duration
}

func newInstance(p instanceParams) *Instance {
	ctx, cancel := context.WithCancel(context.Background())
	sess := p.tracker.CreateSession(p.bot.ID, p.userAgent)

	w := &Instance{
		session:      sess,
		bot:          p.bot,
		theme:        botmodel.ResolveTheme(p.bot),
		formatter:    format.New(format.WithKeywords(p.bot.CategoryKeywords)),
		dispatcher:   p.dispatcher,
		tracker:      p.tracker,
		emitter:      p.tracker.Emitter(),
		replyDelay:   p.replyDelay,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		open:         p.open,
		lastActivity: time.Now(),
		subscribers:  make(map[chan struct{}]struct{}),
	}

	capability := voice.Unavailable()
	if p.transcriber != nil {
		w.stream = voice.NewStreamRecognizer(ctx, sess.SessionID, p.transcriber, 0)
		capability = voice.Available(w.stream)
	}
	w.voice = voice.NewAdapter(capability, voice.Hooks{
		Notify:       w.pushNotice,
		OnTranscript: w.replaceInput,
		OnChange:     func(bool) { w.changed() },
	})

	if welcome := p.bot.WelcomeMessage; welcome != "" {
		msg := w.newMessage(welcome, chat.SenderBot)
		w.log = append(w.log, entry{msg: msg, blocks: w.formatter.Format(msg.Text)})
		w.emitter.OnBotMessage(sess.SessionID, msg)
	}
	return w
}

// ID returns the session id, fixed for the instance lifetime.
func (w *Instance) ID() string {
	return w.session.SessionID
}

// Session returns the session record created at mount.
func (w *Instance) Session() chat.Session {
	return w.session
}

// Open shows the chat panel.
func (w *Instance) Open() { w.setOpen(true) }

// Minimize collapses the panel to its launcher button.
func (w *Instance) Minimize() { w.setOpen(false) }

// Toggle flips between open and minimized.
func (w *Instance) Toggle() {
	w.mu.Lock()
	open := !w.open
	w.mu.Unlock()
	w.setOpen(open)
}

func (w *Instance) setOpen(open bool) {
	w.mu.Lock()
	if w.closed || w.open == open {
		w.mu.Unlock()
		return
	}
	w.open = open
	w.touchLocked()
	w.mu.Unlock()
	w.changed()
}

// SetInput replaces the input field content.
func (w *Instance) SetInput(text string) {
	w.mu.Lock()
	if w.closed || w.input == text {
		w.mu.Unlock()
		return
	}
	w.input = text
	w.touchLocked()
	w.mu.Unlock()
	w.changed()
}

// Submit sends the current input field content.
func (w *Instance) Submit() error {
	w.mu.Lock()
	text := w.input
	w.mu.Unlock()
	return w.Send(text)
}

// Send appends the user message immediately and resolves the bot reply in
// the background. Blank text and concurrent sends are rejected.
func (w *Instance) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankInput
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.loading {
		w.mu.Unlock()
		return ErrBusy
	}
	msg := w.newMessage(text, chat.SenderUser)
	w.log = append(w.log, entry{msg: msg})
	w.input = ""
	w.loading = true
	w.typing = true
	w.touchLocked()
	w.wg.Add(1)
	w.mu.Unlock()
	w.changed()

	w.emitter.OnUserMessage(w.ID(), msg)
	w.tracker.TouchSession(w.ID())

	go w.exchange(text)
	return nil
}

func (w *Instance) exchange(text string) {
	defer w.wg.Done()

	res := w.dispatcher.Send(w.ctx, w.bot.WebhookURL, w.ID(), text)
	zap.S().Debugw("[widget] webhook resolved",
		"session_id", w.ID(),
		"outcome", res.Outcome,
		"status", res.StatusCode,
	)

	// 回复延迟随组件生命周期取消
	timer := time.NewTimer(w.replyDelay)
	defer timer.Stop()
	select {
	case <-w.ctx.Done():
		return
	case <-timer.C:
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	msg := w.newMessage(res.Reply, chat.SenderBot)
	w.log = append(w.log, entry{msg: msg, blocks: w.formatter.Format(msg.Text)})
	w.loading = false
	w.typing = false
	w.touchLocked()
	w.mu.Unlock()
	w.changed()

	w.emitter.OnBotMessage(w.ID(), msg)
}

// ToggleVoice starts or stops voice capture.
func (w *Instance) ToggleVoice() {
	if w.isClosed() {
		return
	}
	w.voice.Toggle()
}

// StopVoice ends the active capture; it does nothing while idle.
func (w *Instance) StopVoice() {
	if w.isClosed() {
		return
	}
	w.voice.Stop()
}

// FeedAudio appends captured audio to the active utterance.
func (w *Instance) FeedAudio(chunk []byte) error {
	if w.stream == nil {
		return ErrNoVoice
	}
	return w.stream.Feed(chunk)
}

// FailVoice reports a client-side capture failure.
func (w *Instance) FailVoice(code voice.ErrorCode) error {
	if w.stream == nil {
		return ErrNoVoice
	}
	return w.stream.Fail(code)
}

func (w *Instance) replaceInput(text string) {
	w.SetInput(text)
}

func (w *Instance) pushNotice(n voice.Notification) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.notices = append(w.notices, Notice{Notification: n, At: w.now()})
	if len(w.notices) > maxNotices {
		w.notices = w.notices[len(w.notices)-maxNotices:]
	}
	w.mu.Unlock()
	w.changed()
}

// Snapshot returns the current view. Notifications older than a few
// seconds are dropped.
func (w *Instance) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	live := w.notices[:0]
	for _, n := range w.notices {
		if now.Sub(n.At) < noticeTTL {
			live = append(live, n)
		}
	}
	w.notices = live

	messages := make([]MessageView, len(w.log))
	for i, e := range w.log {
		messages[i] = MessageView{ChatMessage: e.msg, Blocks: e.blocks}
	}
	return View{
		SessionID:      w.ID(),
		BotID:          w.bot.ID,
		BotName:        w.bot.Name,
		Open:           w.open,
		Theme:          w.theme,
		Messages:       messages,
		Input:          w.input,
		Loading:        w.loading,
		Typing:         w.typing,
		Listening:      w.voice.Listening(),
		VoiceSupported: w.voice.Supported(),
		Notifications:  append([]Notice(nil), live...),
		UpdatedAt:      w.lastActivity,
	}
}

// Messages returns a copy of the message log.
func (w *Instance) Messages() []chat.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]chat.ChatMessage, len(w.log))
	for i, e := range w.log {
		out[i] = e.msg
	}
	return out
}

// Subscribe returns a channel signalled after state changes. Signals are
// coalesced; readers should take a fresh Snapshot on each one.
func (w *Instance) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	w.subscribers[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			if _, ok := w.subscribers[ch]; ok {
				delete(w.subscribers, ch)
				close(ch)
			}
			w.mu.Unlock()
		})
	}
}

func (w *Instance) changed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close cancels pending work and waits for the in-flight exchange, if any.
// Subscribers are closed.
func (w *Instance) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.cancel()
	for ch := range w.subscribers {
		delete(w.subscribers, ch)
		close(ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// IdleFor reports how long the instance has seen no interaction.
func (w *Instance) IdleFor(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loading {
		return 0
	}
	return now.Sub(w.lastActivity)
}

func (w *Instance) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Instance) touchLocked() {
	w.lastActivity = w.now()
}

func (w *Instance) newMessage(text string, sender chat.Sender) chat.ChatMessage {
	return chat.ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: w.now().UTC(),
	}
}
