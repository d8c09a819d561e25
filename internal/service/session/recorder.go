package session

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	"github.com/zhouzirui/botrix/backend/internal/pubsub"
	"github.com/zhouzirui/botrix/backend/internal/store"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type record struct {
	kind    pubsub.Kind
	session chat.Session
	id      string
	at      time.Time
	msg     chat.PersistedMessage
}

// Recorder is the persisting Emitter. A single worker applies records in
// emission order; failures are logged and dropped.
type Recorder struct {
	sessions store.SessionStore
	messages store.MessageStore
	broker   pubsub.Broker

	queue  chan record
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the background writer. broker may be nil.
func NewRecorder(sessions store.SessionStore, messages store.MessageStore, broker pubsub.Broker, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		sessions: sessions,
		messages: messages,
		broker:   broker,
		queue:    make(chan record, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) OnSessionStart(sess chat.Session) {
	r.enqueue(record{kind: pubsub.KindSessionStarted, session: sess, id: sess.SessionID, at: sess.LastActivity})
}

func (r *Recorder) OnSessionTouch(sessionID string, at time.Time) {
	r.enqueue(record{kind: pubsub.KindSessionTouched, id: sessionID, at: at})
}

func (r *Recorder) OnUserMessage(sessionID string, msg chat.ChatMessage) {
	r.enqueueMessage(sessionID, msg)
}

func (r *Recorder) OnBotMessage(sessionID string, msg chat.ChatMessage) {
	r.enqueueMessage(sessionID, msg)
}

func (r *Recorder) enqueueMessage(sessionID string, msg chat.ChatMessage) {
	r.enqueue(record{
		kind: pubsub.KindMessage,
		id:   sessionID,
		at:   msg.Timestamp,
		msg: chat.PersistedMessage{
			SessionID:   sessionID,
			MessageText: msg.Text,
			Sender:      msg.Sender,
			CreatedAt:   msg.Timestamp,
		},
	})
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		zap.S().Warnw("[recorder] queue full, dropping record",
			"kind", rec.kind,
			"session_id", rec.id,
		)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for rec := range r.queue {
		r.apply(rec)
	}
}

func (r *Recorder) apply(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch rec.kind {
	case pubsub.KindSessionStarted:
		err = r.sessions.CreateSession(ctx, rec.session)
	case pubsub.KindSessionTouched:
		err = r.sessions.TouchSession(ctx, rec.id, rec.at)
	case pubsub.KindMessage:
		err = r.messages.InsertMessage(ctx, rec.msg)
	}
	if err != nil {
		zap.S().Errorw("[recorder] write failed",
			"kind", rec.kind,
			"session_id", rec.id,
			"error", err,
		)
		return
	}

	if r.broker == nil {
		return
	}
	evt := pubsub.Event{Kind: rec.kind, SessionID: rec.id, BotID: rec.session.BotID, At: rec.at}
	if err := r.broker.Publish(ctx, evt); err != nil {
		zap.S().Warnw("[recorder] publish failed", "kind", rec.kind, "error", err)
	}
}

// Close stops accepting records and waits for the queue to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}
