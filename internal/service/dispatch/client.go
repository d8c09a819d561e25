// Package dispatch posts widget messages to a bot's webhook and turns
// whatever comes back into reply text.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Fallback replies, one per failure class.
const (
	FallbackConnection = "I'm having connection issues. Please check that your webhook is active and try again."
	FallbackTrouble    = "I'm having trouble processing your request right now. Please try again."
	FallbackRephrase   = "I'm here to help! Could you please rephrase your question?"
	FallbackReceived   = "I received your message! How can I help you?"
)

// MaxPlainReplyLength bounds raw (non-JSON) bodies used verbatim, in runes.
const MaxPlainReplyLength = 2000

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ReplyFields are checked in order; the first truthy one wins.
var ReplyFields = []string{"output", "message", "response", "text", "reply", "answer", "result"}

// Outcome classifies how the reply text was chosen.
type Outcome string

const (
	OutcomeField      Outcome = "field"
	OutcomePlain      Outcome = "plain"
	OutcomeConnection Outcome = "connection_error"
	OutcomeStatus     Outcome = "bad_status"
	OutcomeEmpty      Outcome = "empty_body"
	OutcomeUnreadable Outcome = "unrecognized_body"
)

// Result is the bot text to display plus how it was obtained.
type Result struct {
	Reply      string
	Outcome    Outcome
	StatusCode int
}

// Envelope is the JSON body sent to every webhook.
type Envelope struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
	ChatInput string `json:"chatInput"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Client sends envelopes. It never retries.
type Client struct {
	http *http.Client
	now  func() time.Time
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each round trip. Zero keeps requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Transport: c.http.Transport, Timeout: d}
		}
	}
}

// NewClient 创建 webhook 客户端，默认不设置超时。
func NewClient(opts ...Option) *Client {
	c := &Client{http: &http.Client{}, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts text for sessionID and always returns displayable reply text.
func (c *Client) Send(ctx context.Context, webhookURL, sessionID, text string) Result {
	body, err := json.Marshal(Envelope{
		Action:    "sendMessage",
		SessionID: sessionID,
		ChatInput: text,
		Message:   text,
		Timestamp: c.now().UTC().Format(timestampLayout),
	})
	if err != nil {
		return Result{Reply: FallbackConnection, Outcome: OutcomeConnection}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		zap.S().Warnw("[dispatch] build request failed", "session_id", sessionID, "error", err)
		return Result{Reply: FallbackConnection, Outcome: OutcomeConnection}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		zap.S().Warnw("[dispatch] webhook unreachable", "session_id", sessionID, "error", err)
		return Result{Reply: FallbackConnection, Outcome: OutcomeConnection}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.S().Warnw("[dispatch] webhook returned error status", "session_id", sessionID, "status", resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		return Result{Reply: FallbackTrouble, Outcome: OutcomeStatus, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		zap.S().Warnw("[dispatch] read webhook body failed", "session_id", sessionID, "error", err)
		return Result{Reply: FallbackConnection, Outcome: OutcomeConnection, StatusCode: resp.StatusCode}
	}

	res := ParseReply(raw)
	res.StatusCode = resp.StatusCode
	return res
}

// ParseReply applies the body rules to an already successful response.
// Plain bodies are used verbatim; whitespace only decides emptiness.
func ParseReply(raw []byte) Result {
	body := string(raw)
	if strings.TrimSpace(body) == "" {
		return Result{Reply: FallbackRephrase, Outcome: OutcomeEmpty}
	}

	if reply, ok := fieldReply(raw); ok {
		return Result{Reply: reply, Outcome: OutcomeField}
	}

	if utf8.RuneCountInString(body) < MaxPlainReplyLength {
		return Result{Reply: body, Outcome: OutcomePlain}
	}
	return Result{Reply: FallbackReceived, Outcome: OutcomeUnreadable}
}

func fieldReply(raw []byte) (string, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", false
	}
	if list, ok := decoded.([]any); ok {
		if len(list) == 0 {
			return "", false
		}
		decoded = list[0]
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return "", false
	}
	for _, field := range ReplyFields {
		value, present := obj[field]
		if !present || !truthy(value) {
			continue
		}
		if s, ok := value.(string); ok {
			return s, true
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value), true
		}
		return string(encoded), true
	}
	return "", false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	default:
		return true
	}
}
