// Package ai answers the demo bot's webhook, through an Ark chat model when
// configured and a catalogue echo otherwise.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/botrix/backend/internal/config"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
	chatsvc "github.com/zhouzirui/botrix/backend/internal/service/chat"
)

// Service keeps a short per-session history and produces demo replies.
type Service struct {
	chain     compose.Runnable[map[string]any, *schema.Message]
	system    string
	catalogue []CatalogueItem
	history   *chatsvc.Service
}

// NewService 根据配置创建服务；Ark 未配置时只使用回显。
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	if !cfg.Enabled() {
		zap.S().Infow("[ai] Ark 凭证未配置，演示机器人使用目录回显")
		return NewEchoService(cfg.HistoryLimit), nil
	}
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.HistoryLimit)
}

// NewEchoService answers from the catalogue only.
func NewEchoService(historyLimit int) *Service {
	return newService(nil, historyLimit)
}

// NewServiceWithModel compiles the prompt chain around chatModel.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, historyLimit int) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return newService(runnable, historyLimit), nil
}

func newService(chain compose.Runnable[map[string]any, *schema.Message], historyLimit int) *Service {
	return &Service{
		chain:     chain,
		system:    BuildSystemPrompt(DemoCatalogue),
		catalogue: DemoCatalogue,
		history:   chatsvc.NewService(historyLimit, chatsvc.DefaultMaxSessions),
	}
}

// ModelEnabled reports whether replies come from the chat model.
func (s *Service) ModelEnabled() bool {
	return s.chain != nil
}

// Reply answers query for sessionID. A model failure falls back to the echo
// so the demo webhook always has an answer.
func (s *Service) Reply(ctx context.Context, sessionID, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Ask me about inverters, UPS systems or batteries."
	}

	answer := ""
	if s.chain != nil {
		resp, err := s.chain.Invoke(ctx, s.buildChainInput(sessionID, query))
		if err != nil {
			zap.S().Warnw("[ai] chain failed, falling back to echo", "session_id", sessionID, "error", err)
		} else {
			answer = strings.TrimSpace(resp.Content)
		}
	}
	if answer == "" {
		answer = EchoReply(s.catalogue, query)
	}

	if err := s.history.SaveMessages(ctx, sessionID,
		chat.ChatMessage{Text: query, Sender: chat.SenderUser},
		chat.ChatMessage{Text: answer, Sender: chat.SenderBot},
	); err != nil {
		zap.S().Debugw("[ai] history not saved", "session_id", sessionID, "error", err)
	}
	zap.S().Debugw("[ai] generated response", "session_id", sessionID, "length", len(answer))
	return answer
}

// History returns the remembered turns for sessionID.
func (s *Service) History(sessionID string) []chat.ChatMessage {
	// 未知会话视为空历史
	messages, _ := s.history.LoadTranscript(context.Background(), sessionID)
	return messages
}

// Forget drops a session's history.
func (s *Service) Forget(sessionID string) {
	s.history.Forget(sessionID)
}

func (s *Service) buildChainInput(sessionID, query string) map[string]any {
	return map[string]any{
		"system":  s.system,
		"history": buildHistoryMessages(s.History(sessionID)),
		"query":   query,
	}
}

func buildHistoryMessages(messages []chat.ChatMessage) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
