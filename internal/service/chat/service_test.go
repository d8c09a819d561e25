package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/zhouzirui/botrix/backend/internal/model/chat"
	chat "github.com/zhouzirui/botrix/backend/internal/service/chat"
)

func TestServiceLoadTranscript(t *testing.T) {
	svc := chat.NewService(0, 0)
	ctx := context.Background()

	err := svc.SaveMessages(ctx, "s1",
		model.ChatMessage{Text: "hi", Sender: model.SenderUser},
		model.ChatMessage{Text: "hello", Sender: model.SenderBot},
	)
	if err != nil {
		t.Fatalf("SaveMessages err: %v", err)
	}

	got, err := svc.LoadTranscript(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(got) != 2 || got[0].Text != "hi" || got[1].Sender != model.SenderBot {
		t.Fatalf("unexpected transcript: %+v", got)
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned: %+v", got[0])
	}
}

func TestServiceLoadTranscriptNotFound(t *testing.T) {
	svc := chat.NewService(0, 0)
	if _, err := svc.LoadTranscript(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.SaveMessages(context.Background(), ""); !errors.Is(err, chat.ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
}

func TestServiceKeepsNewestMessages(t *testing.T) {
	svc := chat.NewService(3, 0)
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		if err := svc.SaveMessages(ctx, "s1", model.ChatMessage{Text: text, Sender: model.SenderUser}); err != nil {
			t.Fatalf("SaveMessages err: %v", err)
		}
	}

	got, _ := svc.LoadTranscript(ctx, "s1")
	if len(got) != 3 || got[0].Text != "c" || got[2].Text != "e" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
}

func TestServiceEvictsBeyondMaxSessions(t *testing.T) {
	svc := chat.NewService(0, 2)
	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		if err := svc.SaveMessages(ctx, id, model.ChatMessage{Text: "x", Sender: model.SenderUser}); err != nil {
			t.Fatalf("SaveMessages err: %v", err)
		}
	}
	if svc.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", svc.Len())
	}
	if _, err := svc.LoadTranscript(ctx, "s3"); err != nil {
		t.Fatalf("newest session should be kept: %v", err)
	}

	svc.Forget("s3")
	if svc.Len() != 1 {
		t.Fatalf("expected 1 session after Forget, got %d", svc.Len())
	}
}
