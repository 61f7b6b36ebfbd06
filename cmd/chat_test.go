package cmd

import (
	"testing"

	"github.com/crystaldolphin/chatkeeper/internal/conversation"
	"github.com/crystaldolphin/chatkeeper/internal/schema"
)

func TestHistoryMessages_MapsSpeakers(t *testing.T) {
	turns := []conversation.Turn{
		conversation.NewTurn(conversation.SpeakerSystemSummary, conversation.SummaryPrefix+"Ana asked about trains."),
		conversation.NewTurn(conversation.SpeakerUser, "and buses?"),
		conversation.NewTurn(conversation.SpeakerAssistant, "Every 10 minutes."),
	}

	msgs := historyMessages("be brief", turns)
	if msgs.Len() != 4 {
		t.Fatalf("expected 4 messages, got %d", msgs.Len())
	}

	wantRoles := []schema.Role{schema.RoleSystem, schema.RoleSystem, schema.RoleUser, schema.RoleAssistant}
	for i, want := range wantRoles {
		if got := msgs.Messages[i].Role; got != want {
			t.Errorf("message %d: expected role %q, got %q", i, want, got)
		}
	}
	if msgs.Messages[0].Content != "be brief" {
		t.Errorf("expected system prompt first, got %q", msgs.Messages[0].Content)
	}
	if msgs.Messages[2].Content != "and buses?" {
		t.Errorf("unexpected user content %q", msgs.Messages[2].Content)
	}
}

func TestHistoryMessages_Empty(t *testing.T) {
	msgs := historyMessages("sys", nil)
	if msgs.Len() != 1 {
		t.Fatalf("expected only the system prompt, got %d messages", msgs.Len())
	}
}
