package services

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	apperrors "github.com/Corphon/PersonaChat/internal/errors"
	"github.com/Corphon/PersonaChat/internal/models"
)

func exportFixture(t *testing.T) (*testEnv, *models.ChatInstance) {
	t.Helper()
	env := newTestEnv(t)
	character := env.createCharacter(t, "Aria", "Hello, traveler.")
	chat, err := env.chats.Create(models.ChatCreateRequest{CharacterID: character.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	env.remote.reply(gardenReply, `{"scene_description": "Roses sway."}`)
	if _, err := env.chats.Turn(context.Background(), chat.ID, models.ChatTurnRequest{Message: "Hi there"}); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	return env, chat
}

func TestExportChatMarkdown(t *testing.T) {
	env, chat := exportFixture(t)
	exports := NewExportService(env.chats, env.characters, "")

	result, err := exports.ExportChat(chat.ID, "md")
	if err != nil {
		t.Fatalf("ExportChat: %v", err)
	}
	if result.Format != models.ExportMarkdown || result.FilePath != "" {
		t.Errorf("result = %+v", result)
	}

	content := string(result.Content)
	for _, want := range []string{"# Chat with Aria", "**User**: Hi there", "**Aria** (happy): Welcome to my garden!", "*Roses sway.*"} {
		if !strings.Contains(content, want) {
			t.Errorf("markdown missing %q:\n%s", want, content)
		}
	}
	if result.Stats.TotalTurns != 2 || result.Stats.UserMessages != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestExportChatJSONWritesFile(t *testing.T) {
	env, chat := exportFixture(t)
	dir := t.TempDir()
	exports := NewExportService(env.chats, env.characters, dir)

	result, err := exports.ExportChat(chat.ID, "json")
	if err != nil {
		t.Fatalf("ExportChat: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(result.Content, &decoded); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if _, ok := decoded["conversations"]; !ok {
		t.Error("JSON export should contain conversations")
	}

	onDisk, err := os.ReadFile(result.FilePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(onDisk, result.Content) || result.FileSize != int64(len(onDisk)) {
		t.Error("saved file does not match the export")
	}
}

func TestExportChatPDF(t *testing.T) {
	env, chat := exportFixture(t)
	exports := NewExportService(env.chats, env.characters, "")

	result, err := exports.ExportChat(chat.ID, "PDF")
	if err != nil {
		t.Fatalf("ExportChat: %v", err)
	}
	if !bytes.HasPrefix(result.Content, []byte("%PDF")) {
		t.Errorf("pdf export starts with %q", result.Content[:8])
	}
	if result.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", result.ContentType)
	}
}

func TestExportChatErrors(t *testing.T) {
	env, chat := exportFixture(t)
	exports := NewExportService(env.chats, env.characters, "")

	if _, err := exports.ExportChat(chat.ID, "docx"); !apperrors.IsValidationError(err) {
		t.Errorf("unsupported format: err = %v", err)
	}
	if _, err := exports.ExportChat("missing", "json"); !apperrors.IsNotFoundError(err) {
		t.Errorf("missing chat: err = %v", err)
	}
}

func TestExportStatistics(t *testing.T) {
	msg := "go"
	stats := ExportStatistics([]models.ConversationTurn{
		{Timestamp: "t1", Location: "Hall", Emotions: models.Emotions{"joy": 0.5}},
		{Timestamp: "t2", UserMessage: &msg, Location: "Hall", IsPlayerAction: true, ActionSuccess: boolPtr(true),
			Emotions: models.Emotions{"joy": 0.2, "fear": 0.1}},
		{Timestamp: "t3", UserMessage: &msg, Location: "Cellar", IsPlayerAction: true, ActionSuccess: boolPtr(false)},
	})

	if stats.PlayerActions != 2 || stats.Successes != 1 || stats.UserMessages != 2 {
		t.Errorf("counts = %+v", stats)
	}
	if strings.Join(stats.Locations, ",") != "Hall,Cellar" {
		t.Errorf("Locations = %v", stats.Locations)
	}
	if stats.EmotionDistribution["joy"] != 2 || stats.DateRange.StartDate != "t1" || stats.DateRange.EndDate != "t3" {
		t.Errorf("stats = %+v", stats)
	}
}
