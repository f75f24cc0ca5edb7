package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Corphon/PersonaChat/internal/models"
)

func TestExtractSceneDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"scene_description": "Rain taps the window."}`, "Rain taps the window."},
		{"surrounded", "Here you go:\n{\"scene_description\": \"Rain.\"}\nThanks", "Rain."},
		{"fenced", "```json\n{\"scene_description\": \"Fog rolls in.\"}\n```", "Fog rolls in."},
		{"second object", `{"note": 1} and {"scene_description": "Later."}`, "Later."},
		{"non-string value", `{"scene_description": 42}`, `{"scene_description": 42}`},
		{"no json", "Just prose about the scene.", "Just prose about the scene."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSceneDescription(tt.raw); got != tt.want {
				t.Errorf("ExtractSceneDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"location": "Dusty Library"}`, "Dusty Library"},
		{`Sure, "location": "Space Station" works`, "Space Station"},
		{"  Medieval Tavern  ", "Medieval Tavern"},
		{"   ", FallbackLocationName},
	}
	for _, tt := range tests {
		if got := ExtractLocation(tt.raw); got != tt.want {
			t.Errorf("ExtractLocation(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNarrationPromptsReflectOutcome(t *testing.T) {
	in := NarrationInput{
		Character:      testCharacter(),
		Record:         models.DefaultRecord("I'll help."),
		UserMessage:    `{"action": "climb the wall"}`,
		IsPlayerAction: true,
		ActionSuccess:  false,
	}

	system, prompt := NarrationPrompts(in)
	if !strings.Contains(system, "outcome (failure)") {
		t.Errorf("system prompt should describe a failure:\n%s", system)
	}
	if !strings.Contains(prompt, "Player attempts to climb the wall but fails") {
		t.Errorf("prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, `Character's dialogue: "I'll help."`) {
		t.Errorf("dialogue missing:\n%s", prompt)
	}

	again, _ := NarrationPrompts(in)
	if again != system {
		t.Error("narration prompts should be deterministic")
	}
}

func TestNarrateFallbackOnError(t *testing.T) {
	env := newTestEnv(t)
	env.remote.fail(errors.New("boom"))

	got := env.narrator.Narrate(context.Background(), NarrationInput{
		Character:   testCharacter(),
		Record:      models.DefaultRecord("Hi"),
		UserMessage: "Hello",
	})
	if got != FallbackSceneDescription {
		t.Errorf("Narrate = %q", got)
	}
}

func TestGenerateLocation(t *testing.T) {
	env := newTestEnv(t)
	env.remote.reply(`{"location": "Beachside Cafe"}`).fail(errors.New("down"))

	character := testCharacter()
	if got := env.narrator.GenerateLocation(context.Background(), character, "coastal", false); got != "Beachside Cafe" {
		t.Errorf("GenerateLocation = %q", got)
	}
	call := env.remote.calls()[0]
	if !strings.Contains(call.Prompt, "Desired location type: coastal") || call.MaxTokens != 0 {
		t.Errorf("call = %+v", call)
	}

	if got := env.narrator.GenerateLocation(context.Background(), character, "", false); got != FallbackLocationName {
		t.Errorf("GenerateLocation on error = %q", got)
	}
}
