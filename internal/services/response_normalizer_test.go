package services

import (
	"strings"
	"testing"

	"github.com/Corphon/PersonaChat/internal/models"
)

func TestNormalizeResponsePassthrough(t *testing.T) {
	raw := `{"text":"Hi","mood":"happy","emotions":{"joy":0.9},"opinion_of_user":"positive","action":"waving","location":"Dusty Library"}`
	got := NormalizeResponse(raw)

	want := models.ResponseRecord{
		Text:          "Hi",
		Mood:          "happy",
		Emotions:      models.Emotions{"joy": 0.9},
		OpinionOfUser: "positive",
		Action:        "waving",
		Location:      "Dusty Library",
	}
	assertRecord(t, got, want)
}

func TestNormalizeResponseFencedBlock(t *testing.T) {
	got := NormalizeResponse("```json\n{\"text\":\"Hello there\"}\n```")

	want := models.DefaultRecord("")
	want.Text = "Hello there"
	assertRecord(t, got, want)
}

func TestNormalizeResponseHeuristicFallback(t *testing.T) {
	raw := "She smiles warmly. *gives a small bow* She is standing at the edge of a forest."
	got := NormalizeResponse(raw)

	if got.Text != raw {
		t.Errorf("text = %q, want whole sentence", got.Text)
	}
	if got.Mood != "happy" {
		t.Errorf("mood = %q, want happy", got.Mood)
	}
	if got.Action != "gives a small bow" {
		t.Errorf("action = %q", got.Action)
	}
	if !strings.Contains(got.Location, "edge of a forest") {
		t.Errorf("location = %q", got.Location)
	}
	if got.OpinionOfUser != "neutral" || len(got.Emotions) != 0 {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestNormalizeResponseStrategies(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		wantText string
		wantMood string
	}{
		{
			name:     "prose around object",
			raw:      `Sure! Here you go: {"text":"Hi","mood":"happy"} Hope that helps`,
			wantText: "Hi",
			wantMood: "happy",
		},
		{
			name:     "object after unrelated object",
			raw:      `{"note":"x"} and then {"text":"real"}`,
			wantText: "real",
			wantMood: "neutral",
		},
		{
			name:     "object before unrelated object",
			raw:      `{"text":"first","mood":"sad"} trailing {"mood":"x"}`,
			wantText: "first",
			wantMood: "sad",
		},
		{
			name:     "fenced block without tag",
			raw:      "Reply:\n```\n{\"text\": \"plain fence\", \"mood\": \"curious\"}\n```\n{oops",
			wantText: "plain fence",
			wantMood: "curious",
		},
		{
			name:     "object without text key falls back",
			raw:      `Hello {"mood": "happy"} friend`,
			wantText: "Hello  friend",
			wantMood: "happy",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeResponse(tc.raw)
			if got.Text != tc.wantText {
				t.Errorf("text = %q, want %q", got.Text, tc.wantText)
			}
			if got.Mood != tc.wantMood {
				t.Errorf("mood = %q, want %q", got.Mood, tc.wantMood)
			}
		})
	}
}

func TestNormalizeResponseCoercion(t *testing.T) {
	raw := `{"text": 42, "mood": null, "action": ["a","b"], "emotions": {"joy": "0.5", "fear": "lots", "calm": 1}}`
	got := NormalizeResponse(raw)

	if got.Text != "42" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Mood != "neutral" {
		t.Errorf("null mood should default, got %q", got.Mood)
	}
	if got.Action != `["a","b"]` {
		t.Errorf("action = %q", got.Action)
	}
	if len(got.Emotions) != 2 || got.Emotions["joy"] != 0.5 || got.Emotions["calm"] != 1 {
		t.Errorf("emotions = %v", got.Emotions)
	}

	got = NormalizeResponse(`{"text":"x","emotions":"very happy"}`)
	if got.Emotions == nil || len(got.Emotions) != 0 {
		t.Errorf("non-object emotions should become empty map, got %v", got.Emotions)
	}
}

func TestNormalizeResponseHeuristics(t *testing.T) {
	cases := []struct {
		raw          string
		wantMood     string
		wantAction   string
		wantLocation string
	}{
		{"He frowns and sighs.", "sad", "standing still", "current location"},
		{"I sigh, then laugh.", "happy", "standing still", "current location"},
		{"You make me furious!", "angry", "standing still", "current location"},
		{"Fine (crosses arms) whatever", "neutral", "crosses arms", "current location"},
		{"** nothing here", "neutral", "standing still", "current location"},
		{"Meet me at a quiet inn. Bring coin.", "neutral", "standing still", "quiet inn"},
		{"What a lovely evening.", "neutral", "standing still", "lovely evening"},
		{"Sit at the bar", "neutral", "standing still", "bar"},
		{"Nothing to see.", "neutral", "standing still", "current location"},
	}

	for _, tc := range cases {
		got := NormalizeResponse(tc.raw)
		if got.Mood != tc.wantMood || got.Action != tc.wantAction || got.Location != tc.wantLocation {
			t.Errorf("NormalizeResponse(%q) = mood %q action %q location %q, want %q %q %q",
				tc.raw, got.Mood, got.Action, got.Location, tc.wantMood, tc.wantAction, tc.wantLocation)
		}
	}
}

func TestNormalizeResponseTotality(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"{",
		"}{",
		"```",
		"```json\n{\"text\":",
		`{"text":`,
		"null",
		"[1,2,3]",
		`"just a string"`,
		`{"emotions":"high"}`,
		strings.Repeat("{", 2000),
		strings.Repeat(`{"a":`, 500) + strings.Repeat("}", 499),
		"\xff\xfe\x00garbage",
		`{"text": {"nested": true}}`,
		"*",
		"(",
	}

	for _, raw := range inputs {
		got := NormalizeResponse(raw)
		if got.Emotions == nil {
			t.Errorf("NormalizeResponse(%q): emotions is nil", raw)
		}
		if got.Mood == "" || got.OpinionOfUser == "" || got.Action == "" || got.Location == "" {
			t.Errorf("NormalizeResponse(%q): empty field in %+v", raw, got)
		}
	}
}

func TestFinalizeReplyUnwrapsOneLevel(t *testing.T) {
	record := NormalizeResponse(`{"text":"{\"text\":\"Inner message\"}"}`)
	if got := FinalizeReply(record).Text; got != "Inner message" {
		t.Fatalf("unwrap = %q", got)
	}

	direct := models.DefaultRecord(`{"text":"Inner message"}`)
	if got := FinalizeReply(direct).Text; got != "Inner message" {
		t.Fatalf("unwrap direct = %q", got)
	}

	deep := models.DefaultRecord(`{"text":"{\"text\":\"deep\"}"}`)
	if got := FinalizeReply(deep).Text; got != `{"text":"deep"}` {
		t.Fatalf("only one level should be unwrapped, got %q", got)
	}

	notText := models.DefaultRecord(`{"mood":"happy"}`)
	if got := FinalizeReply(notText).Text; got != `{"mood":"happy"}` {
		t.Fatalf("object without text should stay, got %q", got)
	}
}

func TestFinalizeReplyEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", `{"text":""}`} {
		record := models.DefaultRecord(text)
		if got := FinalizeReply(record).Text; got != models.FallbackReplyText {
			t.Errorf("FinalizeReply(%q) = %q", text, got)
		}
	}
}

func TestParseJSONResponse(t *testing.T) {
	v, err := ParseJSONResponse(`Here: {"title":"Ashfall"} done`)
	if err != nil {
		t.Fatalf("ParseJSONResponse: %v", err)
	}
	if m, ok := v.(map[string]interface{}); !ok || m["title"] != "Ashfall" {
		t.Fatalf("unexpected value %#v", v)
	}

	if _, err := ParseJSONResponse("no json"); err != ErrNoJSON {
		t.Fatalf("want ErrNoJSON, got %v", err)
	}
	if _, err := ParseJSONResponse("{broken}"); err != ErrInvalidJSON {
		t.Fatalf("want ErrInvalidJSON, got %v", err)
	}

	list, err := ParseJSONResponse(`[{"name":"a"},{"name":"b"}]`)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	if items, ok := list.([]interface{}); !ok || len(items) != 2 {
		t.Fatalf("unexpected array %#v", list)
	}
}

func TestTopLevelObjects(t *testing.T) {
	got := topLevelObjects(`a {"x":"}"} b {"y":{"z":1}} {unclosed`)
	want := []string{`{"x":"}"}`, `{"y":{"z":1}}`}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("object %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func assertRecord(t *testing.T, got, want models.ResponseRecord) {
	t.Helper()
	if got.Text != want.Text || got.Mood != want.Mood || got.OpinionOfUser != want.OpinionOfUser ||
		got.Action != want.Action || got.Location != want.Location {
		t.Fatalf("record = %+v, want %+v", got, want)
	}
	if len(got.Emotions) != len(want.Emotions) {
		t.Fatalf("emotions = %v, want %v", got.Emotions, want.Emotions)
	}
	for k, v := range want.Emotions {
		if got.Emotions[k] != v {
			t.Fatalf("emotions[%s] = %v, want %v", k, got.Emotions[k], v)
		}
	}
}
