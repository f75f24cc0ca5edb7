package models

import "testing"

func TestPlayerActionStat(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"strength":  "Strength",
		"DEXTERITY": "Dexterity",
		"éclat":     "Éclat",
		"сила":      "Сила",
	}
	for stat, want := range cases {
		p := &PlayerAction{RelevantStat: stat}
		if got := p.Stat(); got != want {
			t.Errorf("Stat(%q) = %q, want %q", stat, got, want)
		}
	}
}
