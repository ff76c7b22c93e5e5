package composer

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/parrot/internal/providers"
)

func TestGenerationMessages_Blend(t *testing.T) {
	msgs := GenerationMessages(VariantBlend, "jack", "s1\n\ns2", Tone{"very", "happy"}, "long")
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Role != providers.RoleSystem || !strings.Contains(msgs[0].Content, "jack") {
		t.Errorf("system = %+v", msgs[0])
	}
	if msgs[1].Content != "s1\n\ns2" {
		t.Errorf("sample message = %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[2].Content, "very happy") || !strings.Contains(msgs[2].Content, "MUST be a long tweet") {
		t.Errorf("instruction = %q", msgs[2].Content)
	}
}

func TestGenerationMessages_Emulate(t *testing.T) {
	msgs := GenerationMessages(VariantEmulate, "jack", "s1", Tone{"slightly", "angry"}, "long")
	if !strings.Contains(msgs[0].Content, "emulate the tweets from jack") {
		t.Errorf("system = %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[2].Content, "1 new slightly angry short tweet") {
		t.Errorf("instruction = %q", msgs[2].Content)
	}
	if strings.Contains(msgs[2].Content, "long") {
		t.Error("emulate variant ignores the length class")
	}
}

func TestScoringMessages(t *testing.T) {
	msgs := ScoringMessages([]string{"politics", "religion"}, []string{"one", `two "quoted"`})
	if len(msgs) != 2 {
		t.Fatalf("messages = %d", len(msgs))
	}
	user := msgs[1].Content
	if !strings.Contains(user, "politics, religion") {
		t.Errorf("topics missing: %q", user)
	}
	if !strings.Contains(user, `["one","two \"quoted\""]`) {
		t.Errorf("candidates missing: %q", user)
	}
}

func TestPickTone_Deterministic(t *testing.T) {
	adverbs := []string{"a1", "a2", "a3"}
	moods := []string{"m1", "m2", "m3", "m4"}
	a := PickTone(rand.New(rand.NewPCG(5, 5)), adverbs, moods)
	b := PickTone(rand.New(rand.NewPCG(5, 5)), adverbs, moods)
	if a != b {
		t.Errorf("same seed gave %v and %v", a, b)
	}
	if PickLength(rand.New(rand.NewPCG(1, 1)), nil) != "" {
		t.Error("empty list should give empty string")
	}
}
