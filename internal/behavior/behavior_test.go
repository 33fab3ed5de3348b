package behavior

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	b, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if b.Greeting == "" || b.NoSpeech == "" || b.Closing == "" {
		t.Error("defaults must cover every fixed line")
	}
	if b.Operator.Timeout != 20 {
		t.Errorf("expected default operator timeout 20, got %d", b.Operator.Timeout)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "behavior.yml")
	content := "greeting: Ahoy!\noperator:\n  number: \"+15550199\"\n  timeout: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if b.Greeting != "Ahoy!" {
		t.Errorf("overlay must win: %s", b.Greeting)
	}
	if b.Operator.Timeout != 30 {
		t.Errorf("expected timeout 30, got %d", b.Operator.Timeout)
	}
	if b.NoSpeech == "" {
		t.Error("fields absent from the file must keep their defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/behavior.yml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	b, _ := Load("")

	prompt := b.BuildSystemPrompt("Sea Ray: 450 per hour.", "female", "Friday, 17 July 2026 14:00", "+15550100")
	for _, want := range []string{"Sea Ray: 450 per hour.", "female", "+15550100", "17 July 2026"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	prompt = b.BuildSystemPrompt("", "", "now", "")
	if !strings.Contains(prompt, "unknown") {
		t.Error("empty gender must render as unknown")
	}
	if !strings.Contains(prompt, "No information.") {
		t.Error("empty knowledge must render a placeholder")
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Hello, how can I help?", "en"},
		{"שלום, איך אפשר לעזור?", "he"},
		{"Здравствуйте, чем могу помочь?", "ru"},
	}
	for _, c := range cases {
		if got := DetectLanguage(c.text); got != c.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestVoiceSelection(t *testing.T) {
	b, _ := Load("")

	v := b.Voice("שלום")
	if v.STTLanguage != "iw-IL" {
		t.Errorf("expected the Hebrew voice, got %+v", v)
	}

	v = b.Voice("hello")
	if v.STTLanguage != "en-US" {
		t.Errorf("expected the English voice, got %+v", v)
	}
}

func TestCleanForTTS(t *testing.T) {
	in := "Pay *here*: https://pay.example.com/x <b>now</b>   please"
	out := CleanForTTS(in)

	for _, banned := range []string{"http", "*", "<b>"} {
		if strings.Contains(out, banned) {
			t.Errorf("output still contains %q: %s", banned, out)
		}
	}
	if strings.Contains(out, "  ") {
		t.Errorf("whitespace runs must collapse: %q", out)
	}
}
