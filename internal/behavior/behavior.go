// Package behavior holds the bot's persona: fixed lines, voice settings,
// operator routing and the system prompt template. Everything here is plain
// data so operators can tune the script without touching code.
package behavior

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type VoiceSettings struct {
	TTSVoice    string `yaml:"tts_voice"`
	STTLanguage string `yaml:"stt_language"`
}

type OperatorSettings struct {
	Number  string `yaml:"number"`
	Timeout int    `yaml:"timeout"`
}

type Behavior struct {
	Greeting     string                   `yaml:"greeting"`
	Checking     string                   `yaml:"checking"`
	NoSpeech     string                   `yaml:"no_speech"`
	APIError     string                   `yaml:"api_error"`
	Transferring string                   `yaml:"transferring"`
	NoOperator   string                   `yaml:"no_operator"`
	Closing      string                   `yaml:"closing"`
	HoldMusicURL string                   `yaml:"hold_music_url"`
	Voices       map[string]VoiceSettings `yaml:"voices"`
	Operator     OperatorSettings         `yaml:"operator"`
	SystemPrompt string                   `yaml:"system_prompt"`
}

const defaultSystemPrompt = `You are the voice assistant of a boat charter company.
Keep answers short and natural for speech; never read URLs aloud.
Never invent prices: use only the knowledge base below.
Never claim to have sent anything unless you actually called a tool.
If the caller asks for photos or payment details, silently call
send_whatsapp_message or send_booking_confirmation and then say you sent it.
If you infer the caller's gender from their speech, emit [GENDER: male] or
[GENDER: female] once inside your reply; it is stripped before playback.

CONTEXT:
- Current time: %s
- Caller gender: %s
- Caller phone: %s

KNOWLEDGE BASE:
%s`

func defaults() Behavior {
	return Behavior{
		Greeting:     "Hi, thanks for calling. How can I help you today?",
		Checking:     "One moment, let me check that for you.",
		NoSpeech:     "Sorry, I didn't catch that. Could you say it again?",
		APIError:     "Sorry, something went wrong on my end. Please try again.",
		Transferring: "Transferring you to an operator, one moment.",
		NoOperator:   "Sorry, no operator is available right now. How else can I help?",
		Closing:      "I still can't hear you, so I'll hang up now. Call back any time. Goodbye!",
		HoldMusicURL: "",
		Voices: map[string]VoiceSettings{
			"en": {TTSVoice: "Google.en-US-Standard-C", STTLanguage: "en-US"},
			"he": {TTSVoice: "Google.he-IL-Standard-A", STTLanguage: "iw-IL"},
			"ru": {TTSVoice: "Google.ru-RU-Wavenet-A", STTLanguage: "ru-RU"},
		},
		Operator: OperatorSettings{
			Timeout: 20,
		},
		SystemPrompt: defaultSystemPrompt,
	}
}

// Load reads the behavior file if path is non-empty, overlaying the defaults.
func Load(path string) (*Behavior, error) {
	b := defaults()
	if path == "" {
		return &b, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read behavior file: %w", err)
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse behavior file: %w", err)
	}
	if b.SystemPrompt == "" {
		b.SystemPrompt = defaultSystemPrompt
	}
	return &b, nil
}

// BuildSystemPrompt fills the prompt template with the per-turn context.
func (b *Behavior) BuildSystemPrompt(knowledge, gender, currentDate, callerPhone string) string {
	if gender == "" {
		gender = "unknown"
	}
	if callerPhone == "" {
		callerPhone = "unknown"
	}
	if knowledge == "" {
		knowledge = "No information."
	}
	return fmt.Sprintf(b.SystemPrompt, currentDate, gender, callerPhone, knowledge)
}

// Voice returns the TTS voice and STT language for the language the text is
// written in, falling back to the first configured voice.
func (b *Behavior) Voice(text string) VoiceSettings {
	lang := DetectLanguage(text)
	if v, ok := b.Voices[lang]; ok {
		return v
	}
	if v, ok := b.Voices["en"]; ok {
		return v
	}
	for _, v := range b.Voices {
		return v
	}
	return VoiceSettings{}
}

var (
	hebrewPattern   = regexp.MustCompile(`[\x{0590}-\x{05FF}]`)
	cyrillicPattern = regexp.MustCompile(`[\x{0400}-\x{04FF}]`)

	urlPattern      = regexp.MustCompile(`https?://\S+`)
	markdownPattern = regexp.MustCompile("[*_#`~]")
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	spacesPattern   = regexp.MustCompile(`\s+`)
)

// DetectLanguage picks a voice language from the script of the text.
func DetectLanguage(text string) string {
	switch {
	case hebrewPattern.MatchString(text):
		return "he"
	case cyrillicPattern.MatchString(text):
		return "ru"
	default:
		return "en"
	}
}

// CleanForTTS strips everything speech synthesis would stumble over: links,
// markdown markers, markup tags and runs of whitespace.
func CleanForTTS(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = markdownPattern.ReplaceAllString(text, "")
	text = tagPattern.ReplaceAllString(text, "")
	text = spacesPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
