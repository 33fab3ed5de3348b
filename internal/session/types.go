package session

import (
	"sync"
	"time"

	"github.com/bowerhall/mira/internal/llm"
)

// Channel identifies how the conversation reaches us. Set once at creation.
const (
	ChannelVoice    = "voice"
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

// PendingToolCalls buffers tool invocations between the control request that
// produced them and the one that executes them, together with the assistant
// text spoken alongside the calls.
type PendingToolCalls struct {
	Calls     []llm.ToolCall
	Utterance string
	Context   string
}

type Session struct {
	mu        sync.Mutex
	channel   string
	history   []llm.Message
	pending   *PendingToolCalls
	gender    string
	domain    string
	createdAt time.Time
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}
