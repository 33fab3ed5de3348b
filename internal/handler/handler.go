// Package handler exposes the webhook surface: the voice call flow, the
// messaging webhooks and the health endpoint. Every voice handler returns a
// control markup document; the call advances by following the redirects and
// listen directives inside it.
package handler

import (
	"net/http"

	"github.com/bowerhall/mira/internal/behavior"
	"github.com/bowerhall/mira/internal/engine"
	"github.com/bowerhall/mira/internal/interrupt"
	"github.com/bowerhall/mira/internal/logger"
	"github.com/bowerhall/mira/internal/twiml"
)

type Handler struct {
	engine     *engine.Engine
	behavior   *behavior.Behavior
	interrupts *interrupt.Controller
	baseURL    string
}

type Config struct {
	Engine     *engine.Engine
	Behavior   *behavior.Behavior
	Interrupts *interrupt.Controller
	// BaseURL is the public origin of this service. Markup pushed into a
	// live call has no document to resolve relative URLs against, so the
	// redirect target must be absolute.
	BaseURL string
}

func New(cfg Config) *Handler {
	return &Handler{
		engine:     cfg.Engine,
		behavior:   cfg.Behavior,
		interrupts: cfg.Interrupts,
		baseURL:    cfg.BaseURL,
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /voice", h.handleVoice)
	mux.HandleFunc("POST /respond", h.handleRespond)
	mux.HandleFunc("POST /poll", h.handlePoll)
	mux.HandleFunc("POST /tool", h.handleTool)
	mux.HandleFunc("POST /dial-status", h.handleDialStatus)
	mux.HandleFunc("POST /reprompt", h.handleReprompt)
	mux.HandleFunc("POST /whatsapp", h.handleWhatsApp)
	mux.HandleFunc("POST /whatsapp/status", h.handleDeliveryStatus)
	mux.HandleFunc("POST /sms", h.handleSMS)
	mux.HandleFunc("POST /sms/status", h.handleDeliveryStatus)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

func (h *Handler) absolute(path string) string {
	return h.baseURL + path
}

// say appends a speech directive voiced for the language the text is in.
func (h *Handler) say(v *twiml.VoiceResponse, text string) {
	text = behavior.CleanForTTS(text)
	if text == "" {
		return
	}
	voice := h.behavior.Voice(text)
	v.Say(text, voice.TTSVoice, voice.STTLanguage)
}

// listen appends a speech-capture directive targeting /respond.
func (h *Handler) listen(v *twiml.VoiceResponse, lang string) {
	v.Gather(twiml.GatherOpts{Action: "/respond", Language: lang})
}

func (h *Handler) writeVoice(w http.ResponseWriter, v *twiml.VoiceResponse) {
	out, err := v.Render()
	if err != nil {
		logger.Error("render voice response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(out))
}

func (h *Handler) writeMessaging(w http.ResponseWriter, m *twiml.MessagingResponse) {
	out, err := m.Render()
	if err != nil {
		logger.Error("render messaging response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(out))
}
