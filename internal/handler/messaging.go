package handler

import (
	"net/http"
	"strings"

	"github.com/bowerhall/mira/internal/logger"
	"github.com/bowerhall/mira/internal/session"
	"github.com/bowerhall/mira/internal/twiml"
)

// handleWhatsApp answers an inbound WhatsApp message synchronously: the
// webhook can wait for the full reply, so no task machinery is involved.
func (h *Handler) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	h.handleMessage(w, r, session.ChannelWhatsApp)
}

func (h *Handler) handleSMS(w http.ResponseWriter, r *http.Request) {
	h.handleMessage(w, r, session.ChannelSMS)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request, channel string) {
	from := r.FormValue("From")
	body := strings.TrimSpace(r.FormValue("Body"))

	m := twiml.NewMessagingResponse()

	if body == "" {
		// media-only or empty message: acknowledge without replying
		h.writeMessaging(w, m)
		return
	}

	caller := strings.TrimPrefix(from, "whatsapp:")
	logger.Info("message received", "channel", channel, "from", caller, "length", len(body))

	text, err := h.engine.Respond(r.Context(), from, channel, body, caller)
	if err != nil {
		logger.Error("message turn failed", "channel", channel, "from", caller, "error", err)
		m.Message(h.behavior.APIError)
		h.writeMessaging(w, m)
		return
	}

	m.Message(text)
	h.writeMessaging(w, m)
}

// handleDeliveryStatus receives provider delivery callbacks. They are logged
// and acknowledged; nothing downstream depends on them.
func (h *Handler) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	logger.Debug("delivery status",
		"sid", r.FormValue("MessageSid"),
		"status", r.FormValue("MessageStatus"),
		"to", r.FormValue("To"),
	)
	w.WriteHeader(http.StatusOK)
}
