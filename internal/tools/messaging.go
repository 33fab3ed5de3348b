package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bowerhall/mira/internal/llm"
	"github.com/bowerhall/mira/internal/notify"
)

type whatsappArgs struct {
	Message string `json:"message"`
	Phone   string `json:"phone,omitempty"`
}

// RegisterMessagingTools lets the model push text to the caller's WhatsApp
// mid-conversation (photos, links, anything unsuitable for speech).
func RegisterMessagingTools(r *Registry, messenger notify.Messenger) {
	r.Register(llm.Tool{
		Name:        "send_whatsapp_message",
		Description: "Send a WhatsApp message to the client you are talking to. Use it for addresses, links, photos and confirmations that should not be read aloud.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string", "description": "Message text, in the conversation language"},
				"phone":   map[string]any{"type": "string", "description": "Override recipient, E.164. Defaults to the caller."},
			},
			"required": []string{"message"},
		},
	}, func(ctx context.Context, args string) (Outcome, error) {
		var a whatsappArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return Outcome{}, fmt.Errorf("parse whatsapp args: %w", err)
		}

		to := a.Phone
		if to == "" {
			to = CallerFromContext(ctx)
		}
		if to == "" {
			return Outcome{Text: "Client phone number is unknown."}, nil
		}

		if err := messenger.SendWhatsApp(to, a.Message); err != nil {
			return Outcome{}, err
		}
		return Outcome{Text: "Message sent."}, nil
	})
}

// RegisterTransferTool exposes the human-operator escape hatch.
func RegisterTransferTool(r *Registry) {
	r.Register(llm.Tool{
		Name:        "transfer_to_operator",
		Description: "Transfer the call to a human operator. Use only when the caller explicitly asks for a person or you cannot help.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, func(ctx context.Context, args string) (Outcome, error) {
		return Outcome{Text: "Transferring to an operator.", Transfer: true}, nil
	})
}
