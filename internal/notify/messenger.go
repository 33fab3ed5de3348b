// Package notify holds the outbound channels: WhatsApp/SMS through the
// telephony provider's REST API and booking emails over SMTP. It also carries
// the live-call update used to pre-empt hold audio.
package notify

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/bowerhall/mira/internal/logger"
)

// Messenger sends outbound messages to a phone number in E.164 form.
type Messenger interface {
	SendWhatsApp(to, body string) error
	SendSMS(to, body string) error
}

// CallUpdater replaces the markup of a live call, taking effect immediately.
type CallUpdater interface {
	UpdateCall(callSID, markup string) error
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type Twilio struct {
	client *twilio.RestClient
	from   string
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Twilio{client: client, from: cfg.FromNumber}
}

func (t *Twilio) SendWhatsApp(to, body string) error {
	to = strings.TrimPrefix(to, "whatsapp:")

	params := &api.CreateMessageParams{}
	params.SetFrom("whatsapp:" + t.from)
	params.SetTo("whatsapp:" + to)
	params.SetBody(body)

	msg, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send whatsapp to %s: %w", to, err)
	}
	if msg.Sid != nil {
		logger.Debug("whatsapp sent", "to", to, "sid", *msg.Sid)
	}
	return nil
}

func (t *Twilio) SendSMS(to, body string) error {
	params := &api.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}
	return nil
}

// UpdateCall pushes new markup to a live call, pre-empting whatever is
// currently playing.
func (t *Twilio) UpdateCall(callSID, markup string) error {
	params := &api.UpdateCallParams{}
	params.SetTwiml(markup)

	if _, err := t.client.Api.UpdateCall(callSID, params); err != nil {
		return fmt.Errorf("update call %s: %w", callSID, err)
	}
	return nil
}
