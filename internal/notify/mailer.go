package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// OrderDetails is what lands in the owner's inbox for every confirmed booking.
type OrderDetails struct {
	ClientName  string
	ClientPhone string
	Date        string
	StartTime   string
	Duration    int
	Vessel      string
	TotalPrice  float64
	Reference   string
}

type Mailer struct {
	cfg MailConfig
}

func NewMailer(cfg MailConfig) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg}
}

func (m *Mailer) SendOrderEmail(ctx context.Context, order OrderDetails) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.cfg.To); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}

	msg.Subject(fmt.Sprintf("New booking: %s", order.ClientName))
	msg.SetBodyString(mail.TypeTextPlain, orderBody(order))

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send order email: %w", err)
	}
	return nil
}

func orderBody(order OrderDetails) string {
	var b strings.Builder
	b.WriteString("NEW BOOKING\n")
	b.WriteString("-----------------------\n")
	fmt.Fprintf(&b, "Name: %s\n", order.ClientName)
	fmt.Fprintf(&b, "Phone: %s\n", order.ClientPhone)
	fmt.Fprintf(&b, "Vessel: %s\n", order.Vessel)
	fmt.Fprintf(&b, "Date: %s %s\n", order.Date, order.StartTime)
	fmt.Fprintf(&b, "Duration: %dh\n", order.Duration)
	fmt.Fprintf(&b, "Total: %.0f\n", order.TotalPrice)
	b.WriteString("-----------------------\n")
	fmt.Fprintf(&b, "Reference: %s\n", order.Reference)
	return b.String()
}
