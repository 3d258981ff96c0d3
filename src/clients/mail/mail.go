package mail

import (
	"fmt"
	"io"

	gomail "gopkg.in/gomail.v2"

	"reportscheduler/src/config"
	"reportscheduler/src/schemas"
)

type MailClientI interface {
	Send(msg *schemas.MailMessage) error
}

// MailClient delivers report mails over SMTP. A nil error from Send means the
// message was accepted for delivery by the relay.
type MailClient struct {
	dialer *gomail.Dialer
	from   string
}

func NewClient(cfg *config.Config) *MailClient {
	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Password)
	return &MailClient{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
}

func (c *MailClient) Send(msg *schemas.MailMessage) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients provided")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	for _, attachment := range msg.Attachments {
		content := attachment.Content
		m.Attach(attachment.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	return c.dialer.DialAndSend(m)
}
