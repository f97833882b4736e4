package notify

import (
	"github.com/openbank/authcore/internal/config"
	"gopkg.in/gomail.v2"
)

type SMTPMailSender struct {
	*gomail.Dialer
	From string
}

func (s *SMTPMailSender) Send(message *Message) error {
	msg := gomail.NewMessage()
	from := message.From
	if from == "" {
		from = s.From
	}
	msg.SetHeader("From", from)
	msg.SetHeader("To", message.To...)
	msg.SetHeader("Subject", message.Subject)
	msg.SetBody("text/plain", message.Body)
	return s.DialAndSend(msg)
}

func NewSMTPMailSender(cfg config.SMTPConfig) *SMTPMailSender {
	return &SMTPMailSender{
		Dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		From:   cfg.From,
	}
}
