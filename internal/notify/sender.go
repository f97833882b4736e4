package notify

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

type MailSender interface {
	Send(message *Message) error
}

// NullSender discards every message. Used when alert mail is disabled.
type NullSender struct{}

func (NullSender) Send(*Message) error { return nil }
