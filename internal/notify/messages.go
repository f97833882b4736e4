package notify

import (
	"fmt"
	"time"
)

// SendLockoutAlert notifies a developer that their account has been locked
// after repeated authentication failures.
func SendLockoutAlert(sender MailSender, toEmail string, lockedUntil time.Time, reason string) error {
	body := fmt.Sprintf(
		"Your developer account has been temporarily locked until %s.\n\n"+
			"Reason: %s\n\n"+
			"If this was not you, rotate your client secrets and contact support.\n",
		lockedUntil.UTC().Format(time.RFC1123), reason)
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Your account has been temporarily locked",
		Body:    body,
	})
}

// SendSuspiciousActivityAlert notifies a developer about authentication
// attempts from an address not seen before.
func SendSuspiciousActivityAlert(sender MailSender, toEmail string, ip string) error {
	body := fmt.Sprintf(
		"We noticed repeated failed authentication attempts on your account from %s.\n\n"+
			"If this was not you, rotate your client secrets and review your projects.\n", ip)
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Suspicious activity on your account",
		Body:    body,
	})
}
