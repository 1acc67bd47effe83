package emailer

import "net/smtp"

// SetSendMail swaps the SMTP transport in tests.
func (e *SMTPSender) SetSendMail(fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	e.sendMail = fn
}
