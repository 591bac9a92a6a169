// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mail delivers the account emails sent to users: verification
// links and password reset links.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/ratelimit"
)

var logger = loggo.GetLogger("storefront.mail")

// ErrThrottled is returned when a message could not be sent within the
// configured rate limit.
const ErrThrottled = errors.ConstError("mail throttled")

// Mailer sends account emails.
type Mailer interface {
	// SendVerification sends the verification code and a link that
	// verifies the account when followed.
	SendVerification(ctx context.Context, to, code, link string) error

	// SendPasswordReset sends a link to the password reset form.
	SendPasswordReset(ctx context.Context, to, link string) error
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

var (
	verificationTemplate = template.Must(template.New("verification").Parse(`<h2>Thanks for registering!</h2>
<p>Your verification code is <strong>{{.Code}}</strong>.</p>
<p>Or verify your account by following this link:</p>
<a href="{{.Link}}">Verify account</a>
<p>If you did not register, ignore this message.</p>
`))

	resetTemplate = template.Must(template.New("reset").Parse(`<h2>Password reset</h2>
<p>Follow this link to choose a new password. It expires soon.</p>
<a href="{{.Link}}">Reset password</a>
<p>If you did not ask for this, ignore this message.</p>
`))
)

// VerificationMessage renders the verification email.
func VerificationMessage(to, code, link string) (Message, error) {
	body, err := render(verificationTemplate, struct{ Code, Link string }{code, link})
	if err != nil {
		return Message{}, errors.Trace(err)
	}
	return Message{To: to, Subject: "Account verification", HTML: body}, nil
}

// PasswordResetMessage renders the password reset email.
func PasswordResetMessage(to, link string) (Message, error) {
	body, err := render(resetTemplate, struct{ Link string }{link})
	if err != nil {
		return Message{}, errors.Trace(err)
	}
	return Message{To: to, Subject: "Password reset", HTML: body}, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Annotatef(err, "rendering %s message", t.Name())
	}
	return buf.String(), nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct{}

// SendVerification is part of the Mailer interface.
func (LogMailer) SendVerification(_ context.Context, to, code, link string) error {
	logger.Infof("verification for %q: code %s, link %s", to, code, link)
	return nil
}

// SendPasswordReset is part of the Mailer interface.
func (LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	logger.Infof("password reset for %q: link %s", to, link)
	return nil
}

// SendFunc delivers a raw message. It has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig holds the configuration of an SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// RatePerMinute is the number of messages that may be sent each
	// minute. Bursts of up to the same number are allowed.
	RatePerMinute int

	// MaxWait is how long a send waits for the rate limit before failing
	// with ErrThrottled.
	MaxWait time.Duration

	// Send delivers the message. It defaults to smtp.SendMail.
	Send SendFunc
}

// Validate checks that the config is usable.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return errors.NotValidf("empty smtp host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NotValidf("smtp port %d", c.Port)
	}
	if c.From == "" {
		return errors.NotValidf("empty from address")
	}
	if c.RatePerMinute <= 0 {
		return errors.NotValidf("mail rate %d", c.RatePerMinute)
	}
	if c.MaxWait < 0 {
		return errors.NotValidf("negative max wait")
	}
	return nil
}

// SMTPMailer sends messages through an SMTP relay, throttled by a token
// bucket.
type SMTPMailer struct {
	config SMTPConfig
	bucket *ratelimit.Bucket
	send   SendFunc
}

// NewSMTPMailer returns a mailer for the given relay.
func NewSMTPMailer(config SMTPConfig) (*SMTPMailer, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	send := config.Send
	if send == nil {
		send = smtp.SendMail
	}
	rate := float64(config.RatePerMinute) / time.Minute.Seconds()
	return &SMTPMailer{
		config: config,
		bucket: ratelimit.NewBucketWithRate(rate, int64(config.RatePerMinute)),
		send:   send,
	}, nil
}

// SendVerification is part of the Mailer interface.
func (m *SMTPMailer) SendVerification(ctx context.Context, to, code, link string) error {
	msg, err := VerificationMessage(to, code, link)
	if err != nil {
		return errors.Trace(err)
	}
	return m.Send(ctx, msg)
}

// SendPasswordReset is part of the Mailer interface.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	msg, err := PasswordResetMessage(to, link)
	if err != nil {
		return errors.Trace(err)
	}
	return m.Send(ctx, msg)
}

// Send delivers the message once the rate limit allows it.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if !m.bucket.WaitMaxDuration(1, m.config.MaxWait) {
		return errors.Annotatef(ErrThrottled, "sending to %q", msg.To)
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	if err := m.send(addr, auth, m.config.From, []string{msg.To}, m.encode(msg)); err != nil {
		return errors.Annotatef(err, "sending %q to %q", msg.Subject, msg.To)
	}
	logger.Debugf("sent %q to %q", msg.Subject, msg.To)
	return nil
}

func (m *SMTPMailer) encode(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.HTML, "\n", "\r\n"))
	return []byte(b.String())
}
