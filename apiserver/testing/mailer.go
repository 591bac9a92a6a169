// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"sync"
)

// SentMail is a message recorded by a RecordingMailer.
type SentMail struct {
	To   string
	Code string
	Link string
}

// RecordingMailer implements the mail.Mailer interface by recording every
// message instead of sending it.
type RecordingMailer struct {
	mu            sync.Mutex
	verifications []SentMail
	resets        []SentMail

	// Err, if set, is returned from every send.
	Err error
}

// SendVerification is part of the mail.Mailer interface.
func (m *RecordingMailer) SendVerification(_ context.Context, to, code, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.verifications = append(m.verifications, SentMail{To: to, Code: code, Link: link})
	return nil
}

// SendPasswordReset is part of the mail.Mailer interface.
func (m *RecordingMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.resets = append(m.resets, SentMail{To: to, Link: link})
	return nil
}

// Verifications returns the verification mails sent so far.
func (m *RecordingMailer) Verifications() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.verifications...)
}

// Resets returns the password reset mails sent so far.
func (m *RecordingMailer) Resets() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.resets...)
}
