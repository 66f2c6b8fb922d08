// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into outgoing mail.
package queue

import "time"

// PasswordResetMail asks the mailer to deliver a reset link.
type PasswordResetMail struct {
	To        string    `json:"to"`
	Name      string    `json:"name"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
	RequestID string    `json:"request_id,omitempty"`
}

// Body renders the plain text message.
func (m PasswordResetMail) Body() string {
	return "Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: " +
		m.ResetURL + ".\nIf you didn't forget your password, please ignore this email!"
}
