// Package mailer is the outbound email boundary. Senders report failure
// through the returned error only and never panic past this surface.
package mailer

import "context"

// Message is one certificate email. CertificateURL resolves to the stored
// artifact; VerificationLink points at the public verification page.
type Message struct {
	To               string
	From             string
	Subject          string
	ParticipantName  string
	CourseName       string
	CertificateURL   string
	VerificationLink string
}

// Sender attempts a single delivery and returns a provider message ID.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}
