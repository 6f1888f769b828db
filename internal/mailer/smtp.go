package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
)

var bodyTemplate = template.Must(template.New("certificate-email").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2>Congratulations, {{.ParticipantName}}!</h2>
  <p>You have successfully completed <strong>{{.CourseName}}</strong>.</p>
  <p>Your certificate of completion is ready.</p>
  <p>
    <a href="{{.CertificateURL}}"
       style="display: inline-block; padding: 12px 24px; background-color: #2563eb; color: #ffffff; text-decoration: none; border-radius: 4px; font-weight: bold;">
      View Your Certificate
    </a>
  </p>
  <p>You can verify its authenticity at any time: <a href="{{.VerificationLink}}">{{.VerificationLink}}</a></p>
  <p style="color: #999999; font-size: 12px;">Powered by Pramaan</p>
</div>`))

// SMTP sends certificate emails through a plain-auth SMTP relay.
type SMTP struct {
	host     string
	port     string
	username string
	password string
}

func NewSMTP(host, port, username, password string) *SMTP {
	return &SMTP{host: host, port: port, username: username, password: password}
}

func (s *SMTP) Send(ctx context.Context, m Message) (string, error) {
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, m); err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}

	var msg strings.Builder
	msg.WriteString("MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n")
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", m.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n", m.Subject)
	msg.Write(body.Bytes())

	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	// net/smtp has no context support; bound the call so a stalled relay
	// cannot hold a batch open
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.host+":"+s.port, auth, m.From, []string{m.To}, []byte(msg.String()))
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send to %s: %w", m.To, err)
		}
	}
	return uuid.NewString(), nil
}
