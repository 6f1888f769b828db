package mailer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Log records the message instead of delivering it. Used when no SMTP relay
// is configured (development mode).
type Log struct {
	log *zap.SugaredLogger
}

func NewLog(log *zap.SugaredLogger) *Log { return &Log{log: log} }

func (l *Log) Send(ctx context.Context, m Message) (string, error) {
	id := "dev-" + uuid.NewString()
	l.log.Infow("email_logged_not_sent",
		"message_id", id,
		"to", m.To,
		"subject", m.Subject,
		"certificate_url", m.CertificateURL,
	)
	return id, nil
}
