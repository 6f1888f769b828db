// Package dispatch runs batch certificate delivery. Participants are
// processed strictly in order; one participant's failure at any stage marks
// that participant failed and never aborts the rest of the batch.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pramaan/certmailer/internal/campaign"
	"github.com/pramaan/certmailer/internal/cert"
	"github.com/pramaan/certmailer/internal/mailer"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/metrics"
)

// Store is the persistence surface the dispatcher needs.
type Store interface {
	GetParticipant(ctx context.Context, campaignID, participantID string) (store.ParticipantRow, error)
	UpsertDelivery(ctx context.Context, d store.DeliveryRow) error
}

// Issuer produces one certificate per participant.
type Issuer interface {
	Issue(ctx context.Context, data campaign.CertificateData) (campaign.IssuedCertificate, error)
}

type Dispatcher struct {
	store  Store
	issuer Issuer
	sender mailer.Sender
	log    *zap.SugaredLogger

	domain      string
	issuerName  string
	fromAddress string
	callTimeout time.Duration
}

type Options struct {
	Domain      string
	IssuerName  string
	FromAddress string
	// CallTimeout bounds each external call (lookup, issuance, email,
	// status write). Zero means 10s.
	CallTimeout time.Duration
}

func New(st Store, issuer Issuer, sender mailer.Sender, log *zap.SugaredLogger, opts Options) *Dispatcher {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &Dispatcher{
		store:       st,
		issuer:      issuer,
		sender:      sender,
		log:         log,
		domain:      opts.Domain,
		issuerName:  opts.IssuerName,
		fromAddress: opts.FromAddress,
		callTimeout: opts.CallTimeout,
	}
}

// SendBatch processes every participant of the batch and reports aggregate
// counts. Each participant gets at most one email attempt and exactly one
// DeliveryStatus upsert, awaited before the next participant starts. When
// ctx is cancelled no new participant pipeline is launched; the one in
// flight finishes and records its terminal status, and ctx.Err is returned
// alongside the partial result.
func (d *Dispatcher) SendBatch(ctx context.Context, camp store.CampaignRow, participantIDs []string) (campaign.BatchResult, error) {
	start := time.Now()
	defer func() { metrics.BatchSendDuration.Observe(time.Since(start).Seconds()) }()

	var res campaign.BatchResult
	for _, pid := range participantIDs {
		if err := ctx.Err(); err != nil {
			d.log.Warnw("batch_cancelled", "campaign_id", camp.ID, "remaining", len(participantIDs)-res.SentCount-res.FailedCount)
			res.Success = res.FailedCount == 0
			return res, err
		}
		if d.processParticipant(ctx, camp, pid) {
			res.SentCount++
		} else {
			res.FailedCount++
		}
	}

	res.Success = res.FailedCount == 0
	d.log.Infow("batch_finished",
		"campaign_id", camp.ID,
		"sent", res.SentCount,
		"failed", res.FailedCount,
		"duration", time.Since(start).Seconds(),
	)
	return res, nil
}

// processParticipant walks one participant through
// lookup -> issue -> email -> status write and reports success.
func (d *Dispatcher) processParticipant(ctx context.Context, camp store.CampaignRow, participantID string) bool {
	fields := []any{"campaign_id", camp.ID, "participant_id", participantID}

	ctx1, cancel1 := context.WithTimeout(ctx, d.callTimeout)
	p, err := d.store.GetParticipant(ctx1, camp.ID, participantID)
	cancel1()
	if err != nil {
		d.log.Errorw("participant_lookup_failed", append(fields, "error", err)...)
		d.markFailed(ctx, camp.ID, participantID, fmt.Sprintf("participant lookup: %v", err))
		return false
	}

	certID := cert.CertificateID(camp.ID, p.ID)
	data := campaign.CertificateData{
		ID:               certID,
		ParticipantName:  p.Name,
		CourseName:       camp.Name,
		IssueDate:        time.Now().UTC().Format(time.RFC3339),
		Issuer:           d.issuerName,
		CampaignID:       camp.ID,
		UserID:           camp.UserID,
		VerificationLink: fmt.Sprintf("https://%s/verify/%s", d.domain, certID),
		Domain:           d.domain,
	}

	ctx2, cancel2 := context.WithTimeout(ctx, d.callTimeout)
	issued, err := d.issuer.Issue(ctx2, data)
	cancel2()
	if err != nil {
		d.log.Errorw("certificate_issue_failed", append(fields, "error", err)...)
		d.markFailed(ctx, camp.ID, participantID, fmt.Sprintf("issue certificate: %v", err))
		return false
	}

	msg := mailer.Message{
		To:               p.Email,
		From:             d.fromAddress,
		Subject:          fmt.Sprintf("Congratulations, %s! Here is your certificate.", p.Name),
		ParticipantName:  p.Name,
		CourseName:       camp.Name,
		CertificateURL:   issued.CertificateURL,
		VerificationLink: data.VerificationLink,
	}

	ctx3, cancel3 := context.WithTimeout(ctx, d.callTimeout)
	msgID, err := d.sender.Send(ctx3, msg)
	cancel3()
	if err != nil {
		metrics.EmailsFailed.Inc()
		d.log.Errorw("email_send_failed", append(fields, "error", err)...)
		d.markFailed(ctx, camp.ID, participantID, fmt.Sprintf("send email: %v", err))
		return false
	}

	ctx4, cancel4 := context.WithTimeout(ctx, d.callTimeout)
	err = d.store.UpsertDelivery(ctx4, store.DeliveryRow{
		CampaignID:    camp.ID,
		ParticipantID: participantID,
		Status:        campaign.DeliverySent,
	})
	cancel4()
	if err != nil {
		// the email went out but the outcome is untracked, report failure
		// and try to land a terminal record so the audit trail has a row
		metrics.EmailsFailed.Inc()
		d.log.Errorw("delivery_status_write_failed", append(fields, "error", err)...)
		d.markFailed(ctx, camp.ID, participantID, fmt.Sprintf("record sent status: %v", err))
		return false
	}

	metrics.EmailsSent.Inc()
	d.log.Infow("certificate_delivered", append(fields, "message_id", msgID, "certificate_id", issued.CertificateID)...)
	return true
}

// markFailed records the terminal failure status; the status write itself
// uses a fresh timeout so a cancelled batch still lands its last record.
func (d *Dispatcher) markFailed(ctx context.Context, campaignID, participantID, details string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.callTimeout)
	defer cancel()

	err := d.store.UpsertDelivery(wctx, store.DeliveryRow{
		CampaignID:    campaignID,
		ParticipantID: participantID,
		Status:        campaign.DeliveryFailed,
		Details:       details,
	})
	if err != nil {
		d.log.Errorw("delivery_status_write_failed",
			"campaign_id", campaignID, "participant_id", participantID, "error", err)
	}
}
