// Package worker consumes queued batch-send jobs and runs the delivery
// dispatcher out of band. Business failures inside a batch are terminal and
// recorded per participant; only infrastructure errors (campaign lookup)
// requeue the job.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pramaan/certmailer/internal/campaign"
	"github.com/pramaan/certmailer/internal/dispatch"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/logx"
	"github.com/pramaan/certmailer/pkg/metrics"
	"github.com/pramaan/certmailer/pkg/rmq"
)

type campaignStore interface {
	GetCampaign(ctx context.Context, id string) (store.CampaignRow, error)
	UpdateCampaignStatus(ctx context.Context, id, status string) error
}

type Worker struct {
	Store      campaignStore
	Dispatcher *dispatch.Dispatcher
	Cons       *rmq.Consumer
}

func New(st campaignStore, d *dispatch.Dispatcher, cons *rmq.Consumer) *Worker {
	return &Worker{Store: st, Dispatcher: d, Cons: cons}
}

func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.Cons.Consume()
	if err != nil {
		return err
	}
	logx.L().Infow("worker_started", "queue", w.Cons.Queue)

	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("worker_stopping")
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				logx.L().Warnw("consumer_channel_closed")
				return nil
			}

			metrics.WorkerJobsConsumed.Inc()

			var job campaign.SendJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				logx.L().Warnw("job_unmarshal_error", "error", err)
				_ = d.Ack(false)
				continue
			}
			fields := []any{
				"campaign_id", job.CampaignID,
				"participants", len(job.ParticipantIDs),
			}

			ctx1, cancel1 := context.WithTimeout(ctx, 5*time.Second)
			camp, err := w.Store.GetCampaign(ctx1, job.CampaignID)
			cancel1()
			if errors.Is(err, store.ErrNotFound) {
				logx.L().Warnw("job_campaign_missing", fields...)
				metrics.WorkerJobsFailed.Inc()
				_ = d.Ack(false)
				continue
			}
			if err != nil {
				logx.L().Errorw("db_get_campaign_error", append(fields, "error", err)...)
				metrics.WorkerJobsFailed.Inc()
				_ = d.Nack(false, true)
				continue
			}

			if err := w.Store.UpdateCampaignStatus(ctx, camp.ID, campaign.StatusSending); err != nil {
				logx.L().Warnw("campaign_status_update_error", append(fields, "error", err)...)
			}

			// the batch records per-participant outcomes itself; its
			// result is observable via campaign delivery stats
			res, err := w.Dispatcher.SendBatch(ctx, camp, job.ParticipantIDs)
			if err != nil {
				logx.L().Warnw("batch_interrupted", append(fields, "error", err)...)
			}

			if err := w.Store.UpdateCampaignStatus(ctx, camp.ID, campaign.StatusSent); err != nil {
				logx.L().Warnw("campaign_status_update_error", append(fields, "error", err)...)
			}

			logx.L().Infow("job_processed", append(fields, "sent", res.SentCount, "failed", res.FailedCount)...)
			_ = d.Ack(false)
		}
	}
}
