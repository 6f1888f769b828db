package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pramaan/certmailer/internal/campaign"
	"github.com/pramaan/certmailer/internal/certstore"
	"github.com/pramaan/certmailer/internal/names"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/logx"
	"github.com/pramaan/certmailer/pkg/metrics"
)

type storeAPI interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	InsertCampaign(ctx context.Context, tx *sql.Tx, c store.CampaignRow) error
	GetCampaign(ctx context.Context, id string) (store.CampaignRow, error)
	UpdateCampaignStatus(ctx context.Context, id, status string) error
	ListCampaigns(ctx context.Context, userID string, limit, offset int) ([]store.CampaignRow, []store.DeliveryStats, error)
	InsertParticipant(ctx context.Context, tx *sql.Tx, p store.ParticipantRow) error
	ListParticipants(ctx context.Context, campaignID string) ([]store.ParticipantRow, error)
	ListDeliveries(ctx context.Context, campaignID string) ([]store.DeliveryRow, error)
	GetDeliveryStats(ctx context.Context, campaignID string) (store.DeliveryStats, error)
	GetCertificate(ctx context.Context, id string) (store.CertificateRow, error)
}

type batchSender interface {
	SendBatch(ctx context.Context, camp store.CampaignRow, participantIDs []string) (campaign.BatchResult, error)
}

type publisherAPI interface {
	PublishJSON(ctx context.Context, body []byte) error
}

type Handlers struct {
	Store      storeAPI
	Artifacts  certstore.Store
	Dispatcher batchSender
	Validator  names.Validator
	// Pub is nil when no queue is configured; async sends are then rejected.
	Pub publisherAPI
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// userID extracts the calling user. Authentication happens upstream; the
// gateway forwards the identity in a header.
func userID(c *gin.Context) string {
	if v := c.GetHeader("X-User-ID"); v != "" {
		return v
	}
	return "anonymous"
}

func (h *Handlers) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	row := store.CampaignRow{
		ID:         uuid.NewString(),
		UserID:     userID(c),
		Name:       req.Name,
		TemplateID: req.TemplateID,
		Status:     campaign.StatusDraft,
	}
	err := h.Store.WithTx(ctx, func(tx *sql.Tx) error {
		return h.Store.InsertCampaign(ctx, tx, row)
	})
	if err != nil {
		logx.L().Errorw("create_campaign_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create error"})
		return
	}

	c.JSON(http.StatusCreated, campaign.CreateCampaignResp{ID: row.ID})
}

func (h *Handlers) ListCampaigns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rows, stats, err := h.Store.ListCampaigns(ctx, userID(c), limit, offset)
	if err != nil {
		logx.L().Errorw("list_campaigns_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
		return
	}

	out := make([]campaign.CampaignListItem, 0, len(rows))
	for i, r := range rows {
		item := campaign.CampaignListItem{
			ID:         r.ID,
			Name:       r.Name,
			TemplateID: r.TemplateID,
			Status:     r.Status,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		}
		item.Stats.Total = stats[i].Total
		item.Stats.Sent = stats[i].Sent
		item.Stats.Failed = stats[i].Failed
		out = append(out, item)
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handlers) GetCampaign(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	camp, err := h.Store.GetCampaign(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	stats, err := h.Store.GetDeliveryStats(ctx, camp.ID)
	if err != nil {
		logx.L().Errorw("get_delivery_stats_error", "id", camp.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats error"})
		return
	}

	deliveries, err := h.Store.ListDeliveries(ctx, camp.ID)
	if err != nil {
		logx.L().Errorw("list_deliveries_error", "id", camp.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deliveries error"})
		return
	}

	item := campaign.CampaignListItem{
		ID:         camp.ID,
		Name:       camp.Name,
		TemplateID: camp.TemplateID,
		Status:     camp.Status,
		CreatedAt:  camp.CreatedAt,
		UpdatedAt:  camp.UpdatedAt,
	}
	item.Stats.Total = stats.Total
	item.Stats.Sent = stats.Sent
	item.Stats.Failed = stats.Failed

	type deliveryItem struct {
		ParticipantID string    `json:"participant_id"`
		Status        string    `json:"status"`
		Details       string    `json:"details,omitempty"`
		LastUpdated   time.Time `json:"last_updated"`
	}
	out := struct {
		campaign.CampaignListItem
		Deliveries []deliveryItem `json:"deliveries"`
	}{CampaignListItem: item, Deliveries: make([]deliveryItem, 0, len(deliveries))}
	for _, d := range deliveries {
		out.Deliveries = append(out.Deliveries, deliveryItem{
			ParticipantID: d.ParticipantID,
			Status:        d.Status,
			Details:       d.Details,
			LastUpdated:   d.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, out)
}

// SendBatch runs the delivery pipeline for the campaign. By default the
// batch is processed synchronously and the aggregate result is returned;
// with "async": true a job is queued for the sender worker instead.
func (h *Handlers) SendBatch(c *gin.Context) {
	campaignID := c.Param("id")

	var req campaign.SendBatchReq
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	camp, err := h.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	ids := req.ParticipantIDs
	if len(ids) == 0 {
		participants, err := h.Store.ListParticipants(ctx, campaignID)
		if err != nil {
			logx.L().Errorw("list_participants_error", "campaign_id", campaignID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "participants error"})
			return
		}
		for _, p := range participants {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "campaign has no participants"})
		return
	}

	if req.Async {
		if h.Pub == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue not configured"})
			return
		}
		job := campaign.SendJob{CampaignID: camp.ID, UserID: camp.UserID, ParticipantIDs: ids}
		payload, err := json.Marshal(job)
		if err != nil {
			logx.L().Errorw("job_marshal_error", "campaign_id", camp.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "publish error"})
			return
		}
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Pub.PublishJSON(pubCtx, payload); err != nil {
			logx.L().Errorw("publish_job_error", "campaign_id", camp.ID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "queue unavailable"})
			return
		}
		metrics.PublishedJobsTotal.Inc()
		c.JSON(http.StatusAccepted, gin.H{"campaign_id": camp.ID, "queued": len(ids)})
		return
	}

	if err := h.Store.UpdateCampaignStatus(ctx, camp.ID, campaign.StatusSending); err != nil {
		logx.L().Warnw("campaign_status_update_error", "campaign_id", camp.ID, "error", err)
	}

	result, err := h.Dispatcher.SendBatch(ctx, camp, ids)
	if err != nil {
		logx.L().Warnw("batch_interrupted", "campaign_id", camp.ID, "error", err)
	}

	if err := h.Store.UpdateCampaignStatus(ctx, camp.ID, campaign.StatusSent); err != nil {
		logx.L().Warnw("campaign_status_update_error", "campaign_id", camp.ID, "error", err)
	}

	resp := gin.H{
		"sent_count":   result.SentCount,
		"failed_count": result.FailedCount,
		"success":      result.Success,
	}
	if result.FailedCount > 0 {
		resp["error"] = fmt.Sprintf("Failed to send %d email(s). Check server logs for details.", result.FailedCount)
	}
	c.JSON(http.StatusOK, resp)
}
