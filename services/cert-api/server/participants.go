package server

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pramaan/certmailer/internal/campaign"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/logx"
)

type csvRow struct {
	Name  string
	Email string
}

// parseParticipantsCSV reads a "Name,Email" CSV. Any malformation is an
// input validation error reported before any participant is processed.
func parseParticipantsCSV(r io.Reader) ([]csvRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 2 ||
		!strings.EqualFold(strings.TrimSpace(header[0]), "name") ||
		!strings.EqualFold(strings.TrimSpace(header[1]), "email") {
		return nil, errors.New(`missing columns: expected header "Name,Email"`)
	}

	var rows []csvRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(rec[0])
		email := strings.TrimSpace(rec[1])
		if name == "" || email == "" {
			return nil, errors.New("row with empty name or email")
		}
		rows = append(rows, csvRow{Name: name, Email: email})
	}
	if len(rows) == 0 {
		return nil, errors.New("no participant rows")
	}
	return rows, nil
}

// ValidateParticipants uploads a CSV and runs every name through the
// external validator. Nothing is persisted here; the client reviews the
// results and accepts them through AcceptParticipants.
func (h *Handlers) ValidateParticipants(c *gin.Context) {
	if h.Validator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "name validation not configured"})
		return
	}

	if _, err := h.Store.GetCampaign(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	src := io.Reader(c.Request.Body)
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		src = file
	}

	rows, err := parseParticipantsCSV(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rawNames := make([]string, 0, len(rows))
	for _, r := range rows {
		rawNames = append(rawNames, r.Name)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	results, err := h.Validator.ValidateNames(ctx, rawNames)
	if err != nil {
		logx.L().Errorw("name_validation_error", "campaign_id", c.Param("id"), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "name validation unavailable"})
		return
	}

	out := make([]campaign.NameValidationRow, 0, len(results))
	for i, r := range results {
		out = append(out, campaign.NameValidationRow{
			OriginalName:  r.OriginalName,
			CorrectedName: r.CorrectedName,
			Email:         rows[i].Email,
			IsValid:       r.IsValid,
			Reason:        r.Reason,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

// AcceptParticipants persists reviewed participants. A corrected name keeps
// the original under OriginalName with status "corrected".
func (h *Handlers) AcceptParticipants(c *gin.Context) {
	campaignID := c.Param("id")

	var req campaign.AcceptParticipantsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Store.GetCampaign(ctx, campaignID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	ids := make([]string, 0, len(req.Participants))
	err := h.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, p := range req.Participants {
			original := p.OriginalName
			if original == "" {
				original = p.Name
			}
			row := store.ParticipantRow{
				ID:           uuid.NewString(),
				CampaignID:   campaignID,
				Name:         p.Name,
				Email:        p.Email,
				Status:       p.Status,
				OriginalName: original,
			}
			if err := h.Store.InsertParticipant(ctx, tx, row); err != nil {
				return err
			}
			ids = append(ids, row.ID)
		}
		return nil
	})
	if err != nil {
		logx.L().Errorw("accept_participants_error", "campaign_id", campaignID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"participant_ids": ids})
}

func (h *Handlers) ListParticipants(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	participants, err := h.Store.ListParticipants(ctx, c.Param("id"))
	if err != nil {
		logx.L().Errorw("list_participants_error", "campaign_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list error"})
		return
	}

	type item struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		Status       string `json:"status"`
		OriginalName string `json:"original_name"`
	}
	out := make([]item, 0, len(participants))
	for _, p := range participants {
		out = append(out, item{ID: p.ID, Name: p.Name, Email: p.Email, Status: p.Status, OriginalName: p.OriginalName})
	}
	c.JSON(http.StatusOK, out)
}
