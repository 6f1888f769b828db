package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a row does not exist. Callers must not treat
// it as an infrastructure failure.
var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

type CampaignRow struct {
	ID         string
	UserID     string
	Name       string
	TemplateID string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ParticipantRow struct {
	ID           string
	CampaignID   string
	Name         string
	Email        string
	Status       string
	OriginalName string
	CreatedAt    time.Time
}

type DeliveryRow struct {
	CampaignID    string
	ParticipantID string
	Status        string
	Details       string
	UpdatedAt     time.Time
}

type CertificateRow struct {
	ID               string
	CampaignID       string
	ParticipantID    string
	ParticipantName  string
	CourseName       string
	Issuer           string
	IssueDate        string
	VerificationLink string
	MediaType        string
	Locator          string
	RevokedAt        *time.Time
	CreatedAt        time.Time
}

type DeliveryStats struct {
	Total  int
	Sent   int
	Failed int
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) InsertCampaign(ctx context.Context, tx *sql.Tx, c CampaignRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, user_id, name, template_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
	`, c.ID, c.UserID, c.Name, c.TemplateID, c.Status)
	return err
}

func (s *Store) GetCampaign(ctx context.Context, id string) (CampaignRow, error) {
	var c CampaignRow
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, name, template_id, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.Name, &c.TemplateID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CampaignRow{}, ErrNotFound
	}
	if err != nil {
		return CampaignRow{}, err
	}
	return c, nil
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, id, status string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2
	`, status, id)
	return err
}

func (s *Store) ListCampaigns(ctx context.Context, userID string, limit, offset int) ([]CampaignRow, []DeliveryStats, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, name, template_id, status, created_at, updated_at
		FROM campaigns
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var campaigns []CampaignRow
	var ids []string
	for rows.Next() {
		var c CampaignRow
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.TemplateID, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, nil, err
		}
		campaigns = append(campaigns, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(campaigns) == 0 {
		return campaigns, []DeliveryStats{}, nil
	}

	statRows, err := s.DB.QueryContext(ctx, `
		SELECT campaign_id,
		       COUNT(*)                                 AS total,
		       COUNT(*) FILTER (WHERE status='sent')    AS sent,
		       COUNT(*) FILTER (WHERE status='failed')  AS failed
		FROM deliveries
		WHERE campaign_id = ANY($1)
		GROUP BY campaign_id
	`, textSlice(ids))
	if err != nil {
		return nil, nil, err
	}
	defer statRows.Close()

	statsByID := make(map[string]DeliveryStats, len(ids))
	for statRows.Next() {
		var id string
		var st DeliveryStats
		if err := statRows.Scan(&id, &st.Total, &st.Sent, &st.Failed); err != nil {
			return nil, nil, err
		}
		statsByID[id] = st
	}
	if err := statRows.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]DeliveryStats, len(campaigns))
	for i, c := range campaigns {
		out[i] = statsByID[c.ID]
	}
	return campaigns, out, nil
}

type textSlice []string

func (a textSlice) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(esc.Replace(v))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String(), nil
}

func (s *Store) InsertParticipant(ctx context.Context, tx *sql.Tx, p ParticipantRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO participants (id, campaign_id, name, email, status, original_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
	`, p.ID, p.CampaignID, p.Name, p.Email, p.Status, p.OriginalName)
	return err
}

func (s *Store) GetParticipant(ctx context.Context, campaignID, participantID string) (ParticipantRow, error) {
	var p ParticipantRow
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, campaign_id, name, email, status, original_name, created_at
		FROM participants
		WHERE campaign_id = $1 AND id = $2
	`, campaignID, participantID).Scan(&p.ID, &p.CampaignID, &p.Name, &p.Email, &p.Status, &p.OriginalName, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ParticipantRow{}, ErrNotFound
	}
	if err != nil {
		return ParticipantRow{}, err
	}
	return p, nil
}

func (s *Store) ListParticipants(ctx context.Context, campaignID string) ([]ParticipantRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, campaign_id, name, email, status, original_name, created_at
		FROM participants
		WHERE campaign_id = $1
		ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ParticipantRow
	for rows.Next() {
		var p ParticipantRow
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.Name, &p.Email, &p.Status, &p.OriginalName, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertDelivery records the latest delivery outcome for a participant.
// Merge semantics: re-sending overwrites the prior status.
func (s *Store) UpsertDelivery(ctx context.Context, d DeliveryRow) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO deliveries (campaign_id, participant_id, status, details, updated_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (campaign_id, participant_id)
		DO UPDATE SET status=EXCLUDED.status, details=EXCLUDED.details, updated_at=NOW()
	`, d.CampaignID, d.ParticipantID, d.Status, d.Details)
	return err
}

func (s *Store) ListDeliveries(ctx context.Context, campaignID string) ([]DeliveryRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT campaign_id, participant_id, status, details, updated_at
		FROM deliveries
		WHERE campaign_id = $1
		ORDER BY updated_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryRow
	for rows.Next() {
		var d DeliveryRow
		if err := rows.Scan(&d.CampaignID, &d.ParticipantID, &d.Status, &d.Details, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetDeliveryStats(ctx context.Context, campaignID string) (DeliveryStats, error) {
	var st DeliveryStats
	err := s.DB.QueryRowContext(ctx, `
		SELECT
		  COUNT(*)                                 AS total,
		  COUNT(*) FILTER (WHERE status='sent')    AS sent,
		  COUNT(*) FILTER (WHERE status='failed')  AS failed
		FROM deliveries
		WHERE campaign_id = $1
	`, campaignID).Scan(&st.Total, &st.Sent, &st.Failed)
	if err != nil {
		return DeliveryStats{}, err
	}
	return st, nil
}

func (s *Store) InsertCertificate(ctx context.Context, c CertificateRow) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO certificates
		  (id, campaign_id, participant_id, participant_name, course_name,
		   issuer, issue_date, verification_link, media_type, locator, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
	`, c.ID, c.CampaignID, c.ParticipantID, c.ParticipantName, c.CourseName,
		c.Issuer, c.IssueDate, c.VerificationLink, c.MediaType, c.Locator)
	return err
}

func (s *Store) GetCertificate(ctx context.Context, id string) (CertificateRow, error) {
	var c CertificateRow
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, campaign_id, participant_id, participant_name, course_name,
		       issuer, issue_date, verification_link, media_type, locator,
		       revoked_at, created_at
		FROM certificates
		WHERE id = $1
	`, id).Scan(&c.ID, &c.CampaignID, &c.ParticipantID, &c.ParticipantName, &c.CourseName,
		&c.Issuer, &c.IssueDate, &c.VerificationLink, &c.MediaType, &c.Locator,
		&c.RevokedAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CertificateRow{}, ErrNotFound
	}
	if err != nil {
		return CertificateRow{}, err
	}
	return c, nil
}
