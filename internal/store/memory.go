package store

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Memory is an in-process implementation of the same surface as Store. It
// backs tests and the degraded mode where Postgres is not configured.
type Memory struct {
	mu           sync.RWMutex
	campaigns    map[string]CampaignRow
	participants map[string]map[string]ParticipantRow // campaignID -> participantID
	deliveries   map[string]map[string]DeliveryRow
	certificates map[string]CertificateRow
}

func NewMemory() *Memory {
	return &Memory{
		campaigns:    make(map[string]CampaignRow),
		participants: make(map[string]map[string]ParticipantRow),
		deliveries:   make(map[string]map[string]DeliveryRow),
		certificates: make(map[string]CertificateRow),
	}
}

// WithTx runs fn directly; the in-memory store has no transactions.
func (m *Memory) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (m *Memory) InsertCampaign(ctx context.Context, _ *sql.Tx, c CampaignRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	m.campaigns[c.ID] = c
	return nil
}

func (m *Memory) GetCampaign(ctx context.Context, id string) (CampaignRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return CampaignRow{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) UpdateCampaignStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	m.campaigns[id] = c
	return nil
}

func (m *Memory) ListCampaigns(ctx context.Context, userID string, limit, offset int) ([]CampaignRow, []DeliveryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CampaignRow
	var stats []DeliveryStats
	for _, c := range m.campaigns {
		if c.UserID != userID {
			continue
		}
		out = append(out, c)
		stats = append(stats, m.statsLocked(c.ID))
	}
	return out, stats, nil
}

func (m *Memory) InsertParticipant(ctx context.Context, _ *sql.Tx, p ParticipantRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.participants[p.CampaignID]
	if !ok {
		byID = make(map[string]ParticipantRow)
		m.participants[p.CampaignID] = byID
	}
	p.CreatedAt = time.Now().UTC()
	byID[p.ID] = p
	return nil
}

func (m *Memory) GetParticipant(ctx context.Context, campaignID, participantID string) (ParticipantRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[campaignID][participantID]
	if !ok {
		return ParticipantRow{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListParticipants(ctx context.Context, campaignID string) ([]ParticipantRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ParticipantRow
	for _, p := range m.participants[campaignID] {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) UpsertDelivery(ctx context.Context, d DeliveryRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.deliveries[d.CampaignID]
	if !ok {
		byID = make(map[string]DeliveryRow)
		m.deliveries[d.CampaignID] = byID
	}
	d.UpdatedAt = time.Now().UTC()
	byID[d.ParticipantID] = d
	return nil
}

func (m *Memory) ListDeliveries(ctx context.Context, campaignID string) ([]DeliveryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []DeliveryRow
	for _, d := range m.deliveries[campaignID] {
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) GetDeliveryStats(ctx context.Context, campaignID string) (DeliveryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked(campaignID), nil
}

func (m *Memory) statsLocked(campaignID string) DeliveryStats {
	var st DeliveryStats
	for _, d := range m.deliveries[campaignID] {
		st.Total++
		switch d.Status {
		case "sent":
			st.Sent++
		case "failed":
			st.Failed++
		}
	}
	return st
}

func (m *Memory) InsertCertificate(ctx context.Context, c CertificateRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now().UTC()
	m.certificates[c.ID] = c
	return nil
}

func (m *Memory) GetCertificate(ctx context.Context, id string) (CertificateRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.certificates[id]
	if !ok {
		return CertificateRow{}, ErrNotFound
	}
	return c, nil
}
