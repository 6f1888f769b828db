// Package cert issues verifiable certificates: validate the input, render
// the image, persist the artifact exactly once and record its metadata.
package cert

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pramaan/certmailer/internal/campaign"
	"github.com/pramaan/certmailer/internal/certstore"
	"github.com/pramaan/certmailer/internal/render"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/metrics"
)

// ErrInvalidData marks certificate data that fails validation before any
// rendering or storage happens.
var ErrInvalidData = errors.New("invalid certificate data")

// Records persists certificate metadata rows.
type Records interface {
	GetCertificate(ctx context.Context, id string) (store.CertificateRow, error)
	InsertCertificate(ctx context.Context, c store.CertificateRow) error
}

type Generator struct {
	renderer  render.Renderer
	artifacts certstore.Store
	records   Records
}

func NewGenerator(r render.Renderer, artifacts certstore.Store, records Records) *Generator {
	return &Generator{renderer: r, artifacts: artifacts, records: records}
}

// CertificateID derives the issuance ID for a participant. Deterministic,
// so re-sending reuses the prior certificate instead of minting a new one.
func CertificateID(campaignID, participantID string) string {
	return campaignID + "-" + participantID
}

// Issue produces the certificate for one participant. A failure at any step
// is reported once to the caller; there is no internal retry. Concurrent
// issuances for distinct participants do not interfere: the only shared
// state is the artifact keyspace, partitioned by unique ID.
func (g *Generator) Issue(ctx context.Context, data campaign.CertificateData) (campaign.IssuedCertificate, error) {
	if err := validate(data); err != nil {
		metrics.CertificateIssueFailures.Inc()
		return campaign.IssuedCertificate{}, err
	}

	// a record for this ID means the artifact already exists; reuse it so
	// the store is never written twice for one ID
	existing, err := g.records.GetCertificate(ctx, data.ID)
	if err == nil {
		metrics.CertificatesReused.Inc()
		return campaign.IssuedCertificate{CertificateID: existing.ID, CertificateURL: existing.Locator}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		metrics.CertificateIssueFailures.Inc()
		return campaign.IssuedCertificate{}, fmt.Errorf("lookup certificate %s: %w", data.ID, err)
	}

	img, mediaType, err := g.renderer.Render(ctx, data)
	if err != nil {
		metrics.CertificateIssueFailures.Inc()
		return campaign.IssuedCertificate{}, fmt.Errorf("render certificate %s: %w", data.ID, err)
	}

	locator, err := g.artifacts.Put(ctx, data.ID, img, mediaType)
	if err != nil {
		metrics.CertificateIssueFailures.Inc()
		return campaign.IssuedCertificate{}, fmt.Errorf("store certificate %s: %w", data.ID, err)
	}

	rec := store.CertificateRow{
		ID:               data.ID,
		CampaignID:       data.CampaignID,
		ParticipantID:    participantIDFrom(data),
		ParticipantName:  data.ParticipantName,
		CourseName:       data.CourseName,
		Issuer:           data.Issuer,
		IssueDate:        data.IssueDate,
		VerificationLink: data.VerificationLink,
		MediaType:        mediaType,
		Locator:          locator,
	}
	if err := g.records.InsertCertificate(ctx, rec); err != nil {
		metrics.CertificateIssueFailures.Inc()
		return campaign.IssuedCertificate{}, fmt.Errorf("record certificate %s: %w", data.ID, err)
	}

	metrics.CertificatesIssued.Inc()
	return campaign.IssuedCertificate{CertificateID: data.ID, CertificateURL: locator}, nil
}

func participantIDFrom(data campaign.CertificateData) string {
	if len(data.ID) > len(data.CampaignID)+1 {
		return data.ID[len(data.CampaignID)+1:]
	}
	return ""
}

func validate(data campaign.CertificateData) error {
	switch {
	case data.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidData)
	case data.ParticipantName == "":
		return fmt.Errorf("%w: missing participant name", ErrInvalidData)
	case data.CourseName == "":
		return fmt.Errorf("%w: missing course name", ErrInvalidData)
	case data.Issuer == "":
		return fmt.Errorf("%w: missing issuer", ErrInvalidData)
	case data.CampaignID == "":
		return fmt.Errorf("%w: missing campaign id", ErrInvalidData)
	}

	if _, err := time.Parse(time.RFC3339, data.IssueDate); err != nil {
		return fmt.Errorf("%w: issue date %q is not RFC 3339", ErrInvalidData, data.IssueDate)
	}

	u, err := url.Parse(data.VerificationLink)
	if err != nil || !u.IsAbs() || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: verification link %q is not an absolute http(s) url", ErrInvalidData, data.VerificationLink)
	}
	return nil
}
