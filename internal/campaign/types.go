package campaign

import "time"

// Participant statuses after name validation.
const (
	ParticipantValid     = "valid"
	ParticipantInvalid   = "invalid"
	ParticipantCorrected = "corrected"
)

// Delivery statuses recorded per participant per send attempt.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Campaign statuses.
const (
	StatusDraft   = "draft"
	StatusSending = "sending"
	StatusSent    = "sent"
)

// CertificateData is the input to certificate generation. ID must be unique
// per issuance; it is derived as "<campaignID>-<participantID>".
type CertificateData struct {
	ID               string `json:"id"`
	ParticipantName  string `json:"participant_name"`
	CourseName       string `json:"course_name"`
	IssueDate        string `json:"issue_date"` // RFC 3339
	Issuer           string `json:"issuer"`
	CampaignID       string `json:"campaign_id"`
	UserID           string `json:"user_id"`
	VerificationLink string `json:"verification_link"`
	Domain           string `json:"domain,omitempty"`
}

// IssuedCertificate is the result of a successful issuance.
type IssuedCertificate struct {
	CertificateID  string `json:"certificate_id"`
	CertificateURL string `json:"certificate_url"`
}

// BatchResult aggregates one batch send. Success is true iff no participant
// failed.
type BatchResult struct {
	SentCount   int  `json:"sent_count"`
	FailedCount int  `json:"failed_count"`
	Success     bool `json:"success"`
}

// SendJob is the queue message for an asynchronous batch send.
type SendJob struct {
	CampaignID     string   `json:"campaign_id"`
	UserID         string   `json:"user_id"`
	ParticipantIDs []string `json:"participant_ids"`
}

type CreateCampaignReq struct {
	Name       string `json:"name" binding:"required"`
	TemplateID string `json:"template_id"`
}

type CreateCampaignResp struct {
	ID string `json:"id"`
}

type CampaignListItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TemplateID string    `json:"template_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Stats      struct {
		Total  int `json:"total"`
		Sent   int `json:"sent"`
		Failed int `json:"failed"`
	} `json:"stats"`
}

type AcceptParticipantsReq struct {
	Participants []AcceptParticipant `json:"participants" binding:"required,min=1,dive"`
}

type AcceptParticipant struct {
	Name         string `json:"name" binding:"required"`
	OriginalName string `json:"original_name"`
	Email        string `json:"email" binding:"required,email"`
	Status       string `json:"status" binding:"required,oneof=valid corrected"`
}

type SendBatchReq struct {
	ParticipantIDs []string `json:"participant_ids"`
	Async          bool     `json:"async"`
}

// NameValidationRow is one row of the participant validation response.
type NameValidationRow struct {
	OriginalName  string `json:"original_name"`
	CorrectedName string `json:"corrected_name"`
	Email         string `json:"email"`
	IsValid       bool   `json:"is_valid"`
	Reason        string `json:"reason,omitempty"`
}
