package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pramaan/certmailer/internal/campaign"
	"github.com/pramaan/certmailer/internal/cert"
	"github.com/pramaan/certmailer/internal/certstore"
	"github.com/pramaan/certmailer/internal/dispatch"
	"github.com/pramaan/certmailer/internal/mailer"
	"github.com/pramaan/certmailer/internal/names"
	"github.com/pramaan/certmailer/internal/render"
	"github.com/pramaan/certmailer/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type fakeValidator struct {
	corrections map[string]string // original -> corrected
	err         error
}

func (f *fakeValidator) ValidateNames(ctx context.Context, raw []string) ([]names.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]names.Result, 0, len(raw))
	for _, n := range raw {
		r := names.Result{OriginalName: n, CorrectedName: n, IsValid: true}
		if corrected, ok := f.corrections[n]; ok {
			r.CorrectedName = corrected
			r.IsValid = false
			r.Reason = "likely typo"
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeMailSender struct {
	failFor map[string]error
	sent    []mailer.Message
}

func (f *fakeMailSender) Send(ctx context.Context, msg mailer.Message) (string, error) {
	if err := f.failFor[msg.To]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To, nil
}

type fakePublisher struct {
	payloads [][]byte
	err      error
}

func (f *fakePublisher) PublishJSON(ctx context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, body)
	return nil
}

type testEnv struct {
	handler   http.Handler
	store     *store.Memory
	artifacts *certstore.Memory
	sender    *fakeMailSender
	handlers  *Handlers
}

func newTestEnv() *testEnv {
	mem := store.NewMemory()
	artifacts := certstore.NewMemory()
	sender := &fakeMailSender{}

	generator := cert.NewGenerator(render.NewSVG(), artifacts, mem)
	dispatcher := dispatch.New(mem, generator, sender, zap.NewNop().Sugar(), dispatch.Options{
		Domain:      "app.example",
		IssuerName:  "Pramaan",
		FromAddress: "certs@example.com",
		CallTimeout: time.Second,
	})

	h := &Handlers{
		Store:      mem,
		Artifacts:  artifacts,
		Dispatcher: dispatcher,
		Validator:  &fakeValidator{corrections: map[string]string{"Jonh Doe": "John Doe"}},
	}
	return &testEnv{
		handler:   NewHTTPServer(":0", h).Handler,
		store:     mem,
		artifacts: artifacts,
		sender:    sender,
		handlers:  h,
	}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedCampaign(t *testing.T, participantIDs ...string) store.CampaignRow {
	t.Helper()
	ctx := context.Background()
	camp := store.CampaignRow{ID: "c1", UserID: "u1", Name: "Go Fundamentals", Status: campaign.StatusDraft}
	require.NoError(t, e.store.InsertCampaign(ctx, nil, camp))
	for _, pid := range participantIDs {
		require.NoError(t, e.store.InsertParticipant(ctx, nil, store.ParticipantRow{
			ID:         pid,
			CampaignID: camp.ID,
			Name:       "Name " + pid,
			Email:      pid + "@example.com",
			Status:     campaign.ParticipantValid,
		}))
	}
	return camp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestCreateCampaign(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, http.MethodPost, "/campaigns", "application/json",
		[]byte(`{"name":"Go Fundamentals","template_id":"tpl-1"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp campaign.CreateCampaignResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)

	camp, err := env.store.GetCampaign(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Fundamentals", camp.Name)
	assert.Equal(t, "u1", camp.UserID)
	assert.Equal(t, campaign.StatusDraft, camp.Status)
}

func TestCreateCampaign_MissingName(t *testing.T) {
	env := newTestEnv()
	w := env.do(t, http.MethodPost, "/campaigns", "application/json", []byte(`{"template_id":"tpl-1"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCampaign(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t, "a")
	require.NoError(t, env.store.UpsertDelivery(context.Background(), store.DeliveryRow{
		CampaignID: "c1", ParticipantID: "a", Status: campaign.DeliverySent,
	}))

	w := env.do(t, http.MethodGet, "/campaigns/c1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		campaign.CampaignListItem
		Deliveries []struct {
			ParticipantID string `json:"participant_id"`
			Status        string `json:"status"`
		} `json:"deliveries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, 1, resp.Stats.Sent)
	require.Len(t, resp.Deliveries, 1)
	assert.Equal(t, "a", resp.Deliveries[0].ParticipantID)
	assert.Equal(t, campaign.DeliverySent, resp.Deliveries[0].Status)
}

func TestGetCampaign_NotFound(t *testing.T) {
	env := newTestEnv()
	w := env.do(t, http.MethodGet, "/campaigns/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateParticipants(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t)

	csv := "Name,Email\nJonh Doe,jonh@example.com\nJane Roe,jane@example.com\n"
	w := env.do(t, http.MethodPost, "/campaigns/c1/participants/validate", "text/csv", []byte(csv))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []campaign.NameValidationRow `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "Jonh Doe", resp.Results[0].OriginalName)
	assert.Equal(t, "John Doe", resp.Results[0].CorrectedName)
	assert.Equal(t, "jonh@example.com", resp.Results[0].Email)
	assert.False(t, resp.Results[0].IsValid)

	assert.Equal(t, "Jane Roe", resp.Results[1].CorrectedName)
	assert.True(t, resp.Results[1].IsValid)
}

func TestValidateParticipants_BadCSV(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t)

	cases := map[string]string{
		"empty file":    "",
		"wrong header":  "Foo,Bar\nJohn,j@example.com\n",
		"blank field":   "Name,Email\n,j@example.com\n",
		"no data rows":  "Name,Email\n",
		"single column": "Name\nJohn\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/campaigns/c1/participants/validate", "text/csv", []byte(body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestValidateParticipants_UnknownCampaign(t *testing.T) {
	env := newTestEnv()
	w := env.do(t, http.MethodPost, "/campaigns/nope/participants/validate", "text/csv",
		[]byte("Name,Email\nJohn,j@example.com\n"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateParticipants_ValidatorDown(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t)
	env.handlers.Validator = &fakeValidator{err: errors.New("model overloaded")}

	w := env.do(t, http.MethodPost, "/campaigns/c1/participants/validate", "text/csv",
		[]byte("Name,Email\nJohn,j@example.com\n"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestValidateParticipants_NotConfigured(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t)
	env.handlers.Validator = nil

	w := env.do(t, http.MethodPost, "/campaigns/c1/participants/validate", "text/csv",
		[]byte("Name,Email\nJohn,j@example.com\n"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAcceptParticipants(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t)

	body := `{"participants":[
		{"name":"John Doe","original_name":"Jonh Doe","email":"jonh@example.com","status":"corrected"},
		{"name":"Jane Roe","email":"jane@example.com","status":"valid"}
	]}`
	w := env.do(t, http.MethodPost, "/campaigns/c1/participants", "application/json", []byte(body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ParticipantIDs []string `json:"participant_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.ParticipantIDs, 2)

	rows, err := env.store.ListParticipants(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byEmail := map[string]store.ParticipantRow{}
	for _, r := range rows {
		byEmail[r.Email] = r
	}
	corrected := byEmail["jonh@example.com"]
	assert.Equal(t, "John Doe", corrected.Name)
	assert.Equal(t, "Jonh Doe", corrected.OriginalName)
	assert.Equal(t, campaign.ParticipantCorrected, corrected.Status)

	valid := byEmail["jane@example.com"]
	assert.Equal(t, "Jane Roe", valid.OriginalName, "original name defaults to the accepted name")
	assert.Equal(t, campaign.ParticipantValid, valid.Status)
}

func TestAcceptParticipants_RejectsBadStatus(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t)

	body := `{"participants":[{"name":"John","email":"j@example.com","status":"weird"}]}`
	w := env.do(t, http.MethodPost, "/campaigns/c1/participants", "application/json", []byte(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendBatch_Sync(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t, "a", "b", "c")
	env.sender.failFor = map[string]error{"b@example.com": errors.New("mailbox full")}

	w := env.do(t, http.MethodPost, "/campaigns/c1/send", "application/json", []byte(`{}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		SentCount   int    `json:"sent_count"`
		FailedCount int    `json:"failed_count"`
		Success     bool   `json:"success"`
		Error       string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.SentCount)
	assert.Equal(t, 1, resp.FailedCount)
	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to send 1 email(s). Check server logs for details.", resp.Error)

	camp, err := env.store.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusSent, camp.Status)

	stats, err := env.store.GetDeliveryStats(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
}

func TestSendBatch_EmptyBodySendsAll(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t, "a", "b")

	w := env.do(t, http.MethodPost, "/campaigns/c1/send", "application/json", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp campaign.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.SentCount)
	assert.True(t, resp.Success)
	assert.Len(t, env.sender.sent, 2)
}

func TestSendBatch_SubsetOfParticipants(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t, "a", "b", "c")

	w := env.do(t, http.MethodPost, "/campaigns/c1/send", "application/json",
		[]byte(`{"participant_ids":["b"]}`))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "b@example.com", env.sender.sent[0].To)
}

func TestSendBatch_UnknownCampaign(t *testing.T) {
	env := newTestEnv()
	w := env.do(t, http.MethodPost, "/campaigns/nope/send", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendBatch_NoParticipants(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t)
	w := env.do(t, http.MethodPost, "/campaigns/c1/send", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendBatch_AsyncQueuesJob(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t, "a", "b")
	pub := &fakePublisher{}
	env.handlers.Pub = pub

	w := env.do(t, http.MethodPost, "/campaigns/c1/send", "application/json", []byte(`{"async":true}`))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Len(t, pub.payloads, 1)
	var job campaign.SendJob
	require.NoError(t, json.Unmarshal(pub.payloads[0], &job))
	assert.Equal(t, "c1", job.CampaignID)
	assert.Equal(t, "u1", job.UserID)
	assert.ElementsMatch(t, []string{"a", "b"}, job.ParticipantIDs)
	assert.Empty(t, env.sender.sent, "async send must not deliver inline")
}

func TestSendBatch_AsyncWithoutQueue(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t, "a")

	w := env.do(t, http.MethodPost, "/campaigns/c1/send", "application/json", []byte(`{"async":true}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSendBatch_QueueUnavailable(t *testing.T) {
	env := newTestEnv()
	env.seedCampaign(t, "a")
	env.handlers.Pub = &fakePublisher{err: errors.New("connection refused")}

	w := env.do(t, http.MethodPost, "/campaigns/c1/send", "application/json", []byte(`{"async":true}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetCertificateImage_Inline(t *testing.T) {
	env := newTestEnv()
	img := []byte("<svg>certificate</svg>")
	_, err := env.artifacts.Put(context.Background(), "c1-p1", img, "image/svg+xml")
	require.NoError(t, err)

	first := env.do(t, http.MethodGet, "/certificates/c1-p1", "", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "image/svg+xml", first.Header().Get("Content-Type"))
	assert.Contains(t, first.Header().Get("Content-Disposition"), `filename="certificate-c1-p1.svg"`)
	assert.Equal(t, img, first.Body.Bytes())

	second := env.do(t, http.MethodGet, "/certificates/c1-p1", "", nil)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes(), "repeated retrieval must yield identical bytes")
}

func TestGetCertificateImage_NotFound(t *testing.T) {
	env := newTestEnv()
	w := env.do(t, http.MethodGet, "/certificates/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Certificate not found")
}

type locatorOnlyArtifacts struct {
	locator string
}

func (l *locatorOnlyArtifacts) Put(ctx context.Context, id string, data []byte, mediaType string) (string, error) {
	return l.locator, nil
}

func (l *locatorOnlyArtifacts) Get(ctx context.Context, id string) (certstore.Artifact, error) {
	return certstore.Artifact{ID: id, MediaType: "image/png", Locator: l.locator}, nil
}

func TestGetCertificateImage_RedirectsToDurableStorage(t *testing.T) {
	env := newTestEnv()
	env.handlers.Artifacts = &locatorOnlyArtifacts{locator: "https://bucket.example/certificates/c1-p1.png"}

	w := env.do(t, http.MethodGet, "/certificates/c1-p1", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://bucket.example/certificates/c1-p1.png", w.Header().Get("Location"))
}

func TestVerifyCertificate(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.store.InsertCertificate(context.Background(), store.CertificateRow{
		ID:               "c1-p1",
		CampaignID:       "c1",
		ParticipantID:    "p1",
		ParticipantName:  "John Doe",
		CourseName:       "Go Fundamentals",
		Issuer:           "Pramaan",
		IssueDate:        "2026-08-20T10:00:00Z",
		VerificationLink: "https://app.example/verify/c1-p1",
		MediaType:        "image/png",
		Locator:          "https://bucket.example/certificates/c1-p1.png",
	}))

	w := env.do(t, http.MethodGet, "/verify/c1-p1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	page := w.Body.String()
	assert.Contains(t, page, "VERIFIED")
	assert.Contains(t, page, "John Doe")
	assert.Contains(t, page, "Go Fundamentals")
	assert.Contains(t, page, "August 20, 2026")
	assert.Contains(t, page, `href="/certificates/c1-p1"`)
	assert.Contains(t, page, "data:image/png;base64,")
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
}

func TestVerifyCertificate_Unknown(t *testing.T) {
	env := newTestEnv()
	w := env.do(t, http.MethodGet, "/verify/ghost", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NOT VALID")
	assert.NotContains(t, w.Body.String(), "VERIFIED")
}

type downCertStore struct {
	*store.Memory
}

func (d *downCertStore) GetCertificate(ctx context.Context, id string) (store.CertificateRow, error) {
	return store.CertificateRow{}, errors.New("connection reset by peer")
}

func TestVerifyCertificate_LookupFailureIsNotInvalid(t *testing.T) {
	env := newTestEnv()
	env.handlers.Store = &downCertStore{Memory: env.store}

	w := env.do(t, http.MethodGet, "/verify/c1-p1", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "VERIFICATION UNAVAILABLE")
	assert.NotContains(t, w.Body.String(), "NOT VALID")
	assert.NotContains(t, w.Body.String(), "No valid certificate exists")
}

func TestVerifyCertificate_Revoked(t *testing.T) {
	env := newTestEnv()
	revoked := time.Now().UTC()
	require.NoError(t, env.store.InsertCertificate(context.Background(), store.CertificateRow{
		ID:               "c1-p1",
		ParticipantName:  "John Doe",
		CourseName:       "Go Fundamentals",
		Issuer:           "Pramaan",
		IssueDate:        "2026-08-20T10:00:00Z",
		VerificationLink: "https://app.example/verify/c1-p1",
		RevokedAt:        &revoked,
	}))

	w := env.do(t, http.MethodGet, "/verify/c1-p1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NOT VALID")
}

func TestDocs(t *testing.T) {
	env := newTestEnv()

	w := env.do(t, http.MethodGet, "/docs", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SwaggerUIBundle")

	w = env.do(t, http.MethodGet, "/docs/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi:")
}
