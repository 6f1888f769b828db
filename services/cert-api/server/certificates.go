package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/pramaan/certmailer/docs"
	"github.com/pramaan/certmailer/internal/certstore"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/logx"
)

// GetCertificateImage serves the stored artifact: inline artifacts are
// returned byte for byte, durable ones redirect to their storage URL.
func (h *Handlers) GetCertificateImage(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	artifact, err := h.Artifacts.Get(ctx, id)
	if errors.Is(err, certstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Certificate not found"})
		return
	}
	if err != nil {
		logx.L().Errorw("certificate_lookup_error", "certificate_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve certificate"})
		return
	}

	if artifact.Inline != nil {
		ext := "png"
		if artifact.MediaType == "image/svg+xml" {
			ext = "svg"
		}
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="certificate-%s.%s"`, id, ext))
		c.Data(http.StatusOK, artifact.MediaType, artifact.Inline)
		return
	}
	c.Redirect(http.StatusFound, artifact.Locator)
}

var verifyTemplate = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Certificate Verification</title>
  <style>
    body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 40px; }
    .card { max-width: 640px; margin: 0 auto; background: #FFFFFF; border-radius: 8px; padding: 40px; text-align: center; box-shadow: 0 4px 15px rgba(0,0,0,0.05); }
    .kicker { text-transform: uppercase; letter-spacing: 2px; color: #666666; font-size: 13px; }
    h1 { color: #2563eb; margin: 8px 0; }
    h2 { margin: 8px 0; }
    .meta { font-family: monospace; font-size: 12px; color: #666666; margin-top: 24px; }
    .verified { color: #16a34a; font-weight: bold; }
    .invalid { color: #dc2626; font-weight: bold; }
    .btn { display: inline-block; margin-top: 24px; padding: 12px 24px; background-color: #2563eb; color: #ffffff; text-decoration: none; border-radius: 4px; font-weight: bold; }
  </style>
</head>
<body>
  <div class="card">
    <p class="kicker">Certificate of Completion</p>
    {{if .Valid}}
    <p>This certifies that</p>
    <h1>{{.ParticipantName}}</h1>
    <p>has successfully completed</p>
    <h2>{{.CourseName}}</h2>
    <p>Issued by {{.Issuer}} on {{.IssueDate}}</p>
    {{if .QRBase64}}<p><img src="data:image/png;base64,{{.QRBase64}}" alt="Verification QR code" width="200" height="200"/><br/>Scan to verify</p>{{end}}
    <p class="verified">&#10003; VERIFIED</p>
    <a class="btn" href="/certificates/{{.ID}}">Download Certificate</a>
    {{else if .Unavailable}}
    <p class="invalid">VERIFICATION UNAVAILABLE</p>
    <p>We could not check this certificate right now. Please try again in a moment.</p>
    {{else}}
    <p class="invalid">NOT VALID</p>
    <p>No valid certificate exists for this ID.</p>
    {{end}}
    <p class="meta">ID: {{.ID}}</p>
  </div>
</body>
</html>`))

// VerifyCertificate renders the public verification page. A certificate is
// VERIFIED iff its record exists and has not been revoked; a lookup failure
// must never present a valid certificate as NOT VALID.
func (h *Handlers) VerifyCertificate(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	page := struct {
		ID              string
		ParticipantName string
		CourseName      string
		Issuer          string
		IssueDate       string
		Valid           bool
		Unavailable     bool
		QRBase64        string
	}{ID: id}
	status := http.StatusOK

	rec, err := h.Store.GetCertificate(ctx, id)
	switch {
	case err == nil:
		if rec.RevokedAt == nil {
			page.Valid = true
			page.ParticipantName = rec.ParticipantName
			page.CourseName = rec.CourseName
			page.Issuer = rec.Issuer
			page.IssueDate = rec.IssueDate
			if t, perr := time.Parse(time.RFC3339, rec.IssueDate); perr == nil {
				page.IssueDate = t.Format("January 2, 2006")
			}
			if png, qerr := qrcode.Encode(rec.VerificationLink, qrcode.High, 200); qerr == nil {
				page.QRBase64 = base64.StdEncoding.EncodeToString(png)
			}
		}
	case errors.Is(err, store.ErrNotFound):
		// NOT VALID
	default:
		logx.L().Errorw("certificate_record_lookup_error", "certificate_id", id, "error", err)
		page.Unavailable = true
		status = http.StatusServiceUnavailable
	}

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := verifyTemplate.Execute(c.Writer, page); err != nil {
		logx.L().Errorw("verify_page_render_error", "certificate_id", id, "error", err)
	}
}

func (h *Handlers) Docs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.CertAPISwaggerHTML)
}

func (h *Handlers) OpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", docs.CertAPIOpenAPI)
}
