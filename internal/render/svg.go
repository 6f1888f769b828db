package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/pramaan/certmailer/internal/campaign"
)

// svgTemplate mirrors the raster layout; user-controlled strings pass
// through html/template escaping before landing in the markup.
var svgTemplate = template.Must(template.New("certificate").Parse(`<svg width="800" height="600" xmlns="http://www.w3.org/2000/svg">
  <rect width="100%" height="100%" fill="white"/>
  <rect x="10" y="10" width="780" height="580" fill="none" stroke="#2563eb" stroke-width="4"/>
  <text x="400" y="60" font-family="Arial" font-size="48" font-weight="bold" fill="#2563eb" text-anchor="middle">CERTIFICATE</text>
  <text x="400" y="100" font-family="Arial" font-size="24" fill="#666666" text-anchor="middle">OF COMPLETION</text>
  <line x1="50" y1="120" x2="750" y2="120" stroke="#cccccc" stroke-width="1"/>
  <text x="400" y="160" font-family="Arial" font-size="20" fill="#000000" text-anchor="middle">This certifies that</text>
  <text x="400" y="200" font-family="Arial" font-size="32" font-weight="bold" fill="#2563eb" text-anchor="middle">{{.ParticipantName}}</text>
  <text x="400" y="240" font-family="Arial" font-size="20" fill="#000000" text-anchor="middle">has successfully completed the course</text>
  <text x="400" y="280" font-family="Arial" font-size="28" font-weight="bold" fill="#2563eb" text-anchor="middle">{{.CourseName}}</text>
  <text x="400" y="330" font-family="Arial" font-size="16" fill="#666666" text-anchor="middle">Issued by: {{.Issuer}}</text>
  <text x="400" y="360" font-family="Arial" font-size="16" fill="#666666" text-anchor="middle">Date: {{.IssueDate}}</text>
  <text x="400" y="390" font-family="Arial" font-size="14" fill="#666666" text-anchor="middle">Certificate ID: {{.ID}}</text>
  <text x="400" y="580" font-family="Arial" font-size="16" fill="#999999" text-anchor="middle">Powered by Pramaan</text>
</svg>`))

// SVG renders the vector fallback certificate. It carries the same semantic
// fields as the raster output but no QR bitmap.
type SVG struct{}

func NewSVG() *SVG { return &SVG{} }

func (s *SVG) Render(ctx context.Context, data campaign.CertificateData) ([]byte, string, error) {
	fill := struct {
		ID, ParticipantName, CourseName, Issuer, IssueDate string
	}{
		ID:              data.ID,
		ParticipantName: data.ParticipantName,
		CourseName:      data.CourseName,
		Issuer:          data.Issuer,
		IssueDate:       humanDate(data.IssueDate),
	}

	var buf bytes.Buffer
	if err := svgTemplate.Execute(&buf, fill); err != nil {
		return nil, "", fmt.Errorf("render svg: %w", err)
	}
	return buf.Bytes(), "image/svg+xml", nil
}
