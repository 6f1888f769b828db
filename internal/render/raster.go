package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/pramaan/certmailer/internal/campaign"
)

// Raster composites an 800x600 PNG certificate with a scannable QR code.
type Raster struct {
	fontPath string
}

// NewRaster verifies the font face loads before the renderer is ever used,
// so rendering itself cannot fail on a missing backend.
func NewRaster(fontPath string) (*Raster, error) {
	probe := gg.NewContext(1, 1)
	if err := probe.LoadFontFace(fontPath, 12); err != nil {
		return nil, fmt.Errorf("load font face: %w", err)
	}
	return &Raster{fontPath: fontPath}, nil
}

func (r *Raster) font(dc *gg.Context, points float64) {
	// probed in NewRaster, a later failure only leaves the previous face active
	_ = dc.LoadFontFace(r.fontPath, points)
}

func (r *Raster) Render(ctx context.Context, data campaign.CertificateData) ([]byte, string, error) {
	qr, err := qrcode.New(data.VerificationLink, qrcode.High)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrQREncode, err)
	}

	dc := gg.NewContext(canvasWidth, canvasHeight)

	dc.SetHexColor("#ffffff")
	dc.DrawRectangle(0, 0, canvasWidth, canvasHeight)
	dc.Fill()

	dc.SetHexColor("#2563eb")
	dc.SetLineWidth(4)
	dc.DrawRectangle(10, 10, canvasWidth-20, canvasHeight-20)
	dc.Stroke()

	r.font(dc, 48)
	dc.SetHexColor("#2563eb")
	dc.DrawStringAnchored("CERTIFICATE", canvasWidth/2, 60, 0.5, 0.5)

	r.font(dc, 24)
	dc.SetHexColor("#666666")
	dc.DrawStringAnchored("OF COMPLETION", canvasWidth/2, 100, 0.5, 0.5)

	dc.SetHexColor("#cccccc")
	dc.SetLineWidth(1)
	dc.DrawLine(50, 120, canvasWidth-50, 120)
	dc.Stroke()

	r.font(dc, 20)
	dc.SetHexColor("#000000")
	dc.DrawStringAnchored("This certifies that", canvasWidth/2, 160, 0.5, 0.5)

	r.font(dc, 32)
	dc.SetHexColor("#2563eb")
	dc.DrawStringAnchored(data.ParticipantName, canvasWidth/2, 200, 0.5, 0.5)

	r.font(dc, 20)
	dc.SetHexColor("#000000")
	dc.DrawStringAnchored("has successfully completed the course", canvasWidth/2, 240, 0.5, 0.5)

	r.font(dc, 28)
	dc.SetHexColor("#2563eb")
	dc.DrawStringAnchored(data.CourseName, canvasWidth/2, 280, 0.5, 0.5)

	r.font(dc, 16)
	dc.SetHexColor("#666666")
	dc.DrawStringAnchored("Issued by: "+data.Issuer, canvasWidth/2, 330, 0.5, 0.5)
	dc.DrawStringAnchored("Date: "+humanDate(data.IssueDate), canvasWidth/2, 360, 0.5, 0.5)

	r.font(dc, 14)
	dc.DrawStringAnchored("Certificate ID: "+data.ID, canvasWidth/2, 390, 0.5, 0.5)

	dc.DrawImage(qr.Image(qrSize), canvasWidth-qrSize-20, canvasHeight-qrSize-20)

	r.font(dc, 14)
	dc.SetHexColor("#666666")
	dc.DrawStringAnchored("Scan to verify", canvasWidth-qrSize/2-20, canvasHeight-15, 0.5, 0.5)

	r.font(dc, 16)
	dc.SetHexColor("#999999")
	dc.DrawStringAnchored("Powered by Pramaan", canvasWidth/2, canvasHeight-20, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
