// Package render turns certificate data into image bytes. The raster
// renderer composites a PNG with an embedded QR code and needs a TTF font
// face; when no usable font is configured the SVG renderer produces a
// degraded but valid vector artifact with the same fields. The choice is
// made once at startup, never per call.
package render

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pramaan/certmailer/internal/campaign"
)

// ErrQREncode marks a verification link that could not be QR-encoded.
var ErrQREncode = errors.New("qr encode failed")

const (
	canvasWidth  = 800
	canvasHeight = 600
	qrSize       = 150
)

type Renderer interface {
	// Render returns the image bytes and their media type. It must not
	// fail for arbitrary Unicode participant or course names.
	Render(ctx context.Context, data campaign.CertificateData) ([]byte, string, error)
}

// Select probes the raster backend and falls back to the vector renderer.
// A missing raster backend is a declared non-fatal condition.
func Select(fontPath string, log *zap.SugaredLogger) Renderer {
	if fontPath != "" {
		r, err := NewRaster(fontPath)
		if err == nil {
			log.Infow("renderer_selected", "kind", "raster", "font", fontPath)
			return r
		}
		log.Warnw("raster_renderer_unavailable", "font", fontPath, "error", err)
	}
	log.Infow("renderer_selected", "kind", "svg")
	return NewSVG()
}

// humanDate renders an RFC 3339 issue date for display. Unparseable input
// is shown verbatim rather than failing the render.
func humanDate(issueDate string) string {
	t, err := time.Parse(time.RFC3339, issueDate)
	if err != nil {
		return issueDate
	}
	return t.Format("January 2, 2006")
}
