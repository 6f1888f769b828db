package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pramaan/certmailer/pkg/metrics"
)

func NewHTTPServer(addr string, h *Handlers) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery(), Observability())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/docs", h.Docs)
	r.GET("/docs/openapi.yaml", h.OpenAPI)

	r.POST("/campaigns", h.CreateCampaign)
	r.GET("/campaigns", h.ListCampaigns)
	r.GET("/campaigns/:id", h.GetCampaign)
	r.POST("/campaigns/:id/participants/validate", h.ValidateParticipants)
	r.POST("/campaigns/:id/participants", h.AcceptParticipants)
	r.GET("/campaigns/:id/participants", h.ListParticipants)
	r.POST("/campaigns/:id/send", h.SendBatch)

	r.GET("/certificates/:id", h.GetCertificateImage)
	r.GET("/verify/:id", h.VerifyCertificate)

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}
