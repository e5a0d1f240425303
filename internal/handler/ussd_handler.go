package handler

import (
	"net/http"
	"strings"

	"foodwaste_ussd/internal/metrics"
	"foodwaste_ussd/internal/middleware"
	"foodwaste_ussd/internal/model"
	"foodwaste_ussd/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgMissingPhone = "Unable to identify your phone number."
	msgUnavailable  = "Service temporarily unavailable. Please try again later."
)

// USSDHandler answers the telephony gateway's session callbacks
type USSDHandler struct {
	service service.USSDService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewUSSDHandler creates a new USSDHandler
func NewUSSDHandler(s service.USSDService, m *metrics.Metrics, logger *zap.Logger) *USSDHandler {
	return &USSDHandler{service: s, metrics: m, logger: logger.Named("ussd_handler")}
}

// Callback always answers 200 text/plain; the gateway only looks at the CON/END prefix.
func (h *USSDHandler) Callback(c *gin.Context) {
	phone := strings.TrimSpace(c.PostForm("phoneNumber"))
	text := c.PostForm("text")

	log := h.logger.With(
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("session_id", c.PostForm("sessionId")),
		zap.String("service_code", c.PostForm("serviceCode")),
		zap.String("phone", phone),
	)
	log.Debug("USSD callback", zap.String("text", text))

	if phone == "" {
		h.reply(c, model.End(msgMissingPhone))
		return
	}

	resp, err := h.service.Handle(c.Request.Context(), phone, text)
	if err != nil {
		log.Error("Error handling USSD request", zap.String("text", text), zap.Error(err))
		if h.metrics != nil {
			h.metrics.InfrastructureErrs.Inc()
		}
		_ = c.Error(err)
		h.reply(c, model.End(msgUnavailable))
		return
	}
	h.reply(c, resp)
}

func (h *USSDHandler) reply(c *gin.Context, resp model.Response) {
	c.String(http.StatusOK, resp.String())
}

// RegisterUSSDRoutes registers the gateway callback
func (h *USSDHandler) RegisterUSSDRoutes(r gin.IRoutes) {
	r.POST("/ussd", h.Callback)
}
