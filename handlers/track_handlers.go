package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sitepulse/api/analytics"
	"sitepulse/api/apperr"
	"sitepulse/api/models"
	"sitepulse/api/response"
	"sitepulse/api/script"
	"sitepulse/api/tracker"
	"sitepulse/api/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 15 * time.Second
)

type TrackingHandlers struct {
	Tracker   *tracker.Tracker
	Analytics *analytics.Service
	Script    *script.Renderer
	log       *zap.Logger
}

func NewTrackingHandlers(t *tracker.Tracker, a *analytics.Service, s *script.Renderer, log *zap.Logger) *TrackingHandlers {
	return &TrackingHandlers{
		Tracker:   t,
		Analytics: a,
		Script:    s,
		log:       log.With(zap.String("component", "tracking_handlers")),
	}
}

// Track records one page-view or session-end event. Store operation failures
// are answered with status false rather than an HTTP error.
func (h *TrackingHandlers) Track(c *gin.Context) {
	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug("invalid tracking body", zap.Error(err))
		response.BadRequest(c, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
	defer cancel()

	sessionID, err := h.Tracker.Track(ctx, &req, c.ClientIP())
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			response.BadRequest(c, publicMessage(err))
		case apperr.KindUnavailable:
			h.log.Error("tracking store unavailable", zap.Error(err))
			response.Unavailable(c, publicMessage(err))
		default:
			h.log.Warn("failed to record tracking event", zap.String("domain", req.Domain), zap.Error(err))
			c.JSON(http.StatusOK, response.Envelope{
				Status:    false,
				Message:   publicMessage(err),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}
		return
	}

	response.OK(c, "Tracking data received successfully", models.TrackResult{SessionID: sessionID})
}

// DomainAnalytics returns the aggregated snapshot of one domain, optionally
// narrowed by the from, to, device, browser, os and page query parameters.
func (h *TrackingHandlers) DomainAnalytics(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		response.BadRequest(c, publicMessage(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	snapshot, err := h.Analytics.DomainAnalytics(ctx, c.Param("domain"), filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	response.OK(c, "Analytics retrieved successfully", snapshot)
}

func (h *TrackingHandlers) Domains(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	domains, err := h.Analytics.Domains(ctx)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if domains == nil {
		domains = []string{}
	}
	response.OK(c, "Domains retrieved successfully", gin.H{"domains": domains})
}

// Script serves the embeddable tracking snippet.
func (h *TrackingHandlers) Script(c *gin.Context) {
	out, err := h.Script.Render(c.Request)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", out)
}

func parseFilter(c *gin.Context) (models.EventFilter, error) {
	var f models.EventFilter
	var err error
	if f.From, err = utils.ParseRFC3339(c.Query("from")); err != nil {
		return f, apperr.Validation("parse filter", "invalid 'from' timestamp, use RFC3339 (e.g. 2006-01-02T15:04:05Z)")
	}
	if f.To, err = utils.ParseRFC3339(c.Query("to")); err != nil {
		return f, apperr.Validation("parse filter", "invalid 'to' timestamp, use RFC3339 (e.g. 2006-01-02T15:04:05Z)")
	}
	if device := strings.ToLower(strings.TrimSpace(c.Query("device"))); device != "" {
		if models.NormalizeDeviceType(device) != device {
			return f, apperr.Validation("parse filter", "invalid device %q, expected mobile, tablet, desktop or unknown", device)
		}
		f.DeviceType = device
	}
	f.Browser = strings.TrimSpace(c.Query("browser"))
	f.OS = strings.TrimSpace(c.Query("os"))
	f.PagePath = strings.TrimSpace(c.Query("page"))
	return f, nil
}
