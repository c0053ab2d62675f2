package handlers

import (
	"context"

	"sitepulse/api/response"
	"sitepulse/api/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CounterSource reports the sockets held by the live hub.
type CounterSource interface {
	Count() int
}

type HealthHandlers struct {
	Store  store.Store
	Driver string
	Live   CounterSource
	log    *zap.Logger
}

func NewHealthHandlers(s store.Store, driver string, live CounterSource, log *zap.Logger) *HealthHandlers {
	return &HealthHandlers{Store: s, Driver: driver, Live: live, log: log.With(zap.String("component", "health_handlers"))}
}

func (h *HealthHandlers) Root(c *gin.Context) {
	response.OK(c, "Welcome to the SitePulse analytics API", nil)
}

// Test checks that the event store answers.
func (h *HealthHandlers) Test(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readTimeout)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, h.log, err)
		return
	}
	data := gin.H{"message": "Store connection successful", "driver": h.Driver}
	if h.Live != nil {
		data["live_connections"] = h.Live.Count()
	}
	response.OK(c, "Success", data)
}
