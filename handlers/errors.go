package handlers

import (
	"errors"
	"net/http"

	"sitepulse/api/apperr"
	"sitepulse/api/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps an error kind onto the HTTP status of read and chat routes.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnavailable, apperr.KindDisabled:
		return http.StatusServiceUnavailable
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the client-facing text of err without the operation prefix.
func publicMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

func writeError(c *gin.Context, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)

	fields := []zap.Field{zap.String("kind", kind.String()), zap.String("path", c.FullPath()), zap.Error(err)}
	if code >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Debug("request rejected", fields...)
	}

	msg := publicMessage(err)
	if kind == apperr.KindInternal {
		msg = "Internal server error"
	}
	response.Fail(c, code, msg)
}
