package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status    bool        `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func envelope(ok bool, message string, data interface{}) Envelope {
	return Envelope{
		Status:    ok,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// OK sends a 200 success envelope.
func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, envelope(true, message, data))
}

// Fail sends a failure envelope with the given status and aborts the chain.
func Fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, envelope(false, message, nil))
}

// BadRequest sends a 400 failure envelope.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 failure envelope.
func Unauthorized(c *gin.Context) {
	Fail(c, http.StatusUnauthorized, "Unauthorized")
}

// NotFound sends a 404 failure envelope.
func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, message)
}

// InternalError sends a 500 failure envelope.
func InternalError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, message)
}

// Unavailable sends a 503 failure envelope.
func Unavailable(c *gin.Context, message string) {
	Fail(c, http.StatusServiceUnavailable, message)
}
