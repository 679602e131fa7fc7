// internal/pkg/response/response.go
package response

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Page sends a list response with pagination meta.
func Page(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// Error sends a standardized error response. code is the machine-readable
// error kind clients switch on; message is for humans.
func Error(c *gin.Context, status int, code, message string) {
	// CRITICAL: Abort FIRST before writing response
	c.Abort()

	c.JSON(status, Response{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, code, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, "FORBIDDEN", message)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "NOT_FOUND", message)
}

// Envelope is the client-side view of Response: data stays raw until the
// caller knows its type.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// ErrorText returns the most specific human-readable text in an error body.
func (e *Envelope) ErrorText() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// DecodeData unmarshals the data member into out. A missing data member
// leaves out untouched.
func (e *Envelope) DecodeData(out interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}
