// Package response writes the JSON envelope shared by every HTTP endpoint.
package response

import (
	"encoding/json"
	"net/http"
	"time"
)

// TimestampLayout formats Envelope.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Envelope wraps every response body. Code mirrors the HTTP status.
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// JSON writes an envelope with the given status code.
func JSON(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Envelope{
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(TimestampLayout),
	})
}

// Success writes a 200 envelope.
func Success(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, message, data)
}

// Error writes an envelope without data.
func Error(w http.ResponseWriter, code int, message string) {
	JSON(w, code, message, nil)
}
