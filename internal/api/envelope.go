package api

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Envelope is the uniform wrapper every remote response is expected to use.
// All fields are optional; a body with neither Success nor Code is treated as
// successful for compatibility with endpoints whose payload is the envelope.
type Envelope struct {
	Code    *int            `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// parseEnvelope decodes the body into an Envelope. A body that is not an
// envelope-shaped object (e.g. a bare array) yields a zero Envelope, which
// reads as success with no data — the unwrap fallback then returns the raw
// body.
func parseEnvelope(body []byte) Envelope {
	var env Envelope
	_ = json.Unmarshal(body, &env)
	return env
}

// ok reports whether the envelope itself indicates success.
func (e Envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	if e.Code != nil {
		return *e.Code >= 200 && *e.Code < 300
	}
	return true
}

// payload returns the data field, or the raw body when the response carries
// no data field at all.
func (e Envelope) payload(body []byte) []byte {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return e.Data
	}
	if gjson.GetBytes(body, "data").Exists() {
		return e.Data
	}
	return body
}

// errorMessage extracts the human-readable failure message from a rejected
// body, in priority order, falling back to the generic message.
func errorMessage(body []byte) string {
	for _, path := range []string{"message", "error", "msg", "data.message"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return "request failed"
}

// errorCode picks the numeric code for a rejected response: the envelope
// code when present, otherwise the HTTP status.
func errorCode(env Envelope, httpStatus int) int {
	if env.Code != nil && *env.Code != 0 {
		return *env.Code
	}
	return httpStatus
}
